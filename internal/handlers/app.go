// Package handlers implements the relay's HTTP surface. It is the sole
// boundary where internal and provider error detail is translated into the
// client-visible JSON envelope; nothing below it writes a response.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/camerarts/shengtu/internal/domain"
	"github.com/camerarts/shengtu/internal/infra"
	img "github.com/camerarts/shengtu/internal/providers/image"
	"github.com/camerarts/shengtu/internal/storage"
)

// App carries the handler dependencies.
type App struct {
	Log        infra.Logger
	Config     *infra.Config
	Gemini     img.Generator
	ModelScope img.Generator
	// Store is nil when neither R2 nor a filesystem path is configured;
	// uploads then degrade to STORAGE_UNAVAILABLE without affecting
	// generation.
	Store storage.BlobStore
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error translates any error into the JSON error envelope. Unexpected errors
// are logged with full detail but reach the client only as a generic message.
func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.AsError(err)
	if de.Kind == domain.KindInternal {
		a.Log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
	}
	a.json(w, domain.HTTPStatus(err), errorEnvelope{Error: errorBody{
		Code:    string(de.Kind),
		Message: de.Message,
		Details: de.Details,
	}})
}
