package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camerarts/shengtu/internal/storage"
)

// Generated artifacts top out well below this at 4K.
const maxUploadBytes = 64 << 20

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload accepts a raw binary body and persists it under a fresh
// timestamp-plus-suffix key. All uploader failures answer HTTP 500 with the
// JSON envelope; callers treat them as non-fatal since the artifact is still
// usable locally, only the shareable URL is unavailable.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		a.uploadError(w, "UPLOAD_READ_FAILED", "Could not read upload body.")
		return
	}
	if len(body) == 0 {
		a.uploadError(w, "EMPTY_PAYLOAD", "Empty upload body.")
		return
	}
	if len(body) > maxUploadBytes {
		a.uploadError(w, "PAYLOAD_TOO_LARGE", "Upload body exceeds the size limit.")
		return
	}
	if a.Store == nil {
		a.uploadError(w, "STORAGE_UNAVAILABLE", "Object storage is not configured.")
		return
	}
	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	key := storage.NewKey(time.Now(), contentType)
	url, err := a.Store.Put(r.Context(), key, body, contentType)
	if err != nil {
		a.Log.Error().Err(err).Str("key", key).Msg("storage put failed")
		a.uploadError(w, "STORAGE_UNAVAILABLE", "Could not persist the image.")
		return
	}
	a.Log.Info().Str("key", key).Int("bytes", len(body)).Msg("artifact uploaded")
	a.json(w, http.StatusOK, uploadResponse{URL: url})
}

func (a *App) uploadError(w http.ResponseWriter, code, message string) {
	a.json(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
	}})
}
