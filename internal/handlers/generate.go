package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/camerarts/shengtu/internal/domain"
	"github.com/camerarts/shengtu/internal/middleware"
	img "github.com/camerarts/shengtu/internal/providers/image"
)

// Relay-level ceiling on prompt size, applied before any upstream call.
// Provider adapters apply their own tighter byte budgets below this.
const maxPromptBytes = 8000

type generateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt"`
	AspectRatio    string `json:"aspectRatio"`
	Quality        string `json:"quality"`
	// ReferenceImageBase64 is a data URI: data:<mime>;base64,<payload>.
	ReferenceImageBase64 string `json:"referenceImageBase64"`
}

// GenerateGemini relays to the synchronous provider.
func (a *App) GenerateGemini(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, a.Gemini, img.GeminiTable, "x-goog-api-key", a.Config.GeminiAPIKey, true)
}

// GenerateModelScope relays to the asynchronous provider. The poll loop runs
// inline, so this invocation blocks for up to the polling budget.
func (a *App) GenerateModelScope(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, a.ModelScope, img.ModelScopeTable, "x-modelscope-key", a.Config.ModelScopeAPIKey, false)
}

// generate validates the request, dispatches to the provider adapter and
// writes the artifact as a raw binary body with the dimensions echoed in
// response headers. Success is never JSON: a multi-megabyte base64 string
// inside a JSON envelope can exceed a browser's safe parse budget at the
// higher quality tiers.
func (a *App) generate(w http.ResponseWriter, r *http.Request, gen img.Generator, table img.Table, credentialHeader, serverKey string, allowReference bool) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, domain.E(domain.KindInvalidInput, "request body is not valid JSON"))
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		a.error(w, r, domain.E(domain.KindInvalidInput, "prompt is required"))
		return
	}
	if len(prompt) > maxPromptBytes {
		a.error(w, r, domain.Ef(domain.KindInvalidInput, "prompt exceeds %d bytes", maxPromptBytes))
		return
	}
	quality := img.QualityTier(strings.ToUpper(strings.TrimSpace(req.Quality)))
	ratio := strings.TrimSpace(req.AspectRatio)
	if !img.Supports(table, ratio, quality) {
		a.error(w, r, domain.Ef(domain.KindInvalidInput,
			"aspect ratio %q at quality %q is not supported by this provider", ratio, quality))
		return
	}

	genReq := img.GenerateRequest{
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		AspectRatio:    ratio,
		Quality:        quality,
		RequestID:      middleware.RequestIDFromContext(r.Context()),
	}
	if raw := strings.TrimSpace(req.ReferenceImageBase64); raw != "" {
		if !allowReference {
			a.error(w, r, domain.E(domain.KindInvalidInput, "this provider does not accept reference images"))
			return
		}
		ref, err := img.ParseDataURI(raw)
		if err != nil {
			a.error(w, r, err)
			return
		}
		genReq.Reference = ref
	}

	apiKey := strings.TrimSpace(r.Header.Get(credentialHeader))
	if apiKey == "" {
		apiKey = serverKey
	}
	if apiKey == "" {
		a.error(w, r, domain.Ef(domain.KindCredentialMissing,
			"no API key configured; supply one via the %s header", credentialHeader))
		return
	}

	artifact, err := gen.Generate(r.Context(), apiKey, genReq)
	if err != nil {
		a.error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", artifact.MIME)
	w.Header().Set("X-Image-Width", strconv.Itoa(artifact.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(artifact.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}
