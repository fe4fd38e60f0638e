// Package httpapi assembles the chi router for the relay.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/camerarts/shengtu/internal/handlers"
	"github.com/camerarts/shengtu/internal/middleware"
)

// NewRouter wires the middleware stack and routes. CORS sits outermost so
// OPTIONS preflights are answered before routing.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.CORS,
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Log),
	)

	r.Get("/api/healthz", app.Health)
	r.Post("/api/generate/gemini", app.GenerateGemini)
	r.Post("/api/generate/modelscope", app.GenerateModelScope)
	r.Post("/api/upload", app.Upload)

	return r
}
