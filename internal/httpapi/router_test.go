package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/camerarts/shengtu/internal/handlers"
	"github.com/camerarts/shengtu/internal/infra"
)

func newRouter() http.Handler {
	return NewRouter(&handlers.App{Log: zerolog.Nop(), Config: &infra.Config{}})
}

func TestPreflightAnsweredPermissively(t *testing.T) {
	router := newRouter()
	for _, path := range []string{"/api/generate/gemini", "/api/generate/modelscope", "/api/upload"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: preflight status = %d, want 204", path, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("%s: allow-origin = %q", path, got)
		}
		allowed := rec.Header().Get("Access-Control-Allow-Headers")
		for _, header := range []string{"x-goog-api-key", "x-modelscope-key", "Content-Type"} {
			if !strings.Contains(allowed, header) {
				t.Fatalf("%s: %q missing from allowed headers %q", path, header, allowed)
			}
		}
		exposed := rec.Header().Get("Access-Control-Expose-Headers")
		for _, header := range []string{"X-Image-Width", "X-Image-Height"} {
			if !strings.Contains(exposed, header) {
				t.Fatalf("%s: %q missing from exposed headers %q", path, header, exposed)
			}
		}
	}
}

func TestHealthRoute(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDAssigned(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header missing")
	}
}
