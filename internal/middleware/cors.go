package middleware

import "net/http"

// CORS answers pre-flight requests and tags every response with permissive
// cross-origin headers. The browser client runs on arbitrary origins (static
// hosting, local dev), so the relay allows any origin and enumerates the
// custom credential headers plus the exposed dimension headers.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, x-goog-api-key, x-modelscope-key")
		h.Set("Access-Control-Expose-Headers", "X-Image-Width, X-Image-Height, X-Request-ID")
		h.Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
