package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// Middleware returns next wrapped with API-key enforcement.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed.
//   - Otherwise the value of header is compared to key in constant time.
//   - A missing, empty, or incorrect key returns 401 with a JSON error body.
func Middleware(mode, header, key string, next http.Handler) http.Handler {
	if mode != "apikey" || key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			slog.Debug("auth: rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "ApiKey header=\""+header+"\"")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid api key"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Check reports whether r is authorized. It also accepts the key in the
// api_key query parameter, for WebSocket upgrades from browsers.
func Check(mode, header, key string, r *http.Request) bool {
	if mode != "apikey" || key == "" {
		return true
	}
	got := r.Header.Get(header)
	if got == "" {
		got = r.URL.Query().Get("api_key")
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}
