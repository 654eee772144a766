package api

import (
	"crypto/subtle"
	"net/http"
)

// StreamKeyParam is the query parameter carrying the API key on /ws/stream.
// Browsers cannot set custom headers on a WebSocket upgrade.
const StreamKeyParam = "api_key"

// RequireAPIKey wraps next so that every request must carry key in header.
//
// When mode != "apikey" or key == "", all requests pass through, which keeps
// local development usable with auth disabled. A missing or wrong key gets
// 401 before next runs.
func RequireAPIKey(mode, header, key string, next http.Handler) http.Handler {
	return requireKey(mode, key, next, func(r *http.Request) string {
		return r.Header.Get(header)
	})
}

// RequireStreamKey is RequireAPIKey for the WebSocket route: the key may
// come from header or from the StreamKeyParam query parameter.
func RequireStreamKey(mode, header, key string, next http.Handler) http.Handler {
	return requireKey(mode, key, next, func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return v
		}
		return r.URL.Query().Get(StreamKeyParam)
	})
}

func requireKey(mode, key string, next http.Handler, presented func(*http.Request) string) http.Handler {
	if mode != "apikey" || key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := presented(r)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
