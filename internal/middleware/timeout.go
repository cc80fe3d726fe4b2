package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Timeout bounds the request context. Handlers observe the deadline through
// their store calls. Websocket upgrades are long-lived and left alone.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
