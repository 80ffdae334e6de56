package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds request handling time. It cancels the
// request context after the timeout; handlers are expected to observe
// context.Done() cooperatively. Streaming chat routes are mounted
// outside this middleware because their lifetime is bounded by the
// upstream header timeout instead.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
