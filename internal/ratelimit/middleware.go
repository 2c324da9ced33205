package ratelimit

import (
	"net/http"

	"github.com/sbiochat/dashboard/internal/auth"
)

// Middleware rejects requests exceeding the caller's bucket with 429.
// Authenticated callers are keyed by username so a shared office NAT does
// not pool into one bucket; anonymous requests fall back to the client IP
// resolved by chi's RealIP middleware.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if id := auth.FromContext(r.Context()); id != nil {
				key = "user:" + id.Username
			}

			if !l.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "rate limit exceeded", "code": "rate_limited"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
