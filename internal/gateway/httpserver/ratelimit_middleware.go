package httpserver

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/erauner12/vaultgw/internal/gateway/ratelimit"
)

// RateLimitMiddleware applies C1 per-client-IP admission to one OAuth
// endpoint, grounded on the teacher's RateLimitMiddleware
// (internal/httpapi/ratelimit.go). Keyed by the host part of
// r.RemoteAddr, which middleware.RealIP (applied earlier in the chain) has already
// rewritten from X-Forwarded-For/X-Real-IP when TRUST_PROXY is set.
// Registration and token exchange are rate-limited independently
// (spec.md §4.7), so callers pass the limiter for the specific route
// being wrapped rather than one shared across the whole OAuth surface.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}
			if !limiter.Check(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":             "too_many_requests",
					"error_description": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
