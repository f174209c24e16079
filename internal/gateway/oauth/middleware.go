package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// BearerMiddleware is C8: validates the Authorization header on protected
// routes, grounded on the teacher's dual JWT middleware
// (internal/auth/jwt.go's Middleware, internal/mcpserver/server/jwt.go).
// Unlike the teacher, claims are not attached to the request context: the
// protocol does not distinguish callers beyond "authorized or not"
// (spec.md §4.8).
func BearerMiddleware(tokens *TokenIssuer, serverURL, discoveryPath string) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf(`Bearer resource_metadata="%s%s"`, serverURL, discoveryPath)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) || header == prefix {
				unauthorized(w, challenge)
				return
			}

			raw := strings.TrimPrefix(header, prefix)
			if _, err := tokens.Verify(raw); err != nil {
				unauthorized(w, challenge)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(oauthError{Error: "invalid_token", ErrorDescription: "missing or invalid bearer token"})
}
