// Package httpserver wires C1–C11 into the gateway's public HTTP surface,
// grounded on the teacher's Server.Routes (internal/httpapi/router.go) for
// the chi middleware chain and route-grouping conventions.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/erauner12/vaultgw/internal/gateway/oauth"
	"github.com/erauner12/vaultgw/internal/gateway/ratelimit"
	"github.com/erauner12/vaultgw/internal/gateway/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// BuildInfo is surfaced by GET /health, following the richer "server
// info" shape of the teacher's internal/httpapi/info.go scaled down to
// what a liveness probe needs.
type BuildInfo struct {
	Version string
	Commit  string
}

// Dependencies are the singletons a Router wires together. All of them
// outlive the Router and are owned by cmd/vaultgw's main.
type Dependencies struct {
	TrustProxy     bool
	ServerURL      string
	AllowedOrigins []string
	Build          BuildInfo

	OAuthHandlers *oauth.Handlers
	OAuthMeta     *oauth.Metadata
	BearerTokens  *oauth.TokenIssuer

	Transport *transport.Handler

	// RegisterRateLimit and TokenRateLimit are independent per spec.md
	// §4.7's distinct "10 per minute" / "20 per minute" bounds.
	RegisterRateLimit *ratelimit.Limiter
	TokenRateLimit    *ratelimit.Limiter

	// ProtectedPath is the single bearer-gated route the transport's
	// three verbs are served under (spec.md §6's "<protected>").
	ProtectedPath string

	// DiscoveryPath is the protected-resource metadata path advertised
	// in the WWW-Authenticate challenge on 401s.
	DiscoveryPath string
}

// NewRouter builds the complete HTTP handler: public discovery/OAuth
// endpoints, an unauthenticated health check, and the bearer-gated
// protected route serving C9's three transport verbs.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Mcp-Protocol-Version", "Mcp-Session-Id"},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": deps.Build.Version,
			"commit":  deps.Build.Commit,
		})
	})

	r.Get("/.well-known/oauth-authorization-server", deps.OAuthMeta.AuthorizationServerMetadata)
	r.Get("/.well-known/oauth-protected-resource", deps.OAuthMeta.ProtectedResourceMetadata)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(deps.RegisterRateLimit))
		r.Post("/oauth/register", deps.OAuthHandlers.Register)
	})

	r.Get("/oauth/authorize", deps.OAuthHandlers.Authorize)
	r.Get("/oauth/authkit/callback", deps.OAuthHandlers.FederatedCallback)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(deps.TokenRateLimit))
		r.Post("/oauth/token", deps.OAuthHandlers.Token)
	})

	r.Group(func(r chi.Router) {
		r.Use(ValidateOrigin(deps.AllowedOrigins))
		r.Use(oauth.BearerMiddleware(deps.BearerTokens, deps.ServerURL, deps.DiscoveryPath))
		r.Post(deps.ProtectedPath, deps.Transport.RequestResponse)
		r.Get(deps.ProtectedPath, deps.Transport.Resume)
		r.Delete(deps.ProtectedPath, deps.Transport.Terminate)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
