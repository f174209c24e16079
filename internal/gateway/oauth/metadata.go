package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Metadata serves RFC 8414 authorization server metadata and RFC 9728
// protected resource metadata, grounded on the teacher's
// handleOAuthMetadata/handleOAuthProtectedResourceMetadata
// (internal/mcpserver/server/oauth_metadata.go). Unlike the teacher, which
// delegates discovery to an upstream Auth0 tenant, this gateway is its own
// authorization server, so every field is self-referential.
type Metadata struct {
	Issuer      string
	ResourceURL string
}

func (m *Metadata) AuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	doc := map[string]interface{}{
		"issuer":                           m.Issuer,
		"authorization_endpoint":           m.Issuer + "/oauth/authorize",
		"token_endpoint":                   m.Issuer + "/oauth/token",
		"registration_endpoint":            m.Issuer + "/oauth/register",
		"response_types_supported":         []string{"code"},
		"grant_types_supported":            []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported": []string{"S256"},
		// Named to match the values ClientRegistry actually accepts at
		// registration and token-exchange time (AuthMethodConfidentialPost/
		// AuthMethodPublic in types.go), not the RFC 7591 names
		// (client_secret_post/none) — a client registering confidential_post
		// that then saw client_secret_post advertised here would have no
		// reason to believe the two were the same method.
		"token_endpoint_auth_methods_supported": []string{string(AuthMethodConfidentialPost), string(AuthMethodPublic)},
		"scopes_supported":                      []string{"vault"},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (m *Metadata) ProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	doc := map[string]interface{}{
		"resource":                 m.ResourceURL,
		"authorization_servers":    []string{m.Issuer},
		"bearer_methods_supported": []string{"header"},
		"resource_documentation":   fmt.Sprintf("%s/mcp", m.ResourceURL),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
