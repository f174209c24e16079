package oauth

import (
	"crypto/subtle"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	maxRegisteredClients = 500
	clientStalenessWindow = 24 * time.Hour
	clientEvictionThreshold = 0.9 // fraction of capacity that triggers staleness eviction
)

// ErrCapacity is returned by operations that hit a component's capacity
// bound and should be surfaced to the caller as a retriable error.
var ErrCapacity = errors.New("at capacity")

// ClientRegisterParams is the validated input to Register.
type ClientRegisterParams struct {
	ClientName    string
	RedirectURIs  []string
	GrantTypes    []GrantType
	ResponseTypes []ResponseType
	AuthMethod    AuthMethod
}

// ClientRegistry is C3: registered-client records and credential
// verification, grounded on the mutex-guarded in-memory map shape the
// teacher uses for sessions (internal/mcpserver/server/session.go) and
// rate limiting (internal/httpapi/ratelimit.go).
type ClientRegistry struct {
	mu             sync.Mutex
	clients        map[string]*RegisteredClient
	order          []string // insertion order, for deterministic iteration
	trustedHosts   map[string]bool
}

// NewClientRegistry creates an empty registry. trustedRedirectHosts is the
// configured allowlist of non-loopback https front-end hosts (§4.3).
func NewClientRegistry(trustedRedirectHosts []string) *ClientRegistry {
	hosts := make(map[string]bool, len(trustedRedirectHosts))
	for _, h := range trustedRedirectHosts {
		hosts[h] = true
	}
	return &ClientRegistry{
		clients:      make(map[string]*RegisteredClient),
		trustedHosts: hosts,
	}
}

// Register validates and stores a new client (§4.3).
func (r *ClientRegistry) Register(p ClientRegisterParams) (*RegisteredClient, error) {
	if p.ClientName == "" || len(p.ClientName) > 256 {
		return nil, errors.New("clientName must be present and at most 256 characters")
	}
	if len(p.RedirectURIs) < 1 || len(p.RedirectURIs) > 10 {
		return nil, errors.New("redirectUris must contain between 1 and 10 entries")
	}
	for _, u := range p.RedirectURIs {
		if err := r.validateRedirectURI(u); err != nil {
			return nil, err
		}
	}
	for _, gt := range p.GrantTypes {
		if gt != GrantTypeAuthorizationCode && gt != GrantTypeRefreshToken {
			return nil, errors.New("unsupported grant type: " + string(gt))
		}
	}
	for _, rt := range p.ResponseTypes {
		if rt != ResponseTypeCode {
			return nil, errors.New("unsupported response type: " + string(rt))
		}
	}
	if p.AuthMethod != AuthMethodConfidentialPost && p.AuthMethod != AuthMethodPublic {
		return nil, errors.New("unsupported auth method: " + string(p.AuthMethod))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= maxRegisteredClients {
		return nil, ErrCapacity
	}

	clientID, err := newOpaqueBase64URL(128)
	if err != nil {
		return nil, err
	}

	var secret string
	if p.AuthMethod == AuthMethodConfidentialPost {
		secret, err = newOpaqueBase64URL(256)
		if err != nil {
			return nil, err
		}
	}

	client := &RegisteredClient{
		ClientID:      clientID,
		ClientSecret:  secret,
		ClientName:    p.ClientName,
		RedirectURIs:  p.RedirectURIs,
		GrantTypes:    p.GrantTypes,
		ResponseTypes: p.ResponseTypes,
		AuthMethod:    p.AuthMethod,
		CreatedAt:     time.Now(),
	}

	r.clients[clientID] = client
	r.order = append(r.order, clientID)

	return client, nil
}

func (r *ClientRegistry) validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("redirect_uri is not parseable: " + raw)
	}

	if isLoopbackHost(u.Hostname()) {
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("loopback redirect_uri must use http or https")
		}
		return nil
	}

	if u.Scheme != "https" {
		return errors.New("non-loopback redirect_uri must use https")
	}
	if !r.trustedHosts[u.Hostname()] {
		return errors.New("redirect_uri host not in trusted allowlist: " + u.Hostname())
	}
	return nil
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// GetClient returns the client record, or (nil, false) if unknown.
func (r *ClientRegistry) GetClient(clientID string) (*RegisteredClient, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// Authenticate validates a presented secret against the stored client
// credential. Confidential clients require a matching, non-empty secret
// compared in constant time; public clients require the secret to be
// absent. Any other combination is false.
func (r *ClientRegistry) Authenticate(clientID, presentedSecret string) bool {
	client, ok := r.GetClient(clientID)
	if !ok {
		return false
	}

	switch client.AuthMethod {
	case AuthMethodConfidentialPost:
		if presentedSecret == "" || client.ClientSecret == "" {
			return false
		}
		if len(presentedSecret) != len(client.ClientSecret) {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(presentedSecret), []byte(client.ClientSecret)) == 1
	case AuthMethodPublic:
		return presentedSecret == ""
	default:
		return false
	}
}

// Cleanup evicts stale clients only when the registry is at or above 90%
// of capacity (§4.3) — registered clients are otherwise stable and should
// not churn.
func (r *ClientRegistry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := int(float64(maxRegisteredClients) * clientEvictionThreshold)
	if len(r.clients) < threshold {
		return
	}

	horizon := time.Now().Add(-clientStalenessWindow)
	evicted := 0
	kept := r.order[:0:0]
	for _, id := range r.order {
		c := r.clients[id]
		if c.CreatedAt.Before(horizon) {
			delete(r.clients, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if evicted > 0 {
		log.Info().Int("count", evicted).Msg("evicted stale registered clients")
	}
}
