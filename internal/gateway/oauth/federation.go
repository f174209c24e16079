package oauth

import (
	"sync"
	"time"
)

const (
	federationSessionTTL = 10 * time.Minute
	maxFederationSessions = 1000
)

// FederationStore is C5: the one-shot session that carries PKCE and client
// state across the redirect round-trip to the federated identity provider
// and back, grounded on the same store-then-consume-once shape as
// GrantStore's authorization codes.
type FederationStore struct {
	mu       sync.Mutex
	sessions map[string]*FederationSession
}

// NewFederationStore creates an empty store.
func NewFederationStore() *FederationStore {
	return &FederationStore{sessions: make(map[string]*FederationSession)}
}

// Create stores a new federation session and returns it; its opaque
// SessionKey is threaded through the identity provider as encoded state.
func (s *FederationStore) Create(clientID, redirectURI, state, codeChallenge, codeChallengeMethod string) (*FederationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= maxFederationSessions {
		return nil, ErrCapacity
	}

	key, err := newOpaqueBase64URL(256)
	if err != nil {
		return nil, err
	}

	fs := &FederationSession{
		SessionKey:          key,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		State:               state,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           time.Now().Add(federationSessionTTL),
	}
	s.sessions[key] = fs
	return fs, nil
}

// Consume deletes and returns the session if present and unexpired. Like
// authorization codes, the callback round-trip may only ever be completed
// once.
func (s *FederationStore) Consume(key string) (*FederationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.sessions[key]
	delete(s.sessions, key)
	if !ok {
		return nil, ErrGrantNotFound
	}
	if time.Now().After(fs.ExpiresAt) {
		return nil, ErrGrantNotFound
	}
	return fs, nil
}

// Cleanup removes expired sessions that were never completed.
func (s *FederationStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, v := range s.sessions {
		if now.After(v.ExpiresAt) {
			delete(s.sessions, k)
		}
	}
}
