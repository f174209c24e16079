package oauth

import (
	"errors"
	"sync"
	"time"
)

const (
	authorizationCodeTTL  = 5 * time.Minute
	maxAuthorizationCodes = 1000
	maxRefreshTokens      = 2000
)

// ErrGrantNotFound is returned when a code or token is unknown, expired, or
// already consumed. The three cases are deliberately indistinguishable to
// callers to avoid leaking which reason applied.
var ErrGrantNotFound = errors.New("grant not found")

// GrantStore is C4: one-time-use authorization codes and rotating refresh
// tokens, grounded on the same mutex-guarded map shape as the session
// manager (internal/mcpserver/server/session.go) with a periodic cleanup
// sweep analogous to its cleanupExpired goroutine. Insertion-order queues
// (codeOrder/tokenOrder) mirror ClientRegistry's own order slice
// (clients.go) so both stores evict the same way at capacity.
type GrantStore struct {
	mu              sync.Mutex
	codes           map[string]*AuthorizationCode
	codeOrder       []string
	tokens          map[string]*RefreshToken
	tokenOrder      []string
	refreshTokenTTL time.Duration
}

// NewGrantStore creates an empty grant store. refreshTokenTTL is the
// configured REFRESH_TOKEN_TTL; authorization codes use a fixed, short
// lifetime regardless of configuration (§3).
func NewGrantStore(refreshTokenTTL time.Duration) *GrantStore {
	return &GrantStore{
		codes:           make(map[string]*AuthorizationCode),
		tokens:          make(map[string]*RefreshToken),
		refreshTokenTTL: refreshTokenTTL,
	}
}

// evictOldestLocked pops ids off the front of order until it finds one
// still present in m, deletes it, and returns the trimmed queue. Entries
// already removed by consumption or Cleanup are skipped rather than
// evicted again, so a long-idle queue self-heals instead of evicting
// nothing forever. Callers hold s.mu.
func evictOldestLocked[V any](order []string, m map[string]V) []string {
	for len(order) > 0 {
		oldest := order[0]
		order = order[1:]
		if _, ok := m[oldest]; ok {
			delete(m, oldest)
			return order
		}
	}
	return order
}

// IssueAuthorizationCode creates and stores a new code bound to clientID,
// redirectURI and the PKCE code_challenge presented at /authorize. At
// capacity, the oldest outstanding code is evicted to make room (§4.4)
// rather than rejecting the request.
func (s *GrantStore) IssueAuthorizationCode(clientID, redirectURI, codeChallenge string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.codes) >= maxAuthorizationCodes {
		s.codeOrder = evictOldestLocked(s.codeOrder, s.codes)
	}

	raw, err := newOpaqueHex(256)
	if err != nil {
		return nil, err
	}

	code := &AuthorizationCode{
		Code:          raw,
		ClientID:      clientID,
		RedirectURI:   redirectURI,
		CodeChallenge: codeChallenge,
		ExpiresAt:     time.Now().Add(authorizationCodeTTL),
	}
	s.codes[raw] = code
	s.codeOrder = append(s.codeOrder, raw)
	return code, nil
}

// ConsumeAuthorizationCode deletes and returns the code if it exists and
// has not expired. A code can only ever be consumed once: the deletion
// happens unconditionally so a replayed request always misses.
func (s *GrantStore) ConsumeAuthorizationCode(code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ac, ok := s.codes[code]
	delete(s.codes, code)
	if !ok {
		return nil, ErrGrantNotFound
	}
	if time.Now().After(ac.ExpiresAt) {
		return nil, ErrGrantNotFound
	}
	return ac, nil
}

// IssueRefreshToken creates and stores a new refresh token for clientID.
// At capacity, the oldest outstanding token is evicted to make room (§4.4,
// "symmetric to the above") rather than rejecting the request.
func (s *GrantStore) IssueRefreshToken(clientID string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueRefreshTokenLocked(clientID)
}

func (s *GrantStore) issueRefreshTokenLocked(clientID string) (*RefreshToken, error) {
	if len(s.tokens) >= maxRefreshTokens {
		s.tokenOrder = evictOldestLocked(s.tokenOrder, s.tokens)
	}

	raw, err := newOpaqueHex(256)
	if err != nil {
		return nil, err
	}

	rt := &RefreshToken{
		Token:     raw,
		ClientID:  clientID,
		ExpiresAt: time.Now().Add(s.refreshTokenTTL),
	}
	s.tokens[raw] = rt
	s.tokenOrder = append(s.tokenOrder, raw)
	return rt, nil
}

// RotateRefreshToken verifies the presented token is bound to clientID
// and, if so, consumes it and issues a replacement bound to the same
// client. The client-id binding is checked before the token is touched:
// a mismatch leaves the token untouched in the store rather than
// consuming it and minting an orphan replacement nobody can claim. Once
// the binding is confirmed, the old token is deleted unconditionally
// before its expiry is checked, so concurrent replay of the same token
// can succeed at most once.
func (s *GrantStore) RotateRefreshToken(token, clientID string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[token]
	if !ok || old.ClientID != clientID {
		return nil, ErrGrantNotFound
	}
	delete(s.tokens, token)
	if time.Now().After(old.ExpiresAt) {
		return nil, ErrGrantNotFound
	}

	return s.issueRefreshTokenLocked(old.ClientID)
}

// Cleanup removes expired codes and tokens, then compacts the insertion-
// order queues to drop references to whatever Cleanup or Consume/Rotate
// already removed from the maps, so the queues don't grow unbounded over
// the process lifetime. Intended to run on a timer alongside the other
// components' sweeps.
func (s *GrantStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, v := range s.codes {
		if now.After(v.ExpiresAt) {
			delete(s.codes, k)
		}
	}
	for k, v := range s.tokens {
		if now.After(v.ExpiresAt) {
			delete(s.tokens, k)
		}
	}

	s.codeOrder = compactLocked(s.codeOrder, s.codes)
	s.tokenOrder = compactLocked(s.tokenOrder, s.tokens)
}

// compactLocked drops ids from order that are no longer present in m.
func compactLocked[V any](order []string, m map[string]V) []string {
	kept := order[:0:0]
	for _, id := range order {
		if _, ok := m[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}
