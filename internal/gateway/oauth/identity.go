package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

// identityCallDeadline bounds every outbound call to the federated
// identity provider (spec.md §5).
const identityCallDeadline = 10 * time.Second

// IdentityProvider wraps the federated login round-trip with the upstream
// identity provider (WorkOS AuthKit), grounded on the WorkOS usermanagement
// client already wired by the teacher for tenant resolution
// (internal/httpapi/tenant_resolve.go, internal/httpapi/token_exchange.go).
// This gateway repurposes the same client as the sole mechanism for
// obtaining an authenticated subject, rather than running its own password
// or social-login flow.
type IdentityProvider struct {
	clientID    string
	callbackURI string
}

// NewIdentityProvider configures the provider. The WorkOS API key is
// supplied to the usermanagement package at process startup via
// usermanagement.SetAPIKey, following the teacher's initialization
// pattern (cmd/mcpbridge/main.go); the client ID is held here and passed
// on each call.
func NewIdentityProvider(clientID, callbackURI string) *IdentityProvider {
	return &IdentityProvider{clientID: clientID, callbackURI: callbackURI}
}

// AuthorizationURL builds the upstream AuthKit URL the user's browser is
// redirected to, encoding our own federation session key as opaque state
// so the callback can be tied back to the original request.
func (p *IdentityProvider) AuthorizationURL(sessionKey string) (string, error) {
	u, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    p.clientID,
		RedirectURI: p.callbackURI,
		Provider:    "authkit",
		State:       sessionKey,
	})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// IdentityResult is the subset of the upstream authentication response
// this gateway cares about.
type IdentityResult struct {
	Subject string
	Email   string
}

// CompleteLogin exchanges the authorization code returned by the callback
// for the authenticated user's identity. The call is bounded to a 10s
// deadline and retried with bounded backoff on transient network failure,
// following the teacher's retry shape for outbound HTTP calls
// (internal/mcpserver/client/httpclient.go).
func (p *IdentityProvider) CompleteLogin(ctx context.Context, code string) (*IdentityResult, error) {
	if code == "" {
		return nil, errors.New("missing federated authorization code")
	}

	ctx, cancel := context.WithTimeout(ctx, identityCallDeadline)
	defer cancel()

	var resp *usermanagement.AuthenticateResponse
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		var callErr error
		resp, callErr = usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
			ClientID: p.clientID,
			Code:     code,
		})
		return callErr
	}, policy)
	if err != nil {
		return nil, err
	}

	if resp.User.ID == "" {
		return nil, errors.New("identity provider returned no user id")
	}

	return &IdentityResult{Subject: resp.User.ID, Email: resp.User.Email}, nil
}
