package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// federator is the subset of IdentityProvider that Handlers depends on,
// broken out so tests can substitute a fake rather than reach the real
// WorkOS API.
type federator interface {
	AuthorizationURL(sessionKey string) (string, error)
	CompleteLogin(ctx context.Context, code string) (*IdentityResult, error)
}

// Handlers wires C3–C6 together behind the HTTP surface described by
// spec.md §6: registration, authorize, federated callback, and token,
// grounded on the teacher's handler shape (internal/httpapi/token_exchange.go,
// internal/mcpserver/server/server.go's sendError/sendResult pattern).
type Handlers struct {
	Clients      *ClientRegistry
	Grants       *GrantStore
	Federation   *FederationStore
	Tokens       *TokenIssuer
	Identity     federator
	AllowedUsers map[string]bool // lowercased
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(oauthError{Error: code, ErrorDescription: description})
}

// registerRequest is the dynamic client registration body (§4.3).
type registerRequest struct {
	ClientName    string   `json:"clientName"`
	RedirectURIs  []string `json:"redirectUris"`
	GrantTypes    []string `json:"grantTypes,omitempty"`
	ResponseTypes []string `json:"responseTypes,omitempty"`
	AuthMethod    string   `json:"authMethod,omitempty"`
}

type registerResponse struct {
	ClientID      string   `json:"clientId"`
	ClientSecret  string   `json:"clientSecret,omitempty"`
	ClientName    string   `json:"clientName"`
	RedirectURIs  []string `json:"redirectUris"`
	GrantTypes    []string `json:"grantTypes"`
	ResponseTypes []string `json:"responseTypes"`
	AuthMethod    string   `json:"authMethod"`
}

// Register handles POST /oauth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Content-Type must be application/json")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{string(GrantTypeAuthorizationCode), string(GrantTypeRefreshToken)}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{string(ResponseTypeCode)}
	}
	authMethod := req.AuthMethod
	if authMethod == "" {
		authMethod = string(AuthMethodConfidentialPost)
	}

	params := ClientRegisterParams{
		ClientName:    req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		AuthMethod:    AuthMethod(authMethod),
	}
	for _, gt := range grantTypes {
		params.GrantTypes = append(params.GrantTypes, GrantType(gt))
	}
	for _, rt := range responseTypes {
		params.ResponseTypes = append(params.ResponseTypes, ResponseType(rt))
	}

	client, err := h.Clients.Register(params)
	if err == ErrCapacity {
		writeOAuthError(w, http.StatusServiceUnavailable, "server_error", "too many registered clients")
		return
	}
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp := registerResponse{
		ClientID:      client.ClientID,
		ClientSecret:  client.ClientSecret,
		ClientName:    client.ClientName,
		RedirectURIs:  client.RedirectURIs,
		AuthMethod:    string(client.AuthMethod),
	}
	for _, gt := range client.GrantTypes {
		resp.GrantTypes = append(resp.GrantTypes, string(gt))
	}
	for _, rt := range client.ResponseTypes {
		resp.ResponseTypes = append(resp.ResponseTypes, string(rt))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Authorize handles GET /oauth/authorize.
func (h *Handlers) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("response_type") != "code" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "response_type must be code")
		return
	}

	clientID := q.Get("client_id")
	client, ok := h.Clients.GetClient(clientID)
	if clientID == "" || !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client_id")
		return
	}

	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" || !client.HasRedirectURI(redirectURI) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "redirect_uri missing or not registered")
		return
	}

	state := q.Get("state")
	if state == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "state is required")
		return
	}

	codeChallenge := q.Get("code_challenge")
	if codeChallenge == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge is required")
		return
	}

	if q.Get("code_challenge_method") != "S256" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge_method must be S256")
		return
	}

	fs, err := h.Federation.Create(clientID, redirectURI, state, codeChallenge, "S256")
	if err == ErrCapacity {
		writeOAuthError(w, http.StatusServiceUnavailable, "server_error", "Too many pending authorization sessions")
		return
	}
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to start authorization")
		return
	}

	authURL, err := h.Identity.AuthorizationURL(fs.SessionKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to build federated authorization url")
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to reach identity provider")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// FederatedCallback handles GET /oauth/<federated>/callback.
func (h *Handlers) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	sessionKey := q.Get("state")
	fs, err := h.Federation.Consume(sessionKey)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid or expired session")
		return
	}

	if providerErr := q.Get("error"); providerErr != "" {
		redirectDenied(w, r, fs.RedirectURI, fs.State, "access_denied", "identity provider denied the request")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing code from identity provider")
		return
	}

	identity, err := h.Identity.CompleteLogin(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("federated login exchange failed")
		redirectDenied(w, r, fs.RedirectURI, fs.State, "access_denied", "identity provider exchange failed")
		return
	}

	if !h.AllowedUsers[strings.ToLower(identity.Email)] && !h.AllowedUsers[strings.ToLower(identity.Subject)] {
		redirectDenied(w, r, fs.RedirectURI, fs.State, "access_denied", "User not authorized")
		return
	}

	authCode, err := h.Grants.IssueAuthorizationCode(fs.ClientID, fs.RedirectURI, fs.CodeChallenge)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue authorization code")
		return
	}

	dest, err := url.Parse(fs.RedirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "invalid stored redirect_uri")
		return
	}
	vals := dest.Query()
	vals.Set("code", authCode.Code)
	vals.Set("state", fs.State)
	dest.RawQuery = vals.Encode()

	http.Redirect(w, r, dest.String(), http.StatusFound)
}

func redirectDenied(w http.ResponseWriter, r *http.Request, redirectURI, state, code, description string) {
	dest, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "invalid stored redirect_uri")
		return
	}
	vals := dest.Query()
	vals.Set("error", code)
	vals.Set("error_description", description)
	vals.Set("state", state)
	dest.RawQuery = vals.Encode()

	http.Redirect(w, r, dest.String(), http.StatusFound)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Token handles POST /oauth/token.
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Content-Type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	w.Header().Set("Cache-Control", "no-store")

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		h.tokenFromAuthorizationCode(w, r)
	case "refresh_token":
		h.tokenFromRefreshToken(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type")
	}
}

func (h *Handlers) tokenFromAuthorizationCode(w http.ResponseWriter, r *http.Request) {
	form := r.PostForm
	code := form.Get("code")
	redirectURI := form.Get("redirect_uri")
	clientID := form.Get("client_id")
	clientSecret := form.Get("client_secret")
	codeVerifier := form.Get("code_verifier")

	if code == "" || redirectURI == "" || clientID == "" || codeVerifier == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing required parameter")
		return
	}

	if !h.Clients.Authenticate(clientID, clientSecret) {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	grant, err := h.Grants.ConsumeAuthorizationCode(code)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown or expired authorization code")
		return
	}

	if grant.ClientID != clientID {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "client_id does not match authorization code")
		return
	}
	if grant.RedirectURI != redirectURI {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match authorization code")
		return
	}
	if !verifyPKCE(codeVerifier, grant.CodeChallenge) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match code_challenge")
		return
	}

	h.issuePair(w, clientID)
}

func (h *Handlers) tokenFromRefreshToken(w http.ResponseWriter, r *http.Request) {
	form := r.PostForm
	refreshToken := form.Get("refresh_token")
	clientID := form.Get("client_id")
	clientSecret := form.Get("client_secret")

	if refreshToken == "" || clientID == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing required parameter")
		return
	}

	if !h.Clients.Authenticate(clientID, clientSecret) {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	rotated, err := h.Grants.RotateRefreshToken(refreshToken, clientID)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown or expired refresh token")
		return
	}

	h.writeTokenPair(w, clientID, rotated.Token)
}

func (h *Handlers) issuePair(w http.ResponseWriter, clientID string) {
	rt, err := h.Grants.IssueRefreshToken(clientID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue refresh token")
		return
	}
	h.writeTokenPair(w, clientID, rt.Token)
}

func (h *Handlers) writeTokenPair(w http.ResponseWriter, clientID, refreshToken string) {
	accessToken, expiresAt, err := h.Tokens.Issue("vault-principal", clientID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue access token")
		return
	}

	resp := tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
