package oauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any access token that fails signature,
// claims, or expiry validation. The distinct failure reasons are collapsed
// deliberately so callers cannot distinguish "expired" from "forged".
var ErrInvalidToken = errors.New("invalid access token")

type accessTokenClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
}

// TokenIssuer mints and verifies self-contained bearer access tokens
// (C6), grounded on the teacher's golang-jwt/jwt/v5 usage
// (internal/mcpserver/server/jwt.go, internal/auth/jwt.go) but HMAC-signed
// rather than JWKS-validated, since this server is its own issuer.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenIssuer constructs an issuer. secret must be non-empty; it is the
// HMAC-SHA256 signing key shared by Issue and Verify. ttl is the
// configured ACCESS_TOKEN_TTL.
func NewTokenIssuer(secret []byte, issuer, audience string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	return &TokenIssuer{secret: secret, issuer: issuer, audience: audience, ttl: ttl}, nil
}

// Issue mints a bearer token bound to subject and clientID.
func (ti *TokenIssuer) Issue(subject, clientID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.ttl)

	claims := accessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    ti.issuer,
			Audience:  jwt.ClaimStrings{ti.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ClientID: clientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, issuer, audience, and expiry, returning the
// decoded claims on success.
func (ti *TokenIssuer) Verify(raw string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	},
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(ti.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*accessTokenClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	expiresAt := time.Time{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &AccessClaims{
		Subject:   claims.Subject,
		ClientID:  claims.ClientID,
		Audience:  ti.audience,
		Issuer:    ti.issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
