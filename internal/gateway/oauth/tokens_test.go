package oauth

import (
	"testing"
	"time"
)

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	ti, err := NewTokenIssuer([]byte("test-secret-value-padding"), "https://gw.example.com", "vault-api", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, expiresAt, err := ti.Issue("user-1", "client-1")
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}
	if raw == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.IsZero() {
		t.Error("expected non-zero expiry")
	}

	claims, err := ti.Verify(raw)
	if err != nil {
		t.Fatalf("unexpected error verifying: %v", err)
	}
	if claims.Subject != "user-1" || claims.ClientID != "client-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	ti, _ := NewTokenIssuer([]byte("secret-one-padding-value"), "iss", "aud", time.Hour)
	other, _ := NewTokenIssuer([]byte("secret-two-padding-value"), "iss", "aud", time.Hour)

	raw, _, _ := ti.Issue("user-1", "client-1")
	if _, err := other.Verify(raw); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_RejectsWrongAudience(t *testing.T) {
	ti, _ := NewTokenIssuer([]byte("secret-value-padding-here"), "iss", "aud-a", time.Hour)
	verifier, _ := NewTokenIssuer([]byte("secret-value-padding-here"), "iss", "aud-b", time.Hour)

	raw, _, _ := ti.Issue("user-1", "client-1")
	if _, err := verifier.Verify(raw); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for mismatched audience, got %v", err)
	}
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	ti, _ := NewTokenIssuer([]byte("secret-value-padding-here"), "iss", "aud", time.Hour)
	if _, err := ti.Verify("not-a-token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenIssuer_RejectsEmptySecret(t *testing.T) {
	if _, err := NewTokenIssuer(nil, "iss", "aud", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
