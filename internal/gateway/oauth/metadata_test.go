package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthorizationServerMetadata(t *testing.T) {
	m := &Metadata{Issuer: "https://gw.example.com", ResourceURL: "https://gw.example.com"}
	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()

	m.AuthorizationServerMetadata(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["issuer"] != "https://gw.example.com" {
		t.Errorf("unexpected issuer: %v", body["issuer"])
	}
	if body["token_endpoint"] != "https://gw.example.com/oauth/token" {
		t.Errorf("unexpected token_endpoint: %v", body["token_endpoint"])
	}
}

func TestProtectedResourceMetadata(t *testing.T) {
	m := &Metadata{Issuer: "https://gw.example.com", ResourceURL: "https://gw.example.com"}
	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil)
	rec := httptest.NewRecorder()

	m.ProtectedResourceMetadata(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["resource"] != "https://gw.example.com" {
		t.Errorf("unexpected resource: %v", body["resource"])
	}
}
