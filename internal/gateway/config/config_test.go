package config

import (
	"os"
	"testing"
)

func validEnv() map[string]string {
	return map[string]string{
		"VAULT_PATH":              "/vault",
		"REMOTE_URL":              "git@example.com:notes/vault.git",
		"BRANCH":                  "main",
		"USER_NAME":               "vault-bot",
		"USER_EMAIL":              "vault-bot@example.com",
		"SYNC_INTERVAL_SECONDS":   "300",
		"DEBOUNCE_SECONDS":        "10",
		"PORT":                    "8443",
		"JWT_SECRET":              "01234567890123456789012345678901",
		"SERVER_URL":              "https://gateway.example.com/",
		"ACCESS_TOKEN_TTL":        "3600",
		"REFRESH_TOKEN_TTL":       "1209600",
		"FEDERATED_CLIENT_ID":     "client-id",
		"FEDERATED_CLIENT_SECRET": "client-secret",
		"ALLOWED_USERS":           "Alice@Example.com,bob@example.com",
		"TRUST_PROXY":             "true",
		"MAX_SESSIONS":            "100",
	}
}

func withEnv(t *testing.T, overrides map[string]string, fn func()) {
	t.Helper()
	env := validEnv()
	for k, v := range overrides {
		if v == "" {
			delete(env, k)
			continue
		}
		env[k] = v
	}

	keys := make([]string, 0, len(env))
	for k, v := range env {
		keys = append(keys, k)
		os.Setenv(k, v)
	}
	defer func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	}()

	fn()
}

func TestLoad_ValidConfig(t *testing.T) {
	withEnv(t, nil, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.VaultPath != "/vault" {
			t.Errorf("VaultPath = %q", cfg.VaultPath)
		}
		if cfg.ServerURL != "https://gateway.example.com" {
			t.Errorf("expected trailing slash stripped, got %q", cfg.ServerURL)
		}
		if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != "alice@example.com" {
			t.Errorf("expected lowercased allowed users, got %v", cfg.AllowedUsers)
		}
		if !cfg.TrustProxy {
			t.Error("expected TrustProxy=true")
		}
		if cfg.MaxSessions != 100 {
			t.Errorf("MaxSessions = %d", cfg.MaxSessions)
		}
	})
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]string
	}{
		{"relative vault path", map[string]string{"VAULT_PATH": "vault"}},
		{"empty remote url", map[string]string{"REMOTE_URL": ""}},
		{"remote url starts with dash", map[string]string{"REMOTE_URL": "-evil"}},
		{"remote url has control char", map[string]string{"REMOTE_URL": "git@example.com\x07/x.git"}},
		{"negative debounce", map[string]string{"DEBOUNCE_SECONDS": "-1"}},
		{"port too low", map[string]string{"PORT": "0"}},
		{"port too high", map[string]string{"PORT": "70000"}},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"non-absolute server url", map[string]string{"SERVER_URL": "gateway.example.com"}},
		{"zero access ttl", map[string]string{"ACCESS_TOKEN_TTL": "0"}},
		{"empty allowed users", map[string]string{"ALLOWED_USERS": ""}},
		{"zero max sessions", map[string]string{"MAX_SESSIONS": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withEnv(t, tc.overrides, func() {
				if _, err := Load(); err == nil {
					t.Error("expected error, got nil")
				}
			})
		})
	}
}

func TestLoad_DebounceZeroAllowed(t *testing.T) {
	withEnv(t, map[string]string{"DEBOUNCE_SECONDS": "0"}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DebounceSeconds != 0 {
			t.Errorf("DebounceSeconds = %d", cfg.DebounceSeconds)
		}
	})
}
