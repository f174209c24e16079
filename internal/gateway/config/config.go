// Package config loads and validates the gateway's environment-variable
// configuration. All state is read once at startup; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the vault gateway.
type Config struct {
	VaultPath  string
	RemoteURL  string
	Branch     string
	UserName   string
	UserEmail  string

	SyncIntervalSeconds int
	DebounceSeconds      int

	Port int

	JWTSecret string

	ServerURL string

	AccessTokenTTLSeconds  int
	RefreshTokenTTLSeconds int

	FederatedClientID     string
	FederatedClientSecret string

	AllowedUsers []string // lowercased

	TrustProxy bool

	MaxSessions int

	// TrustedRedirectHosts supplements §4.3's "configured allowlist of
	// trusted front-end hosts" for non-loopback https redirect URIs.
	// Not in spec.md's env var table verbatim but required by its own
	// component description; exposed via TRUSTED_REDIRECT_HOSTS.
	TrustedRedirectHosts []string

	// ForbiddenDirNames supplements §4.2's "configured set, at minimum
	// .git and one other reserved name". Defaults cover the vault's own
	// VCS metadata directory and the Obsidian app-config directory.
	ForbiddenDirNames []string
}

// Load reads and validates configuration from the environment. Any
// violation of the constraints in spec.md §6 aborts with a descriptive
// error — the caller is expected to treat this as a fatal startup error.
func Load() (*Config, error) {
	cfg := &Config{
		ForbiddenDirNames: []string{".git", ".obsidian"},
	}

	var err error

	if cfg.VaultPath, err = requireAbsolutePath("VAULT_PATH"); err != nil {
		return nil, err
	}
	if cfg.RemoteURL, err = requireSafeString("REMOTE_URL"); err != nil {
		return nil, err
	}
	if cfg.Branch, err = requireSafeString("BRANCH"); err != nil {
		return nil, err
	}
	if cfg.UserName, err = requireSafeString("USER_NAME"); err != nil {
		return nil, err
	}
	if cfg.UserEmail, err = requireSafeString("USER_EMAIL"); err != nil {
		return nil, err
	}

	if cfg.SyncIntervalSeconds, err = requireNonNegativeInt("SYNC_INTERVAL_SECONDS"); err != nil {
		return nil, err
	}
	if cfg.DebounceSeconds, err = requireNonNegativeInt("DEBOUNCE_SECONDS"); err != nil {
		return nil, err
	}

	if cfg.Port, err = requireIntInRange("PORT", 1, 65535); err != nil {
		return nil, err
	}

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	cfg.JWTSecret = secret

	serverURL := strings.TrimRight(os.Getenv("SERVER_URL"), "/")
	if !isAbsoluteURL(serverURL) {
		return nil, fmt.Errorf("SERVER_URL must be an absolute URL")
	}
	cfg.ServerURL = serverURL

	if cfg.AccessTokenTTLSeconds, err = requirePositiveInt("ACCESS_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTLSeconds, err = requirePositiveInt("REFRESH_TOKEN_TTL"); err != nil {
		return nil, err
	}

	if cfg.FederatedClientID, err = requireNonEmpty("FEDERATED_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.FederatedClientSecret, err = requireNonEmpty("FEDERATED_CLIENT_SECRET"); err != nil {
		return nil, err
	}

	allowedRaw := os.Getenv("ALLOWED_USERS")
	users := splitAndTrim(allowedRaw)
	if len(users) == 0 {
		return nil, fmt.Errorf("ALLOWED_USERS must contain at least one entry")
	}
	for i, u := range users {
		users[i] = strings.ToLower(u)
	}
	cfg.AllowedUsers = users

	cfg.TrustProxy = parseBool(os.Getenv("TRUST_PROXY"))

	if cfg.MaxSessions, err = requirePositiveInt("MAX_SESSIONS"); err != nil {
		return nil, err
	}

	cfg.TrustedRedirectHosts = splitAndTrim(os.Getenv("TRUSTED_REDIRECT_HOSTS"))

	if extra := splitAndTrim(os.Getenv("VAULT_FORBIDDEN_DIRS")); len(extra) > 0 {
		cfg.ForbiddenDirNames = append(cfg.ForbiddenDirNames, extra...)
	}

	return cfg, nil
}

func requireNonEmpty(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func requireSafeString(key string) (string, error) {
	v, err := requireNonEmpty(key)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(v, "-") {
		return "", fmt.Errorf("%s must not begin with '-'", key)
	}
	if containsControlChar(v) {
		return "", fmt.Errorf("%s must not contain control characters", key)
	}
	return v, nil
}

func requireAbsolutePath(key string) (string, error) {
	v, err := requireNonEmpty(key)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(v, "/") {
		return "", fmt.Errorf("%s must be an absolute path", key)
	}
	return v, nil
}

func requireNonNegativeInt(key string) (int, error) {
	v := os.Getenv(key)
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func requirePositiveInt(key string) (int, error) {
	v := os.Getenv(key)
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func requireIntInRange(key string, min, max int) (int, error) {
	v := os.Getenv(key)
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, min, max)
	}
	return n, nil
}

func isAbsoluteURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

func containsControlChar(v string) bool {
	for _, r := range v {
		if r <= 0x1F || r == 0x7F {
			return true
		}
	}
	return false
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
