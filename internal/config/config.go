// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and VAUVA_ environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Store drivers understood by the repository factory.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

const minSessionSecretLen = 32

// Account is one login permitted to use the service together with the raters
// that may vote under it.
type Account struct {
	Login string `koanf:"login"`
	// Password is compared in constant time; PasswordHash (bcrypt) wins when both are set.
	Password     string   `koanf:"password"`
	PasswordHash string   `koanf:"password_hash"`
	Usernames    []string `koanf:"usernames"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the heart record store: sqlite or badger.
	StoreDriver string `koanf:"store_driver"`
	// StorePath is the SQLite database file or the Badger directory.
	StorePath string `koanf:"store_path"`
	// StoreInMemory keeps all data in memory (tests, demos).
	StoreInMemory bool `koanf:"store_in_memory"`

	// SessionSecret signs the session cookie.
	SessionSecret string `koanf:"session_secret"`
	// SessionName is the cookie name.
	SessionName string `koanf:"session_name"`
	// SessionMaxAgeSec bounds the session cookie lifetime.
	SessionMaxAgeSec int `koanf:"session_max_age_sec"`
	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool `koanf:"secure_cookies"`

	// Accounts lists the permitted logins.
	Accounts []Account `koanf:"accounts"`
	// AccountSpec is the compact form login:PASSWORD_ENV:USERNAMES_ENV[,...].
	// Entries are appended to Accounts.
	AccountSpec string `koanf:"account_spec"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// LoginRatePerMinute and LoginBurst throttle login attempts per account.
	LoginRatePerMinute float64 `koanf:"login_rate_per_minute"`
	LoginBurst         int     `koanf:"login_burst"`
	// DedupeSize bounds the remembered save idempotency keys.
	DedupeSize int `koanf:"dedupe_size"`
	// StrictNames rejects hearts for names missing from the catalog.
	StrictNames bool `koanf:"strict_names"`
	// CatalogPageSize is the default page size for GET /api/names.
	CatalogPageSize int `koanf:"catalog_page_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		StoreDriver:        DriverSQLite,
		StorePath:          "vauva.db",
		SessionName:        "vauva-session",
		SessionMaxAgeSec:   30 * 24 * 60 * 60,
		MaxBodyBytes:       100 * 1024,
		LoginRatePerMinute: 10,
		LoginBurst:         5,
		DedupeSize:         10_000,
		CatalogPageSize:    100,
	}
}

// Validate checks the invariants Load relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverSQLite, DriverBadger:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if !c.StoreInMemory && strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("%w: store_path must not be empty", ErrInvalidConfig)
	}
	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("%w: session_secret must be at least %d bytes", ErrInvalidConfig, minSessionSecretLen)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		if strings.TrimSpace(a.Login) == "" {
			return fmt.Errorf("%w: accounts[%d]: missing login", ErrInvalidConfig, i)
		}
		if a.Password == "" && a.PasswordHash == "" {
			return fmt.Errorf("%w: account %s: missing password", ErrInvalidConfig, a.Login)
		}
		if len(a.Usernames) == 0 {
			return fmt.Errorf("%w: account %s: no usernames", ErrInvalidConfig, a.Login)
		}
		if _, dup := seen[a.Login]; dup {
			return fmt.Errorf("%w: duplicate account %s", ErrInvalidConfig, a.Login)
		}
		seen[a.Login] = struct{}{}
	}
	return nil
}

// Account looks up a configured account by login.
func (c *Config) Account(login string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.Login == login {
			return a, true
		}
	}
	return Account{}, false
}
