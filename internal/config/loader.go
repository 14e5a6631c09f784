package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "VAUVA_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VAUVA_CONFIG is set
//  3. env (prefix VAUVA_)
//
// Accounts named in account_spec are resolved against the process environment
// and appended to the YAML accounts.
func Load(_ context.Context) (*Config, error) {
	return load(os.Getenv(envPrefix+"CONFIG"), os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// VAUVA_STORE_DRIVER -> store_driver; underscores are kept to match koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.AccountSpec != "" {
		accounts, err := ParseAccountSpec(cfg.AccountSpec, lookup)
		if err != nil {
			return nil, err
		}
		cfg.Accounts = append(cfg.Accounts, accounts...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseAccountSpec parses "login:PASSWORD_ENV:USERNAMES_ENV" entries separated
// by commas. The password and the comma separated usernames are read from the
// named environment variables through lookup.
func ParseAccountSpec(spec string, lookup func(string) (string, bool)) ([]Account, error) {
	var accounts []Account
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("%w: %q: want login:PASSWORD_ENV:USERNAMES_ENV", ErrAccountSpec, entry)
		}

		password, ok := lookup(parts[1])
		if !ok || password == "" {
			return nil, fmt.Errorf("%w: %s: variable %s is not set", ErrAccountSpec, parts[0], parts[1])
		}
		rawNames, ok := lookup(parts[2])
		if !ok {
			return nil, fmt.Errorf("%w: %s: variable %s is not set", ErrAccountSpec, parts[0], parts[2])
		}

		var usernames []string
		for _, u := range strings.Split(rawNames, ",") {
			if u = strings.TrimSpace(u); u != "" {
				usernames = append(usernames, u)
			}
		}

		a := Account{Login: parts[0], Usernames: usernames}
		if strings.HasPrefix(password, "$2") {
			a.PasswordHash = password
		} else {
			a.Password = password
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}
