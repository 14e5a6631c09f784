package config

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
	// ErrAccountSpec marks a malformed account_spec entry or a missing variable it names.
	ErrAccountSpec = errors.New("invalid account spec")
)
