package cli

import "time"

// Default configuration constants.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultTimeout = 10 * time.Second
	// PasswordEnv is read when -password is not given.
	PasswordEnv = "VAUVA_PASSWORD"
)

// Config holds one CLI invocation's settings.
type Config struct {
	BaseURL  string
	Account  string
	Password string
	// Rater overrides the remembered rater and is remembered afterwards.
	Rater string
	// Round is the extension round to work in, 0 for the base round.
	Round     int
	PrefsPath string
	Timeout   time.Duration
	Verbose   bool
}
