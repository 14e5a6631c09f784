// Package cli implements vauvactl, a terminal client for the vauva API.
// Each invocation logs in, restores the session, applies one command
// through a voting.Session and saves when something changed.
package cli

import (
	"io"
	"os"

	"github.com/okian/vauva/pkg/logger"
)

// SetupLogging initializes the global logger on stderr so command output
// on stdout stays clean.
func SetupLogging(verbose bool) error {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `vauvactl
========

Rate baby names with hearts from the terminal.

Usage:
  vauvactl [options] <command> [args]

Commands:
  names [girls|boys] [common|rare|abc|cba] [page]
        Page through the name catalog (no login needed)
  rate NAME SCORE
        Heart NAME with SCORE 1-5 as the active rater; the same score again removes it
  round NAME SCORE
        Score NAME in the round given by -round as the active rater
  results
        Hearts per rater, or the round matrix and standing with -round
  delete NAME...
        Remove the active rater's hearts for the names
  rounds
        List extension rounds
  logout
        End the session

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -account string
        Login
  -password string
        Password (default: $VAUVA_PASSWORD)
  -rater string
        Rater to act as; remembered for later invocations
  -round int
        Extension round, 0 for the base round
  -prefs string
        Preferences file (default: user config dir)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  vauvactl names boys abc
  vauvactl -account family -rater Anna rate Aino 5
  vauvactl -account family -round 1 round Aino 4
  vauvactl -account family -round 1 results
`)
}
