package cli

import "errors"

var (
	ErrUsage          = errors.New("usage")
	ErrNoCredentials  = errors.New("account and password are required")
	ErrNoActiveRater  = errors.New("no rater selected; pass -rater")
	ErrUnknownCommand = errors.New("unknown command")
)
