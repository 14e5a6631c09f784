package service

import "errors"

// Sentinel error kinds returned by the service.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrUnknownRater       = errors.New("rater not permitted for account")
	ErrUnknownName        = errors.New("name not in catalog")
	ErrInvalidRound       = errors.New("invalid round")
	ErrInvalidBatch       = errors.New("invalid save batch")
)
