package voting

import "errors"

var (
	ErrNoRater       = errors.New("no active rater")
	ErrUnknownRater  = errors.New("rater not permitted for account")
	ErrInvalidScore  = errors.New("score must be between 1 and 5")
	ErrNoRound       = errors.New("no extension round active")
	ErrNotRated      = errors.New("name has no hearts")
	ErrNoPersistence = errors.New("no persistence configured")
)
