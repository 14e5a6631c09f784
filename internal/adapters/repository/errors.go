package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrForeignRecord  = errors.New("record belongs to another account")
	ErrInvalidAccount = errors.New("invalid account")
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrStoreClosed    = errors.New("store closed")
)
