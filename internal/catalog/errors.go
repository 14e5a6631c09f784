package catalog

import "errors"

var (
	ErrUnknownView  = errors.New("unknown name list")
	ErrUnknownOrder = errors.New("unknown order")
	ErrInvalidPage  = errors.New("invalid page")
)
