package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/vauva/internal/app"
	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/domain/heart"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTooManyRequests  = errors.New("too many login attempts")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// NewKind returns an error of kind for operation op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind returns err tagged with kind for operation op.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, service.ErrUnknownAccount):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, heart.ErrInvalidRecord):
		return http.StatusBadRequest, "invalid_record"
	case errors.Is(err, service.ErrUnknownRater),
		errors.Is(err, service.ErrUnknownName),
		errors.Is(err, service.ErrInvalidRound),
		errors.Is(err, service.ErrInvalidBatch),
		errors.Is(err, catalog.ErrUnknownView),
		errors.Is(err, catalog.ErrUnknownOrder),
		errors.Is(err, catalog.ErrInvalidPage),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
