package services

import (
	"errors"
	"fmt"

	"xHuntAPI/internal/store"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyParticipating = errors.New("already participating in this challenge")
	ErrChallengeNotActive   = errors.New("challenge is not active")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrBookingCancelled     = errors.New("booking was cancelled")
	ErrPaymentUnavailable   = errors.New("payment provider not configured")
)

// storeErr maps a gateway error onto the service error kinds. Anything that
// is not a known condition counts as a persistence failure.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	default:
		return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, what, err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
