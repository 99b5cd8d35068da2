package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrAlreadyExists      = fmt.Errorf("participant already exists")
	ErrNotFound           = fmt.Errorf("participant not found")
	ErrValidation         = fmt.Errorf("validation failed")
	ErrInvalidSender      = fmt.Errorf("%w: invalid sender", ErrValidation)
	ErrInvalidLimit       = fmt.Errorf("%w: invalid limit", ErrValidation)
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
)

// Storage tags a backend failure so callers can match it with ErrStorageUnavailable
// while keeping the underlying cause in the chain.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// Validation tags a rejected input.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
