package shared

import "errors"

var (
	// ErrNotFound indicates a missing account, lease, invoice or payment.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a forbidden lifecycle transition.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a lost sequence or balance race; callers may retry.
	ErrConflict = errors.New("conflict")
)
