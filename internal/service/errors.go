package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found in the caller's branch
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g. duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when no authenticated user is present
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoBranch is returned when the caller has no branch scope
	ErrNoBranch = errors.New("no branch scope for request")

	// ErrOrderNotOpen is returned when an action needs a started order but the
	// order is already completed or cancelled
	ErrOrderNotOpen = errors.New("order is not open")
)

// ValidationError carries field-level messages for extraction/modal payloads
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// NewValidationError builds a ValidationError from field/message pairs
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
