package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed requests: empty or
	// whitespace-only text, control characters, oversize input, unknown
	// source types and invalid batch parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable is returned at construction when a model backend
	// cannot be loaded or configured. It is not retried.
	ErrModelUnavailable = errors.New("model unavailable")
)

// InputError describes why a request was rejected. It matches
// ErrInvalidInput under errors.Is.
type InputError struct {
	Field  string
	Reason string
}

// NewInputError returns an *InputError for field.
func NewInputError(field, reason string) *InputError {
	return &InputError{Field: field, Reason: reason}
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Is reports ErrInvalidInput as a match.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// ModelUnavailable wraps cause as an ErrModelUnavailable for backend.
func ModelUnavailable(backend string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrModelUnavailable, backend)
	}
	return fmt.Errorf("%w: %s: %w", ErrModelUnavailable, backend, cause)
}
