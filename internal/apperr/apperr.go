// Package apperr holds the error kinds shared by the commerce packages so the
// HTTP layer can map them without knowing every sentinel.
package apperr

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every input validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError describes one rejected input. Its message is safe to show
// to the end user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
