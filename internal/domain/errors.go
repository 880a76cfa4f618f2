// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Every domain-level error wraps exactly one of these so the
// transport layer can map it to a response code with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("state conflict")
	ErrNotFound   = errors.New("not found")
)

// Validationf builds a validation failure (malformed input, empty identifier,
// missing required text).
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf builds a state-conflict failure (operation not permitted in the
// aggregate's current state). These are not transient and must not be retried.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found failure for a missing aggregate.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
