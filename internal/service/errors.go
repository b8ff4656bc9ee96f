// Package service provides business logic services for the credential service.
package service

import (
	"errors"
	"strings"
)

// Common service errors.
var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInternalError wraps store and hashing failures.
	ErrInternalError = errors.New("internal server error")
)

// Violation is one rejected input field.
type Violation struct {
	Field   string
	Message string
}

// ValidationError reports malformed, missing or out-of-range input.
// Message is the first violation, suitable for showing to the caller as is.
type ValidationError struct {
	Message    string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) <= 1 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the violations keyed by field. The first violation of a
// field wins.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Violations))
	for _, v := range e.Violations {
		if _, seen := fields[v.Field]; !seen {
			fields[v.Field] = v.Message
		}
	}
	return fields
}

// newValidationError returns nil when there are no violations.
func newValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Message: violations[0].Message, Violations: violations}
}

// fieldError returns a single-field ValidationError.
func fieldError(field, message string) error {
	return &ValidationError{
		Message:    message,
		Violations: []Violation{{Field: field, Message: message}},
	}
}
