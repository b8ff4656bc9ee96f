// Package domain contains the core business entities for the credential service.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account has been deactivated.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Unique identity fields.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// DuplicateFieldError reports which unique field collided on write.
// It matches ErrUserAlreadyExists with errors.Is.
type DuplicateFieldError struct {
	// Field is FieldUsername or FieldEmail.
	Field string

	// Err is the underlying store error, if any.
	Err error
}

// NewDuplicateFieldError creates a DuplicateFieldError for field.
func NewDuplicateFieldError(field string, err error) *DuplicateFieldError {
	return &DuplicateFieldError{Field: field, Err: err}
}

// Error implements the error interface.
func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s: duplicate %s", ErrUserAlreadyExists.Error(), e.Field)
}

// Is reports whether target is ErrUserAlreadyExists.
func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrUserAlreadyExists
}

// Unwrap returns the underlying store error.
func (e *DuplicateFieldError) Unwrap() error {
	return e.Err
}
