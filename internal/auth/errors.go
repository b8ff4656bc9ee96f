package auth

import (
	"errors"
	"net/http"
)

// Session and credential errors.
var (
	// ErrNoToken indicates the request carried no session cookie.
	ErrNoToken = errors.New("no session token")

	// ErrInvalidToken indicates the token is malformed, has a bad signature,
	// or carries no subject.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrTokenExpired indicates the token's exp claim has passed.
	ErrTokenExpired = errors.New("session token expired")

	// ErrSecretTooShort indicates the signing secret is shorter than MinSecretLength.
	ErrSecretTooShort = errors.New("signing secret too short")

	// ErrPasswordTooLong indicates the password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// AuthError represents an authorization failure with its HTTP status.
type AuthError struct {
	// Message is the client-facing message.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int

	// Err is the underlying cause.
	Err error
}

func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError from a session error.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrNoToken):
		return &AuthError{
			Message:    MessageNoToken,
			HTTPStatus: http.StatusUnauthorized,
			Err:        err,
		}

	default:
		return &AuthError{
			Message:    MessageTokenFailed,
			HTTPStatus: http.StatusUnauthorized,
			Err:        err,
		}
	}
}
