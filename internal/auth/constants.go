// Package auth provides password hashing, session token issuance and the
// session-cookie middleware for the credential service.
package auth

import "time"

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultCookieName is the session cookie name.
	DefaultCookieName = "jwt"

	// DefaultTokenTTL is the session token lifetime.
	DefaultTokenTTL = 30 * 24 * time.Hour

	// DefaultBcryptCost is the default bcrypt work factor.
	DefaultBcryptCost = 10

	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72

	// MinSecretLength is the shortest accepted signing secret.
	MinSecretLength = 32

	// ClaimIssuer is the "iss" claim of session tokens.
	ClaimIssuer = "cs"
)

// =============================================================================
// Authorization Messages
// =============================================================================

const (
	// MessageNoToken is returned when a protected route has no session cookie.
	MessageNoToken = "Not authorized, no token."

	// MessageTokenFailed is returned when the session cookie does not verify.
	MessageTokenFailed = "Not authorized, token failed."
)
