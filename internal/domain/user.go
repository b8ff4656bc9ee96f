// Package domain contains the core business entities for the credential service.
// These are pure Go structs with no external dependencies.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a registered identity.
type User struct {
	// ID is the opaque unique identifier, assigned at creation and immutable.
	ID string `json:"id"`

	// Username is the unique, case-sensitive login name.
	// Constraints: 3-20 characters of [A-Za-z0-9_].
	Username string `json:"username"`

	// Email is the unique email address, always stored lower-cased.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the most recently set password.
	// This must never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive is false once the account has been soft-deleted.
	// Inactive users cannot authenticate; their username and email stay reserved.
	IsActive bool `json:"active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp when the user was last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a new active User with a fresh ID.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// NormalizeEmail returns the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
