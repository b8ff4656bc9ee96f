// Package repository defines data access interfaces for the credential service.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/jordansmalls/cs/internal/domain"
)

// UserRepository defines the interface for identity data access.
//
// Lookups return domain.ErrUserNotFound when nothing matches exactly.
// Writes that collide with another identity's username or email return a
// *domain.DuplicateFieldError naming the field. Writes touch only the
// columns they name and refresh UpdatedAt.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by exact, case-sensitive username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByLogin retrieves a user whose username equals identifier or whose
	// email equals the lower-cased identifier.
	GetByLogin(ctx context.Context, identifier string) (*domain.User, error)

	// UpdateProfile sets the username and/or email of an existing user and
	// returns the stored row. Empty values leave the column unchanged.
	// Password hash and active flag are never written.
	UpdateProfile(ctx context.Context, id, username, email string) (*domain.User, error)

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetActive writes only the active flag.
	SetActive(ctx context.Context, id string, active bool) error
}

// Repositories holds all repository instances.
type Repositories struct {
	User UserRepository
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
