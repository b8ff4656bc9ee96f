// Package memory provides an in-memory identity store.
// This is suitable for development and tests; nothing survives a restart and
// it is NOT shared between instances.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/repository"
)

// UserRepository implements repository.UserRepository with maps guarded by a mutex.
// Unique indexes on username and email are enforced inside the same critical
// section as the write, mirroring a database unique constraint.
type UserRepository struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return domain.NewDuplicateFieldError(domain.FieldUsername, nil)
	}
	email := domain.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return domain.NewDuplicateFieldError(domain.FieldEmail, nil)
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	user.Email = email

	r.users[user.ID] = user.Clone()
	r.byUsername[user.Username] = user.ID
	r.byEmail[email] = user.ID

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(id)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(r.byUsername[username])
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(r.byEmail[domain.NormalizeEmail(email)])
}

// GetByLogin retrieves a user by username or email.
func (r *UserRepository) GetByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byUsername[identifier]; ok {
		return r.get(id)
	}
	return r.get(r.byEmail[domain.NormalizeEmail(identifier)])
}

// UpdateProfile sets username and/or email; empty values are kept.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, username, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	email = domain.NormalizeEmail(email)
	if owner, taken := r.byUsername[username]; username != "" && taken && owner != id {
		return nil, domain.NewDuplicateFieldError(domain.FieldUsername, nil)
	}
	if owner, taken := r.byEmail[email]; email != "" && taken && owner != id {
		return nil, domain.NewDuplicateFieldError(domain.FieldEmail, nil)
	}

	if username != "" {
		delete(r.byUsername, current.Username)
		current.Username = username
		r.byUsername[username] = id
	}
	if email != "" {
		delete(r.byEmail, current.Email)
		current.Email = email
		r.byEmail[email] = id
	}
	current.UpdatedAt = time.Now().UTC()

	return current.Clone(), nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.modify(ctx, id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

// SetActive sets the active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.modify(ctx, id, func(u *domain.User) { u.IsActive = active })
}

func (r *UserRepository) modify(ctx context.Context, id string, fn func(*domain.User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}
	fn(current)
	current.UpdatedAt = time.Now().UTC()
	return nil
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Ping always succeeds.
func (r *UserRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Health always succeeds.
func (r *UserRepository) Health(ctx context.Context) error {
	return r.Ping(ctx)
}

// Close is a no-op.
func (r *UserRepository) Close() error {
	return nil
}

// get must be called with the lock held.
func (r *UserRepository) get(id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

// Ensure UserRepository implements the repository interfaces.
var (
	_ repository.UserRepository = (*UserRepository)(nil)
	_ repository.DatabaseHealth = (*UserRepository)(nil)
)
