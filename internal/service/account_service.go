package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/repository"
)

// Operation names used for metrics and logs.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpGetProfile     = "get_profile"
	OpUpdateProfile  = "update_profile"
	OpChangePassword = "change_password"
	OpDeactivate     = "deactivate"
)

// SessionIssuer mints and clears session tokens.
type SessionIssuer interface {
	Issue(userID string) (*auth.Session, error)
	Revoke() *auth.Session
}

// OperationRecorder observes operation outcomes.
type OperationRecorder interface {
	RecordOperation(operation string, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, error) {}

// AccountService handles registration, login and profile management.
// It is stateless per request; uniqueness races are settled by the store.
type AccountService struct {
	users   repository.UserRepository
	hasher  auth.PasswordHasher
	tokens  SessionIssuer
	metrics OperationRecorder
	logger  zerolog.Logger

	// dummyHash is verified against when no identity matches a login, so
	// unknown identifiers cost the same as wrong passwords.
	dummyOnce sync.Once
	dummyHash string
}

// AccountServiceConfig contains the dependencies of an AccountService.
type AccountServiceConfig struct {
	Users   repository.UserRepository
	Hasher  auth.PasswordHasher
	Tokens  SessionIssuer
	Metrics OperationRecorder
	Logger  zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(cfg AccountServiceConfig) *AccountService {
	m := cfg.Metrics
	if m == nil {
		m = noopRecorder{}
	}
	return &AccountService{
		users:   cfg.Users,
		hasher:  cfg.Hasher,
		tokens:  cfg.Tokens,
		metrics: m,
		logger:  cfg.Logger.With().Str("service", "account").Logger(),
	}
}

// RegisterInput contains the data needed to register a new identity.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput contains login credentials.
// Identifier is either the username or the email address.
type LoginInput struct {
	Identifier string
	Password   string
}

// UpdateProfileInput contains profile changes. Empty fields are left alone.
type UpdateProfileInput struct {
	UserID   string
	Username string
	Email    string
}

// ChangePasswordInput contains the data needed to change a password.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// SessionOutput is returned by operations that start a session.
type SessionOutput struct {
	User    *domain.User
	Session *auth.Session
}

// Register creates a new identity and starts a session for it.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (out *SessionOutput, err error) {
	defer func() { s.metrics.RecordOperation(OpRegister, err) }()

	if err := validateRegister(input); err != nil {
		return nil, err
	}

	// Pre-checks give fast, field-specific answers; the store's unique
	// constraints still decide races.
	if err := s.ensureAvailable(ctx, "", input.Username, domain.NormalizeEmail(input.Email)); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Username, input.Email, passwordHash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			s.logger.Info().Err(err).Str("username", input.Username).Msg("registration lost uniqueness race")
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	session, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("user registered")

	return &SessionOutput{User: user, Session: session}, nil
}

// Login authenticates by username or email and starts a session.
// Unknown identifiers, inactive accounts and wrong passwords all yield
// domain.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (out *SessionOutput, err error) {
	defer func() { s.metrics.RecordOperation(OpLogin, err) }()

	if err := validateLogin(input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByLogin(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(input.Password, s.dummy())
			s.logger.Debug().Msg("login for unknown identifier")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to load user for login")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	// Verify before checking the active flag so both paths cost a hash.
	passwordOK := s.hasher.Verify(input.Password, user.PasswordHash)
	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", user.ID).Msg("inactive user attempted login")
		return nil, domain.ErrInvalidCredentials
	}
	if !passwordOK {
		s.logger.Debug().Str("user_id", user.ID).Msg("invalid password during login")
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("user logged in")

	return &SessionOutput{User: user, Session: session}, nil
}

// Logout returns a session that clears the cookie. It never fails.
func (s *AccountService) Logout(ctx context.Context) *auth.Session {
	s.metrics.RecordOperation(OpLogout, nil)
	return s.tokens.Revoke()
}

// GetProfile returns the identity behind an authenticated session.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (user *domain.User, err error) {
	defer func() { s.metrics.RecordOperation(OpGetProfile, err) }()

	return s.loadActive(ctx, userID)
}

// UpdateProfile changes username and/or email.
func (s *AccountService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (user *domain.User, err error) {
	defer func() { s.metrics.RecordOperation(OpUpdateProfile, err) }()

	user, err = s.loadActive(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if err := validateUpdateProfile(input); err != nil {
		return nil, err
	}

	newUsername := ""
	if username := strings.TrimSpace(input.Username); username != "" && username != user.Username {
		newUsername = username
	}
	newEmail := ""
	if email := domain.NormalizeEmail(input.Email); email != "" && email != user.Email {
		newEmail = email
	}

	if newUsername == "" && newEmail == "" {
		return user, nil
	}

	if err := s.ensureAvailable(ctx, user.ID, newUsername, newEmail); err != nil {
		return nil, err
	}

	user, err = s.users.UpdateProfile(ctx, user.ID, newUsername, newEmail)
	if err != nil {
		return nil, s.mapUpdateError(err, input.UserID, "failed to update profile")
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Bool("username_changed", newUsername != "").
		Bool("email_changed", newEmail != "").
		Msg("profile updated")

	return user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AccountService) ChangePassword(ctx context.Context, input ChangePasswordInput) (err error) {
	defer func() { s.metrics.RecordOperation(OpChangePassword, err) }()

	if err := validateChangePassword(input); err != nil {
		return err
	}

	user, err := s.loadActive(ctx, input.UserID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(input.CurrentPassword, user.PasswordHash) {
		s.logger.Debug().Str("user_id", user.ID).Msg("wrong current password on password change")
		return fieldError(FieldCurrentPassword, MsgCurrentPasswordWrong)
	}

	passwordHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to hash password")
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return s.mapUpdateError(err, user.ID, "failed to update password")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// Deactivate soft-deletes the identity and clears the session cookie.
// The username and email stay reserved. Deactivating twice succeeds.
func (s *AccountService) Deactivate(ctx context.Context, userID string) (session *auth.Session, err error) {
	defer func() { s.metrics.RecordOperation(OpDeactivate, err) }()

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetActive(ctx, user.ID, false); err != nil {
		return nil, s.mapUpdateError(err, user.ID, "failed to deactivate user")
	}
	s.logger.Info().
		Str("user_id", user.ID).
		Bool("was_active", user.IsActive).
		Msg("user deactivated")

	return s.tokens.Revoke(), nil
}

// =============================================================================
// Helpers
// =============================================================================

// load fetches an identity by ID.
func (s *AccountService) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// loadActive fetches an identity that may still authenticate.
func (s *AccountService) loadActive(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", userID).Msg("inactive user presented a session")
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ensureAvailable checks username then email against other identities.
// Empty values are skipped; selfID is excluded.
func (s *AccountService) ensureAvailable(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		existing, err := s.users.GetByUsername(ctx, username)
		if err := s.takenBy(existing, err, selfID, domain.FieldUsername); err != nil {
			return err
		}
	}
	if email != "" {
		existing, err := s.users.GetByEmail(ctx, email)
		if err := s.takenBy(existing, err, selfID, domain.FieldEmail); err != nil {
			return err
		}
	}
	return nil
}

func (s *AccountService) takenBy(existing *domain.User, err error, selfID, field string) error {
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		s.logger.Error().Err(err).Str("field", field).Msg("failed to check uniqueness")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if existing.ID == selfID {
		return nil
	}
	return domain.NewDuplicateFieldError(field, nil)
}

// mapUpdateError passes through domain errors and wraps the rest.
func (s *AccountService) mapUpdateError(err error, userID, msg string) error {
	if errors.Is(err, domain.ErrUserAlreadyExists) || errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	s.logger.Error().Err(err).Str("user_id", userID).Msg(msg)
	return fmt.Errorf("%w: %v", ErrInternalError, err)
}

func (s *AccountService) issue(userID string) (*auth.Session, error) {
	session, err := s.tokens.Issue(userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to issue session token")
		return nil, fmt.Errorf("%w: failed to issue session", ErrInternalError)
	}
	return session, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		if h, err := s.hasher.Hash("not-a-real-password"); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
