package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session token claims.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Session is the result of issuing or revoking a session token.
type Session struct {
	// Token is the signed JWT, or empty when revoked.
	Token string

	// ExpiresAt is the token expiry, or the Unix epoch when revoked.
	ExpiresAt time.Time
}

// Revoked reports whether the session clears the cookie.
func (s *Session) Revoked() bool {
	return s.Token == ""
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	// Secret is the HS256 signing key.
	Secret string

	// TTL is the token lifetime and cookie max-age.
	TTL time.Duration

	// CookieName is the session cookie name.
	CookieName string

	// Secure marks the cookie Secure. Disabled in development.
	Secure bool
}

// TokenIssuer mints, verifies and clears stateless session tokens.
type TokenIssuer struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		now:        time.Now,
	}, nil
}

// CookieName returns the session cookie name.
func (t *TokenIssuer) CookieName() string {
	return t.cookieName
}

// TTL returns the token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a new session token for userID.
func (t *TokenIssuer) Issue(userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ClaimIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// Revoke returns a session that clears the cookie.
func (t *TokenIssuer) Revoke() *Session {
	return &Session{ExpiresAt: time.Unix(0, 0).UTC()}
}

// Parse verifies a session token and returns its user ID.
func (t *TokenIssuer) Parse(token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ClaimIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}

	return claims.UserID, nil
}

// Cookie builds the Set-Cookie directive for s.
func (t *TokenIssuer) Cookie(s *Session) *http.Cookie {
	c := &http.Cookie{
		Name:     t.cookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if !s.Revoked() {
		c.MaxAge = int(t.ttl.Seconds())
	}
	return c
}
