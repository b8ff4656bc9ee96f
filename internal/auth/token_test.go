package auth

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, secure bool) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{Secret: testSecret, Secure: secure})
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{Secret: "short"})
	require.ErrorIs(t, err, ErrSecretTooShort)

	issuer := newTestIssuer(t, false)
	require.Equal(t, DefaultCookieName, issuer.CookieName())
	require.Equal(t, DefaultTokenTTL, issuer.TTL())
}

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t, false)

	s, err := issuer.Issue("user-1")
	require.NoError(t, err)
	require.False(t, s.Revoked())
	require.WithinDuration(t, time.Now().Add(DefaultTokenTTL), s.ExpiresAt, 5*time.Second)

	userID, err := issuer.Parse(s.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)

	_, err = issuer.Issue("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_ParseFailures(t *testing.T) {
	issuer := newTestIssuer(t, false)
	s, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Parse("")
	require.ErrorIs(t, err, ErrNoToken)

	_, err = issuer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Tampered signature.
	_, err = issuer.Parse(s.Token[:len(s.Token)-2] + "xx")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Different secret.
	other, err := NewTokenIssuer(TokenConfig{Secret: strings.Repeat("z", 32)})
	require.NoError(t, err)
	_, err = other.Parse(s.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Algorithm "none" is rejected.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ClaimIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := newTestIssuer(t, false)
	issuer.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
	s, err := issuer.Issue("user-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(s.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_Cookie(t *testing.T) {
	issuer := newTestIssuer(t, true)
	s, err := issuer.Issue("user-1")
	require.NoError(t, err)

	c := issuer.Cookie(s)
	require.Equal(t, "jwt", c.Name)
	require.Equal(t, s.Token, c.Value)
	require.Equal(t, "/", c.Path)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.Equal(t, 30*24*60*60, c.MaxAge)

	cleared := issuer.Cookie(issuer.Revoke())
	require.Equal(t, "jwt", cleared.Name)
	require.Empty(t, cleared.Value)
	require.Equal(t, int64(0), cleared.Expires.Unix())
	require.Zero(t, cleared.MaxAge)
	require.True(t, cleared.HttpOnly)
	require.Contains(t, cleared.String(), "Expires=Thu, 01 Jan 1970 00:00:00 GMT")

	dev := newTestIssuer(t, false)
	require.False(t, dev.Cookie(s).Secure)
}
