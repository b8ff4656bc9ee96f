package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	// Parse returns the user ID carried by a valid token.
	Parse(token string) (string, error)

	// CookieName returns the session cookie name.
	CookieName() string
}

// Middleware creates a session middleware that requires a valid session cookie
// and attaches the caller's identity to the request context.
func Middleware(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(tokens.CookieName())
			if err != nil || cookie.Value == "" {
				writeAuthError(w, ErrNoToken)
				return
			}

			userID, err := tokens.Parse(cookie.Value)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("session verification failed")
				writeAuthError(w, err)
				return
			}

			r = r.WithContext(WithAuthContext(r.Context(), &AuthContext{UserID: userID}))
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError writes a JSON error response.
func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		authErr = NewAuthError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": authErr.Message})
}

var _ TokenVerifier = (*TokenIssuer)(nil)
