package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/service"
)

// Response messages.
const (
	MsgUsernameTaken      = "Username is already taken."
	MsgEmailTaken         = "Email is already associated with another account."
	MsgInvalidCredentials = "Invalid credentials."
	MsgUserNotFound       = "User not found."
	MsgInvalidBody        = "Invalid request body."
	MsgBodyTooLarge       = "Request body too large."
	MsgRouteNotFound      = "Route not found."
	MsgMethodNotAllowed   = "Method not allowed."
	MsgLoggedOut          = "Logged out successfully."
	MsgDeactivated        = "Account deactivated successfully."
	MsgPasswordUpdated    = "Password updated successfully."
)

// Internal error messages, one per operation.
var internalMessages = map[string]string{
	service.OpRegister:       "We're having trouble creating your account. Please try again soon.",
	service.OpLogin:          "We're having trouble logging you in, please try again soon.",
	service.OpGetProfile:     "Error fetching profile, please try again soon.",
	service.OpUpdateProfile:  "Error updating profile.",
	service.OpChangePassword: "Error changing password, please try again soon.",
	service.OpDeactivate:     "Error deleting profile, please try again soon.",
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the public projection of an identity. It never carries
// the password hash.
type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Active    *bool      `json:"active,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// userSummary is returned by register and login.
func userSummary(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// userUpdated is returned by profile updates.
func userUpdated(u *domain.User) UserResponse {
	r := userSummary(u)
	updatedAt := u.UpdatedAt
	r.UpdatedAt = &updatedAt
	return r
}

// userProfile is returned by profile reads.
func userProfile(u *domain.User) UserResponse {
	r := userUpdated(u)
	active := u.IsActive
	r.Active = &active
	return r
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage writes {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageResponse{Message: msg})
}

// writeError maps a service error to a status code and a safe message.
// Internal errors are logged and replaced with the operation's message.
func writeError(w http.ResponseWriter, logger zerolog.Logger, op string, err error) {
	var (
		verr *service.ValidationError
		dup  *domain.DuplicateFieldError
		mbe  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: verr.Message, Errors: verr.Fields()})

	case errors.As(err, &dup):
		msg := MsgUsernameTaken
		if dup.Field == domain.FieldEmail {
			msg = MsgEmailTaken
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Message: msg,
			Errors:  map[string]string{dup.Field: msg},
		})

	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserInactive):
		writeMessage(w, http.StatusUnauthorized, MsgInvalidCredentials)

	case errors.Is(err, domain.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)

	case errors.As(err, &mbe):
		writeMessage(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)

	case errors.Is(err, errInvalidBody):
		writeMessage(w, http.StatusBadRequest, MsgInvalidBody)

	default:
		logger.Error().Err(err).Str("operation", op).Msg("request failed")
		msg, ok := internalMessages[op]
		if !ok {
			msg = http.StatusText(http.StatusInternalServerError)
		}
		writeMessage(w, http.StatusInternalServerError, msg)
	}
}

var errInvalidBody = errors.New("invalid request body")

// decodeJSON reads a JSON body into dst. Unknown fields are ignored and an
// empty body decodes as an empty object.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return errInvalidBody
	}
}
