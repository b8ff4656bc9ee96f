package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/service"
)

// UserHandler serves the authenticated profile routes.
type UserHandler struct {
	accounts *service.AccountService
	cookies  CookieWriter
	logger   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accounts *service.AccountService, cookies CookieWriter, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		cookies:  cookies,
		logger:   logger.With().Str("handler", "user").Logger(),
	}
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// RegisterRoutes registers the profile routes. The caller mounts the session
// and account-class middleware in front of r.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)
	r.Delete("/profile", h.Deactivate)
	r.Put("/password", h.ChangePassword)
}

// GetProfile handles GET /api/users/profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, service.OpGetProfile, err)
		return
	}

	writeJSON(w, http.StatusOK, userProfile(user))
}

// UpdateProfile handles PUT /api/users/profile.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, service.OpUpdateProfile, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), service.UpdateProfileInput{
		UserID:   userID,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, h.logger, service.OpUpdateProfile, err)
		return
	}

	writeJSON(w, http.StatusOK, userUpdated(user))
}

// Deactivate handles DELETE /api/users/profile.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	session, err := h.accounts.Deactivate(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, service.OpDeactivate, err)
		return
	}

	http.SetCookie(w, h.cookies.Cookie(session))
	writeMessage(w, http.StatusOK, MsgDeactivated)
}

// ChangePassword handles PUT /api/users/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, service.OpChangePassword, err)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, h.logger, service.OpChangePassword, err)
		return
	}

	writeMessage(w, http.StatusOK, MsgPasswordUpdated)
}

// userID returns the authenticated caller or writes a 401.
func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		authErr := auth.NewAuthError(err)
		writeMessage(w, authErr.HTTPStatus, authErr.Message)
		return "", false
	}
	return authCtx.UserID, true
}
