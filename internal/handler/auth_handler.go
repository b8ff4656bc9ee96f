package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/service"
)

// CookieWriter builds Set-Cookie directives for sessions.
type CookieWriter interface {
	Cookie(s *auth.Session) *http.Cookie
}

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	accounts *service.AccountService
	cookies  CookieWriter
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService, cookies CookieWriter, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		cookies:  cookies,
		logger:   logger.With().Str("handler", "auth").Logger(),
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RegisterRoutes registers the auth routes. create guards registration.
func (h *AuthHandler) RegisterRoutes(r chi.Router, create func(http.Handler) http.Handler) {
	r.With(create).Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, service.OpRegister, err)
		return
	}

	out, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, service.OpRegister, err)
		return
	}

	http.SetCookie(w, h.cookies.Cookie(out.Session))
	writeJSON(w, http.StatusCreated, userSummary(out.User))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, service.OpLogin, err)
		return
	}

	out, err := h.accounts.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		writeError(w, h.logger, service.OpLogin, err)
		return
	}

	http.SetCookie(w, h.cookies.Cookie(out.Session))
	writeJSON(w, http.StatusOK, userSummary(out.User))
}

// Logout handles POST /api/auth/logout. It needs no session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.Cookie(h.accounts.Logout(r.Context())))
	writeMessage(w, http.StatusOK, MsgLoggedOut)
}
