package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/metrics"
	"github.com/jordansmalls/cs/internal/ratelimit"
	"github.com/jordansmalls/cs/internal/repository"
	"github.com/jordansmalls/cs/internal/repository/memory"
	"github.com/jordansmalls/cs/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	handler http.Handler
	tokens  *auth.TokenIssuer
	users   repository.UserRepository
	metrics *metrics.Metrics
}

type serverOption func(*serverOptions)

type serverOptions struct {
	users   repository.UserRepository
	rules   map[ratelimit.Class]ratelimit.Rule
	db      Pinger
	limited bool
}

func withUsers(users repository.UserRepository) serverOption {
	return func(o *serverOptions) { o.users = users }
}

func withRules(rules map[ratelimit.Class]ratelimit.Rule) serverOption {
	return func(o *serverOptions) { o.rules = rules; o.limited = true }
}

func withDB(db Pinger) serverOption {
	return func(o *serverOptions) { o.db = db }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	o := &serverOptions{users: memory.NewUserRepository()}
	for _, opt := range opts {
		opt(o)
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)

	m := metrics.New()
	accounts := service.NewAccountService(service.AccountServiceConfig{
		Users:   o.users,
		Hasher:  auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:  tokens,
		Metrics: m,
		Logger:  zerolog.Nop(),
	})

	var limiter *ratelimit.Limiter
	if o.limited {
		store := ratelimit.NewMemoryStore()
		t.Cleanup(store.Stop)
		limiter = ratelimit.NewLimiter(store, o.rules, ratelimit.WithRejectHook(func(c ratelimit.Class) {
			m.RecordRateLimited(string(c))
		}))
	}

	rt := NewRouter(RouterConfig{
		Accounts: accounts,
		Tokens:   tokens,
		Limiter:  limiter,
		Metrics:  m,
		DB:       o.db,
		Server: config.ServerConfig{
			Environment:    "production",
			MaxBodySize:    1024,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Version: "test",
		Logger:  zerolog.Nop(),
	})

	return &testServer{handler: rt.Handler(), tokens: tokens, users: o.users, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username, email, password string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.DefaultCookieName)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// =============================================================================
// Auth routes
// =============================================================================

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotEmpty(t, body["createdAt"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)

	userID, err := s.tokens.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, body["id"], userID)
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "alice@example.com", "secret1")

	tests := []struct {
		name    string
		body    any
		status  int
		message string
		field   string
	}{
		{
			name:    "missing fields",
			body:    map[string]string{"username": "bob"},
			status:  http.StatusBadRequest,
			message: service.MsgAllFieldsRequired,
			field:   "email",
		},
		{
			name:    "invalid email",
			body:    map[string]string{"username": "bob", "email": "bob", "password": "secret1"},
			status:  http.StatusBadRequest,
			message: service.MsgInvalidEmail,
			field:   "email",
		},
		{
			name:    "duplicate username",
			body:    map[string]string{"username": "alice", "email": "bob@example.com", "password": "secret1"},
			status:  http.StatusConflict,
			message: MsgUsernameTaken,
			field:   "username",
		},
		{
			name:    "duplicate email",
			body:    map[string]string{"username": "bob", "email": "ALICE@example.com", "password": "secret1"},
			status:  http.StatusConflict,
			message: MsgEmailTaken,
			field:   "email",
		},
		{
			name:    "malformed json",
			body:    `{"username":`,
			status:  http.StatusBadRequest,
			message: MsgInvalidBody,
		},
		{
			name:    "body too large",
			body:    `{"username":"` + strings.Repeat("a", 2048) + `"}`,
			status:  http.StatusRequestEntityTooLarge,
			message: MsgBodyTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/auth/register", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			assert.Equal(t, tt.message, body["message"])
			if tt.field != "" {
				errs, ok := body["errors"].(map[string]any)
				require.True(t, ok, rec.Body.String())
				assert.Contains(t, errs, tt.field)
			}
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "alice@example.com", "secret1")

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "ALICE@example.com",
		"password":   "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice", decodeBody(t, rec)["username"])
	sessionCookie(t, rec)

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgInvalidCredentials, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgLoginFieldsRequired, decodeBody(t, rec)["message"])
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)

	// No session required.
	rec := s.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgLoggedOut, decodeBody(t, rec)["message"])

	setCookie := rec.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(setCookie, auth.DefaultCookieName+"=;"), setCookie)
	assert.Contains(t, setCookie, "Expires=Thu, 01 Jan 1970 00:00:00 GMT")
	assert.Contains(t, setCookie, "HttpOnly")
}

// =============================================================================
// Profile routes
// =============================================================================

func TestProfile_RequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MessageNoToken, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/users/profile", nil, &http.Cookie{Name: auth.DefaultCookieName, Value: "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MessageTokenFailed, decodeBody(t, rec)["message"])
}

func TestProfile_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register(t, "alice", "alice@example.com", "secret1")
	s.register(t, "bob", "bob@example.com", "secret1")

	rec := s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, true, body["active"])
	assert.NotEmpty(t, body["updatedAt"])

	rec = s.do(t, http.MethodPut, "/api/users/profile", map[string]string{"username": "bob"}, cookie)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, MsgUsernameTaken, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/users/profile", map[string]string{}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgUpdateNoFields, decodeBody(t, rec)["message"])

	// Fields are validated as sent, before trimming.
	rec = s.do(t, http.MethodPut, "/api/users/profile", map[string]string{"email": " new@ex.com"}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgUpdateInvalidEmail, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/users/profile", map[string]string{"username": "alice2", "email": "A2@example.com"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "alice2", body["username"])
	assert.Equal(t, "a2@example.com", body["email"])
	assert.NotEmpty(t, body["updatedAt"])
	assert.NotContains(t, body, "active")

	rec = s.do(t, http.MethodPut, "/api/users/password", map[string]string{
		"currentPassword": "nope12",
		"newPassword":     "secret2",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgCurrentPasswordWrong, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPut, "/api/users/password", map[string]string{
		"currentPassword": "secret1",
		"newPassword":     "secret2",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, MsgPasswordUpdated, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice2", "password": "secret2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgDeactivated, decodeBody(t, rec)["message"])
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Expires=Thu, 01 Jan 1970 00:00:00 GMT")

	// The old token still verifies, but the identity is inactive.
	rec = s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgInvalidCredentials, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice2", "password": "secret2"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Deactivating again still succeeds.
	rec = s.do(t, http.MethodDelete, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProfile_UnknownUser(t *testing.T) {
	s := newTestServer(t)

	session, err := s.tokens.Issue("ghost")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/users/profile", nil, s.tokens.Cookie(session))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgUserNotFound, decodeBody(t, rec)["message"])
}

type brokenRepo struct {
	*memory.UserRepository
}

func (brokenRepo) GetByID(context.Context, string) (*domain.User, error) {
	return nil, errors.New("connection reset")
}

func TestProfile_InternalError(t *testing.T) {
	s := newTestServer(t, withUsers(brokenRepo{memory.NewUserRepository()}))
	cookie := s.register(t, "alice", "alice@example.com", "secret1")

	rec := s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Error fetching profile, please try again soon.", body["message"])
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

// =============================================================================
// Rate limiting, health and misc
// =============================================================================

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, withRules(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassGeneral: {Window: time.Minute, Max: 100, Message: "general"},
		ratelimit.ClassCreate:  {Window: time.Minute, Max: 2, Message: "Too many create requests."},
		ratelimit.ClassAccount: {Window: time.Minute, Max: 1, Message: "Too many account requests."},
	}))

	s.register(t, "user_a", "a@example.com", "secret1")
	cookie := s.register(t, "user_b", "b@example.com", "secret1")

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "user_c",
		"email":    "c@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many create requests.", decodeBody(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get(ratelimit.HeaderRetryAfter))

	// Rejected registrations create nothing.
	_, err := s.users.GetByUsername(context.Background(), "user_c")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	// Login is not in the create class.
	rec = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "user_a", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(ratelimit.HeaderRemaining))

	// The account quota is spent before the session is checked.
	rec = s.do(t, http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many account requests.", decodeBody(t, rec)["message"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, withDB(memory.NewUserRepository()))

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "up", body["database"])

	rec = s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API is live", decodeBody(t, rec)["message"])
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("down") }

func TestHealth_DatabaseDown(t *testing.T) {
	s := newTestServer(t, withDB(downDB{}))

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decodeBody(t, rec)["database"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgRouteNotFound, decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/auth/login", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAreRecorded(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "alice@example.com", "secret1")

	rec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()

	assert.Contains(t, out, `cs_account_operations_total{operation="register",outcome="success"} 1`)
	assert.Contains(t, out, `route="/api/auth/register"`)
}
