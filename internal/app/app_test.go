package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordansmalls/cs/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        3030,
			MaxBodySize: 1 << 20,
			Environment: config.EnvDevelopment,
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(t.TempDir(), "cs.db"),
			AutoMigrate: true,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "0123456789abcdef0123456789abcdef",
			TokenTTL:   time.Hour,
			CookieName: "jwt",
			BcryptCost: 4,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			Backend:   "memory",
			KeyPrefix: "cs:rl",
			Create:    config.LimitConfig{Window: time.Minute, Max: 5, Message: "Too many create requests from this IP. Please wait a minute and try again."},
			General:   config.LimitConfig{Window: 15 * time.Minute, Max: 100, Message: "Too many requests from this IP, please try again after 15 minutes."},
			Account:   config.LimitConfig{Window: 5 * time.Minute, Max: 50, Message: "Too many user account action requests from this IP. Please wait a few minutes and try again."},
		},
	}
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, base string) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: base, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (c *client) hasSession() bool {
	u, err := url.Parse(c.base)
	require.NoError(c.t, err)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "jwt" && ck.Value != "" {
			return true
		}
	}
	return false
}

func startApp(t *testing.T, cfg *config.Config) (*App, *httptest.Server) {
	t.Helper()

	a, err := New(context.Background(), cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func register(username, email, password string) map[string]string {
	return map[string]string{"username": username, "email": email, "password": password}
}

func TestAccountLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	_, srv := startApp(t, testConfig(t))
	alice := newClient(t, srv.URL)

	// Register starts a session.
	status, body := alice.do(http.MethodPost, "/api/auth/register", register("alice", "alice@ex.com", "secret1"))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@ex.com", body["email"])
	id := body["id"]
	require.NotEmpty(t, id)
	require.True(t, alice.hasSession())

	status, body = alice.do(http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, id, body["id"])

	// Too-short username.
	other := newClient(t, srv.URL)
	status, body = other.do(http.MethodPost, "/api/auth/register", register("al", "a@b.com", "secret1"))
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "username")
	assert.False(t, other.hasSession())

	// Duplicate username.
	status, body = other.do(http.MethodPost, "/api/auth/register", register("alice", "new@ex.com", "secret1"))
	require.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["errors"], "username")

	// Wrong password sets no cookie.
	status, body = other.do(http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice", "password": "wrongpass"})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials.", body["message"])
	assert.False(t, other.hasSession())

	// Wrong current password leaves the password unchanged.
	status, _ = alice.do(http.MethodPut, "/api/users/password", map[string]string{"currentPassword": "nope123", "newPassword": "secret2"})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = other.do(http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, id, body["id"])
	assert.True(t, other.hasSession())

	// Logout clears the cookie; the profile is then out of reach.
	status, _ = other.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, other.hasSession())

	status, body = other.do(http.MethodGet, "/api/users/profile", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized, no token.", body["message"])

	// Deactivation clears the cookie and blocks further logins.
	status, _ = alice.do(http.MethodDelete, "/api/users/profile", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, alice.hasSession())

	status, _ = alice.do(http.MethodPost, "/api/auth/login", map[string]string{"identifier": "alice@ex.com", "password": "secret1"})
	require.Equal(t, http.StatusUnauthorized, status)

	// The identifiers stay reserved.
	status, _ = other.do(http.MethodPost, "/api/auth/register", register("alice", "fresh@ex.com", "secret1"))
	require.Equal(t, http.StatusConflict, status)
}

func TestCreateRateLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	a, srv := startApp(t, testConfig(t))
	c := newClient(t, srv.URL)

	// Five attempts pass the guard whatever their validity; the sixth is rejected.
	for i := 0; i < 5; i++ {
		status, body := c.do(http.MethodPost, "/api/auth/register", register("x", "bad", "1"))
		require.Equal(t, http.StatusBadRequest, status, body)
	}

	status, body := c.do(http.MethodPost, "/api/auth/register", register("valid_user", "valid@ex.com", "secret1"))
	require.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, a.Config.RateLimit.Create.Message, body["message"])

	_, err := a.Store.Repos.User.GetByUsername(context.Background(), "valid_user")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `cs_ratelimit_rejected_total{class="create"} 1`)
}

func TestNew_MemoryWithoutOptionalComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{Driver: "memory"}
	cfg.Metrics.Enabled = false
	cfg.RateLimit.Enabled = false

	a, srv := startApp(t, cfg)
	require.Nil(t, a.Limiter)
	require.Nil(t, a.MetricsHandler())

	c := newClient(t, srv.URL)
	status, body := c.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["database"])
}

func TestNew_InvalidSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := New(context.Background(), cfg, zerolog.Nop(), "test")
	require.Error(t, err)
}
