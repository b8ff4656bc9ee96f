package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := New()

	m.RecordOperation("register", nil)
	m.RecordOperation("register", nil)
	m.RecordOperation("login", errors.New("invalid credentials"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.AccountOperations.WithLabelValues("register", OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AccountOperations.WithLabelValues("login", OutcomeFailure)))

	var nilMetrics *Metrics
	nilMetrics.RecordOperation("register", nil)
	nilMetrics.RecordRateLimited("create")
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/"+id, nil))
	}

	require.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/users/{id}", http.MethodGet, "418")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRateLimited("create")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `cs_ratelimit_rejected_total{class="create"} 1`), body)
	require.Contains(t, body, "go_goroutines")
}
