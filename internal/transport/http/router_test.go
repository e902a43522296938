package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/internal/platform/metrics"
	"seedtrace/internal/platform/middleware"
	"seedtrace/internal/ratelimit"
	"seedtrace/pkg/requestcontext"
)

type echoHandler struct{}

func (echoHandler) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		actor := requestcontext.Actor(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]string{
			"actor":      actor.ID,
			"role":       actor.Role,
			"request_id": requestcontext.RequestID(r.Context()),
			"client_ip":  requestcontext.ClientIP(r.Context()),
		})
	})
	r.Post("/echo", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(requireActor bool, checks map[string]HealthCheck) (http.Handler, *metrics.Metrics) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	return NewRouter(RouterConfig{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:      m,
		RequireActor: requireActor,
		HealthChecks: checks,
	}, echoHandler{}), m
}

func TestRouterPropagatesRequestContext(t *testing.T) {
	router, m := newTestRouter(false, nil)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(middleware.HeaderActorID, "inspector-7")
	req.Header.Set(middleware.HeaderRequestID, "req-123")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "inspector-7", body["actor"])
	assert.Equal(t, "operator", body["role"])
	assert.Equal(t, "req-123", body["request_id"])
	assert.Equal(t, "203.0.113.9", body["client_ip"])
	assert.Equal(t, "req-123", w.Header().Get(middleware.HeaderRequestID))
	assert.Positive(t, m.AverageResponseTime())
}

func TestRouterRequireActorOnWrites(t *testing.T) {
	router, _ := newTestRouter(true, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(middleware.HeaderActorID, "grower-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRecoversPanics(t *testing.T) {
	router, _ := newTestRouter(false, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(false, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "route not found"))
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _ := newTestRouter(false, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, w.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		router, _ := newTestRouter(false, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"dial tcp: refused"}}`, w.Body.String())
	})
}

func TestRouterRateLimitsPerClientIP(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassWrite: {Requests: 2, Window: time.Minute},
	})
	router := NewRouter(RouterConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     metrics.NewWithRegisterer(prometheus.NewRegistry()),
		RateLimiter: limiter,
	}, echoHandler{})

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/echo", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, post("203.0.113.1"))
	assert.Equal(t, http.StatusCreated, post("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.1"))
	assert.Equal(t, http.StatusCreated, post("203.0.113.2"))

	// reads are not limited in this configuration
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
