package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"seedtrace/internal/platform/metrics"
	"seedtrace/internal/platform/middleware"
	"seedtrace/internal/ratelimit"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	RequireActor   bool
	HealthChecks   map[string]HealthCheck

	// RateLimiter is optional; nil disables limiting.
	RateLimiter *ratelimit.Limiter
}

const healthTimeout = 2 * time.Second

// NewRouter mounts the module handlers behind the shared middleware chain.
// /healthz and /metrics sit outside the request timeout.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Actor)
	r.Use(middleware.Observe(cfg.Logger, cfg.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		if cfg.RateLimiter != nil {
			r.Use(ratelimit.Middleware(cfg.RateLimiter, cfg.Logger))
		}
		if cfg.RequireActor {
			r.Use(middleware.RequireActorOnWrites(cfg.Logger))
		}
		for _, h := range handlers {
			h.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}

		g, gctx := errgroup.WithContext(ctx)
		outcomes := make([]error, len(names))
		for i, name := range names {
			g.Go(func() error {
				outcomes[i] = checks[name](gctx)
				return nil
			})
		}
		_ = g.Wait()

		results := make(map[string]string, len(names))
		status, code := "ok", http.StatusOK
		for i, name := range names {
			if outcomes[i] != nil {
				results[name] = outcomes[i].Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, code, healthResponse{Status: status, Checks: results})
	}
}
