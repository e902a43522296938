package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Middleware enforces the limiter per client IP. Limiter errors let the
// request through.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			class := Classify(r)
			ip := requestcontext.ClientIP(ctx)

			result, degraded, err := l.Check(ctx, class, ip)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed", "error", err, "class", class)
				next.ServeHTTP(w, r)
				return
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if degraded {
				h.Set("X-RateLimit-Status", "degraded")
			}

			if !result.Allowed {
				l.metrics.IncrementRejected(string(class))
				h.Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
