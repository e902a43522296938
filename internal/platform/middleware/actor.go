package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Headers carrying the operator identity resolved by the upstream gateway.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

const defaultActorRole = "operator"

// Actor copies the upstream identity headers into the request context.
// Requests without an actor run as requestcontext.SystemActor.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		role := strings.TrimSpace(r.Header.Get(HeaderActorRole))
		if role == "" {
			role = defaultActorRole
		}
		ctx := requestcontext.WithActor(r.Context(), requestcontext.ActorInfo{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActorOnWrites rejects state-changing requests that carry no actor.
// It must run after Actor.
func RequireActorOnWrites(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if requestcontext.Actor(ctx) == requestcontext.SystemActor {
				logger.WarnContext(ctx, "write rejected - missing actor",
					"request_id", requestcontext.RequestID(ctx),
					"method", r.Method,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing "+HeaderActorID+" header"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
