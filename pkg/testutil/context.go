package testutil

import (
	"net/http"
	"time"

	"seedtrace/pkg/requestcontext"
)

// WithActor sets the acting operator on the request context, as the actor
// middleware would for a request carrying identity headers.
func WithActor(req *http.Request, id, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{ID: id, Role: role})
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
