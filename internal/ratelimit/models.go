package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Class groups routes that share a limit.
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
	// ClassScan covers the public QR routes hit by consumer devices.
	ClassScan Class = "scan"
)

// Limit allows Requests per Window for one key.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until the window frees a slot.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// Classify picks the class for a request from its method and path.
func Classify(r *http.Request) Class {
	if strings.HasPrefix(r.URL.Path, "/qr/") || strings.HasPrefix(r.URL.Path, "/verify/") {
		return ClassScan
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}
