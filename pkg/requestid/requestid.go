// Package requestid correlates log records across one request: middleware
// assigns an ID, context helpers carry it, and LoggerExtractor feeds it to
// the logger's context extractors.
package requestid

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header is the canonical request-ID header name.
const Header = "X-Request-ID"

// Client-supplied IDs are reused only when they look sane; anything else is
// replaced with a fresh UUID rather than rejected.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

type contextKey struct{}

// WithContext stores the request ID in the context.
func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request ID, or "" when none is set.
func FromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// Middleware attaches a request ID to every request, echoing it back in the
// response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if !validID.MatchString(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), requestID)))
	})
}

// LoggerExtractor adapts FromContext to the logger's ContextExtractor shape.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if requestID := FromContext(ctx); requestID != "" {
			return slog.String("request_id", requestID), true
		}
		return slog.Attr{}, false
	}
}
