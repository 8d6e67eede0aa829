package environment

import (
	"context"
	"log/slog"
	"net/http"
)

// Middleware attaches the environment to every request context so handlers
// and loggers can branch on it without extra plumbing.
func Middleware(env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), env)))
		})
	}
}

// LoggerExtractor exposes the context environment as a slog attribute, for
// use with logger.WithContextExtractors.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if env := FromContext(ctx); env != "" {
			return slog.String("env", string(env)), true
		}
		return slog.Attr{}, false
	}
}
