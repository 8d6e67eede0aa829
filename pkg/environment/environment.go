package environment

import "context"

// Environment names a deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

type contextKey struct{}

// WithContext attaches the environment name to the context.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves the environment name, empty when unset.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// IsProduction reports whether the context carries the production
// environment. "prod" is accepted as shorthand from configuration.
func IsProduction(ctx context.Context) bool {
	env := FromContext(ctx)
	return env == Production || env == "prod"
}

// IsDevelopment reports whether the context carries the development
// environment.
func IsDevelopment(ctx context.Context) bool {
	env := FromContext(ctx)
	return env == Development || env == "dev"
}
