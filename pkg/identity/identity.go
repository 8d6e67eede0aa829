package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// User is the minimal identity the billing core needs about the caller.
type User struct {
	ID    uuid.UUID
	Email string
}

// Provider resolves the currently authenticated user.
type Provider interface {
	// CurrentUser returns the caller's identity, or ErrUnauthenticated when
	// the request carries no authenticated user.
	CurrentUser(ctx context.Context) (*User, error)
}

var ErrUnauthenticated = errors.New("no authenticated user")

type contextKey struct{}

// WithUser attaches an authenticated user to the context. The HTTP auth
// middleware calls this after validating the session.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// FromContext retrieves the authenticated user, if any.
func FromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(User)
	if !ok {
		return nil, false
	}
	return &user, true
}

// ContextProvider is a Provider reading the user placed in the context by
// the auth middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (*User, error) {
	user, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
