// Package auth defines the identity types used across parley.
// Concrete verifiers live in separate packages (e.g., auth.remote).
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates a missing, malformed, or rejected credential.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the verified identity of a request.
// Token carries the original bearer credential so downstream calls
// (persistence, remote tool sources) can act on the user's behalf.
type Principal struct {
	UserID string
	Email  string
	Token  string
}

// Verifier validates a bearer token and resolves it to a Principal.
type Verifier interface {
	// Verify returns the principal for the token, or ErrUnauthorized
	// (possibly wrapped) when the token is invalid.
	Verify(ctx context.Context, token string) (Principal, error)
}

// Session is the result of a successful credential exchange.
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

// Exchanger exchanges user credentials for a session with the identity
// provider.
type Exchanger interface {
	// Login authenticates an existing user.
	Login(ctx context.Context, email, password string) (Session, error)

	// Signup registers a new user and returns their session.
	Signup(ctx context.Context, email, password string) (Session, error)
}

// principalContextKey is the unexported key for storing a Principal in context.
type principalContextKey struct{}

// WithPrincipal returns a new context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal from a context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
