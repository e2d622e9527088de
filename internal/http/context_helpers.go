package httpx

import (
	"context"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
)

// authKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type authKey struct{}

// SetAuthInContext returns a child context that carries the authentication context.
// If ac is nil, the original ctx is returned unchanged.
func SetAuthInContext(ctx context.Context, ac *domainauth.Context) context.Context {
	if ac == nil {
		return ctx
	}
	return context.WithValue(ctx, authKey{}, ac)
}

// GetAuthFromContext returns the authentication context and whether one is present.
func GetAuthFromContext(ctx context.Context) (*domainauth.Context, bool) {
	if ac, ok := ctx.Value(authKey{}).(*domainauth.Context); ok && ac != nil {
		return ac, true
	}
	return nil, false
}

// GetUserFromContext returns a copy of the authenticated user.
func GetUserFromContext(ctx context.Context) (*domainauth.User, bool) {
	ac, ok := GetAuthFromContext(ctx)
	if !ok {
		return nil, false
	}
	u := ac.User()
	return &u, true
}

// IsAuthenticated reports whether the request carries an authentication context.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetAuthFromContext(ctx)
	return ok
}
