package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipal sets the authenticated User in the given context
func WithPrincipal(r context.Context, user *User) context.Context {
	return context.WithValue(r, principalCtxKey, user)
}

// PrincipalFromContext finds the authenticated user from the context.
func PrincipalFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AccessClaims in the given context
func WithClaimsContext(r context.Context, claims AccessClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AccessClaims from the standard context
func GetClaims(ctx context.Context) (AccessClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AccessClaims)
	return raw, ok
}

// GetRouterClaims extracts the AccessClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AccessClaims, bool) {
	if key == "" {
		key = "claims" // Default key used by the bearer middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AccessClaims)
	return claims, ok
}

// HasRoleAtLeast reports whether the request context carries a principal whose
// role meets the given minimum. Unauthenticated contexts always report false.
func HasRoleAtLeast(ctx context.Context, role UserRole) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.IsAtLeast(role)
}

// HasRoleAtLeastFromRouter is the router context counterpart of HasRoleAtLeast.
func HasRoleAtLeastFromRouter(ctx router.Context, role UserRole) bool {
	claims, ok := GetRouterClaims(ctx, "")
	if !ok {
		return false
	}
	return claims.IsAtLeast(role)
}
