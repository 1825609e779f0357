package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims represents validated bearer token claims
type AccessClaims interface {
	Subject() string
	Role() string
	Name() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AccessClaims. The subject is
// the account email; validity is carried entirely by the signature and the
// registered expiry, nothing is persisted server-side.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole string `json:"role,omitempty"`
	FullName string `json:"name,omitempty"`
}

// Verify interface compliance
var _ AccessClaims = (*JWTClaims)(nil)

// Subject returns the subject claim, the account email
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Name returns the display name claim
func (c *JWTClaims) Name() string {
	return c.FullName
}

// HasRole checks if the claims carry a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the claims' role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return RoleIsAtLeast(UserRole(c.UserRole), UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
