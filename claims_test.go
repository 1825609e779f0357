package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/opsforge/go-identity"
)

func TestJWTClaimsAccessors(t *testing.T) {
	now := time.Now()
	claims := &identity.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "pepe.rone@example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserRole: identity.RoleNormal,
		FullName: "Pepe Rone",
	}

	assert.Equal(t, "pepe.rone@example.com", claims.Subject())
	assert.Equal(t, identity.RoleNormal, claims.Role())
	assert.Equal(t, "Pepe Rone", claims.Name())
	assert.WithinDuration(t, now.Add(time.Hour), claims.Expires(), time.Second)
	assert.WithinDuration(t, now, claims.IssuedAt(), time.Second)
}

func TestJWTClaimsRoleChecks(t *testing.T) {
	normal := &identity.JWTClaims{UserRole: identity.RoleNormal}
	admin := &identity.JWTClaims{UserRole: identity.RoleAdministrator}
	unknown := &identity.JWTClaims{UserRole: "superuser"}

	assert.True(t, normal.HasRole(identity.RoleNormal))
	assert.False(t, normal.HasRole(identity.RoleAdministrator))

	assert.True(t, normal.IsAtLeast(identity.RoleNormal))
	assert.False(t, normal.IsAtLeast(identity.RoleAdministrator))
	assert.True(t, admin.IsAtLeast(identity.RoleNormal))
	assert.True(t, admin.IsAtLeast(identity.RoleAdministrator))

	// roles outside the hierarchy never qualify
	assert.False(t, unknown.IsAtLeast(identity.RoleNormal))
}

func TestJWTClaimsZeroTimes(t *testing.T) {
	claims := &identity.JWTClaims{}

	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, identity.IsValidRole(identity.RoleNormal))
	assert.True(t, identity.IsValidRole(identity.RoleAdministrator))
	assert.False(t, identity.IsValidRole("root"))

	role, ok := identity.ParseRole("administrator")
	assert.True(t, ok)
	assert.Equal(t, identity.RoleAdministrator, role)

	_, ok = identity.ParseRole("root")
	assert.False(t, ok)

	assert.Equal(t, []identity.UserRole{identity.RoleNormal, identity.RoleAdministrator}, identity.GetAllRoles())
}
