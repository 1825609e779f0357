package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleNormal is a regular account
	RoleNormal UserRole = "normal"
	// RoleAdministrator can manage other accounts
	RoleAdministrator UserRole = "administrator"
)

// VerificationTokenTTL is the validity window for email verification tokens.
var VerificationTokenTTL = 24 * time.Hour

// PasswordResetTokenTTL is the validity window for password reset tokens.
var PasswordResetTokenTTL = 20 * time.Minute

// User is the identity record. A token column and its expiry column are
// always set or cleared together.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Name         string    `bun:"name" json:"name,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         UserRole  `bun:"user_role,notnull" json:"user_role,omitempty"`
	Enabled      bool      `bun:"enabled,notnull" json:"enabled"`

	VerificationToken       *string    `bun:"verification_token" json:"-"`
	VerificationTokenExpiry *time.Time `bun:"verification_token_expiry,nullzero" json:"-"`

	PasswordResetToken       *string    `bun:"password_reset_token" json:"-"`
	PasswordResetTokenExpiry *time.Time `bun:"password_reset_token_expiry,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email for use as the lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetVerificationToken installs a fresh verification token pair. Any previous
// token value stops being consumable once the record is persisted.
func (u *User) SetVerificationToken(token string, expiry time.Time) *User {
	u.VerificationToken = &token
	u.VerificationTokenExpiry = &expiry
	return u
}

// ClearVerificationToken removes the verification pair.
func (u *User) ClearVerificationToken() *User {
	u.VerificationToken = nil
	u.VerificationTokenExpiry = nil
	return u
}

// SetPasswordResetToken installs a fresh password reset token pair.
func (u *User) SetPasswordResetToken(token string, expiry time.Time) *User {
	u.PasswordResetToken = &token
	u.PasswordResetTokenExpiry = &expiry
	return u
}

// ClearPasswordResetToken removes the reset pair.
func (u *User) ClearPasswordResetToken() *User {
	u.PasswordResetToken = nil
	u.PasswordResetTokenExpiry = nil
	return u
}

// HasValidVerificationToken reports whether the stored verification token can
// still be consumed at now. Expiry comparison is strict: now >= expiry means
// expired.
func (u *User) HasValidVerificationToken(now time.Time) bool {
	if u.VerificationToken == nil || u.VerificationTokenExpiry == nil {
		return false
	}
	return now.Before(*u.VerificationTokenExpiry)
}

// HasValidPasswordResetToken reports whether the stored reset token can still
// be consumed at now.
func (u *User) HasValidPasswordResetToken(now time.Time) bool {
	if u.PasswordResetToken == nil || u.PasswordResetTokenExpiry == nil {
		return false
	}
	return now.Before(*u.PasswordResetTokenExpiry)
}

// NewIdentityFromUser adapts a stored user into an Identity value.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return userIdentity{
		id:      user.ID.String(),
		email:   user.Email,
		name:    user.Name,
		role:    user.Role,
		enabled: user.Enabled,
	}
}

type userIdentity struct {
	id      string
	email   string
	name    string
	role    string
	enabled bool
}

func (a userIdentity) ID() string    { return a.id }
func (a userIdentity) Email() string { return a.email }
func (a userIdentity) Name() string  { return a.name }
func (a userIdentity) Role() string  { return a.role }
func (a userIdentity) Enabled() bool { return a.enabled }

var _ Identity = userIdentity{}
