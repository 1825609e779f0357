package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenExpired flags expired bearer or single-use tokens.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags structurally invalid bearer tokens.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeEmailTaken flags duplicate email registrations.
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeAlreadyVerified flags resend requests for enabled accounts.
	TextCodeAlreadyVerified = "ALREADY_VERIFIED"
	// TextCodeAccountDisabled flags authentication against disabled accounts.
	TextCodeAccountDisabled = "ACCOUNT_DISABLED"
)

// ErrTokenExpired is returned when a bearer token is past its expiry.
var ErrTokenExpired = errors.New("authentication token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail signature or structural checks.
var ErrTokenMalformed = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUserNotFound is returned when an operation requires an existing account.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrEmailTaken is returned when a registration or a racing provisioning
// collides with an existing email.
var ErrEmailTaken = errors.New("email already in use", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrAlreadyVerified is returned when resending verification to an enabled account.
var ErrAlreadyVerified = errors.New("account is already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrUserDisabled is returned when a disabled account attempts to authenticate.
var ErrUserDisabled = errors.New("account is not enabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the generic credential failure.
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty password input to the hasher.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) && rich.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsUniqueViolation reports whether err is the store's unique constraint
// rejection. The provisioning race policy depends on recognizing this across
// drivers, so we match the message shapes sqlite and postgres produce.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
