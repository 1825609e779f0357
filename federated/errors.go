package federated

import "github.com/goliatone/go-errors"

const (
	TextCodeAssertionInvalid = "federated_assertion_invalid"
	TextCodeAssertionExpired = "federated_assertion_expired"
	TextCodeProvisionFailed  = "federated_provision_failed"
)

// ErrAssertionInvalid is returned when an IdP assertion fails verification.
var ErrAssertionInvalid = errors.New("invalid identity assertion", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrAssertionExpired is returned when an IdP assertion is past its expiry.
var ErrAssertionExpired = errors.New("identity assertion expired", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrProvisionFailed is returned when the account record could not be
// created or updated during provisioning.
var ErrProvisionFailed = errors.New("failed to provision account", errors.CategoryInternal).
	WithTextCode(TextCodeProvisionFailed).
	WithCode(errors.CodeInternal)
