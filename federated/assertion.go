// Package federated turns identity assertions from an external IdP into
// local accounts and bearer tokens. The assertion format is provider
// agnostic, verification happens against the provider's published JWK set.
package federated

import (
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Assertion is the provider independent claim set extracted from a verified
// ID token. Raw keeps the full claim map for callers that need provider
// specific fields.
type Assertion struct {
	Subject string
	Email   string
	Name    string
	Raw     map[string]any
}

// AssertionVerifier validates a raw ID token string and maps its claims into
// an Assertion.
type AssertionVerifier interface {
	Verify(rawToken string) (*Assertion, error)
}

// JWKSVerifier validates assertions against a remote JWK set. Keys refresh in
// the background, unknown key IDs trigger an immediate refresh.
type JWKSVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches the JWK set from the given URL and keeps it fresh.
func NewJWKSVerifier(jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch JWK set")
	}

	return &JWKSVerifier{
		keyfunc:  jwks.Keyfunc,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// NewVerifierWithKeyfunc builds a verifier around an existing key function,
// used in tests and for providers with static keys.
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		keyfunc:  kf,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses and validates a raw ID token and extracts the assertion.
// Providers disagree on where the email lives, so both the standard claim
// and preferred_username are consulted.
func (v *JWKSVerifier) Verify(rawToken string) (*Assertion, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.keyfunc, parserOptions...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAssertionExpired
		}
		return nil, goerrors.Wrap(err, ErrAssertionInvalid.Category, ErrAssertionInvalid.Message).
			WithTextCode(ErrAssertionInvalid.TextCode)
	}

	if !token.Valid {
		return nil, ErrAssertionInvalid
	}

	return NewAssertionFromClaims(claims), nil
}

// NewAssertionFromClaims maps a verified claim set into an Assertion.
func NewAssertionFromClaims(claims map[string]any) *Assertion {
	a := &Assertion{Raw: claims}

	if sub, ok := claims["sub"].(string); ok {
		a.Subject = sub
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		a.Email = email
	} else if upn, ok := claims["preferred_username"].(string); ok {
		a.Email = upn
	}

	if name, ok := claims["name"].(string); ok {
		a.Name = name
	}

	return a
}

var _ AssertionVerifier = (*JWKSVerifier)(nil)
