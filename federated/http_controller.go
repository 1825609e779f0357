package federated

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// SuccessRedirect is the client application URL that receives the token
	// fragment (default: "/")
	SuccessRedirect string

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController handles the federated login callback. The IdP posts the
// caller back here with an ID token, we verify it, provision the account,
// and hand the client application its bearer token in the URL fragment.
type HTTPController struct {
	verifier    AssertionVerifier
	provisioner *Provisioner
	config      HTTPConfig
}

// NewHTTPController creates the callback controller.
func NewHTTPController(verifier AssertionVerifier, provisioner *Provisioner, cfg HTTPConfig) *HTTPController {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}

	return &HTTPController{
		verifier:    verifier,
		provisioner: provisioner,
		config:      cfg,
	}
}

// RegisterRoutes registers the callback route.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/callback", c.Callback)
}

// Callback verifies the assertion and routes the caller by outcome: a token
// rides the fragment redirect, a pending account gets an activation notice,
// and anything unverifiable completes without identity.
func (c *HTTPController) Callback(ctx router.Context) error {
	rawToken := ctx.Query("id_token")
	if rawToken == "" {
		rawToken = ctx.Query("token")
	}

	if rawToken == "" {
		return c.handleError(ctx, ErrAssertionInvalid)
	}

	assertion, err := c.verifier.Verify(rawToken)
	if err != nil {
		return c.handleError(ctx, err)
	}

	outcome, err := c.provisioner.Provision(ctx.Context(), assertion)
	if err != nil {
		return c.handleError(ctx, err)
	}

	switch outcome.Kind {
	case OutcomeToken:
		return ctx.Redirect(BuildCallbackRedirect(c.config.SuccessRedirect, outcome), http.StatusFound)
	case OutcomePending:
		return ctx.JSON(router.StatusOK, map[string]any{
			"status":  "pending",
			"message": "account pending activation, check your email",
		})
	default:
		return ctx.JSON(router.StatusOK, map[string]any{
			"status": "anonymous",
		})
	}
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error": "authentication failed",
	})
}
