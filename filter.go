package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
	"github.com/opsforge/go-identity/middleware/bearer"
)

// principalLookupTimeout bounds the store lookup that turns a token subject
// into a principal. The filter sits on every request and must never block it.
const principalLookupTimeout = 2 * time.Second

// SecurityFilter is the per request authentication gate. It runs on every
// request: valid bearer tokens attach claims to the request context, anything
// else lets the request continue unauthenticated. Rejection is the job of the
// role gates mounted on specific routes, never of the filter itself.
type SecurityFilter struct {
	cfg           Config
	tokens        TokenService
	public        *PublicRoutes
	store         UserStore
	logger        Logger
	lookupTimeout time.Duration
	enricher      func(context.Context, AccessClaims) context.Context
}

func NewSecurityFilter(cfg Config, tokens TokenService) *SecurityFilter {
	return &SecurityFilter{
		cfg:           cfg,
		tokens:        tokens,
		public:        DefaultPublicRoutes(),
		logger:        defLogger{},
		lookupTimeout: principalLookupTimeout,
		enricher: func(ctx context.Context, claims AccessClaims) context.Context {
			return WithClaimsContext(ctx, claims)
		},
	}
}

func (f *SecurityFilter) WithLogger(logger Logger) *SecurityFilter {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithPublicRoutes replaces the default allow list.
func (f *SecurityFilter) WithPublicRoutes(routes *PublicRoutes) *SecurityFilter {
	if routes != nil {
		f.public = routes
	}
	return f
}

// WithPrincipalStore enables principal resolution: once a token validates,
// the subject is looked up in the store and the resulting account rides the
// request context alongside the claims. A subject that no longer resolves
// leaves the request unauthenticated.
func (f *SecurityFilter) WithPrincipalStore(store UserStore) *SecurityFilter {
	f.store = store
	return f
}

// WithLookupTimeout overrides the bound on principal store lookups.
func (f *SecurityFilter) WithLookupTimeout(d time.Duration) *SecurityFilter {
	if d > 0 {
		f.lookupTimeout = d
	}
	return f
}

// Middleware returns the always-on filter. Public routes skip extraction
// entirely, and any token failure degrades to an unauthenticated request.
func (f *SecurityFilter) Middleware() router.MiddlewareFunc {
	mw := bearer.New(bearer.Config{
		Optional: true,
		Filter: func(ctx router.Context) bool {
			return f.public.Matches(ctx.Path())
		},
		TokenValidator: f.validator(),
		SuccessHandler: f.principalHandler(),
		ContextKey:     f.cfg.GetContextKey(),
		TokenLookup:    f.cfg.GetTokenLookup(),
		AuthScheme:     f.cfg.GetAuthScheme(),
	})
	return f.guarded(mw)
}

// Protect returns a strict gate for routes that require authentication.
// minRole may be empty to require any authenticated caller.
func (f *SecurityFilter) Protect(minRole UserRole) router.MiddlewareFunc {
	return bearer.New(bearer.Config{
		TokenValidator:  f.validator(),
		ContextKey:      f.cfg.GetContextKey(),
		TokenLookup:     f.cfg.GetTokenLookup(),
		AuthScheme:      f.cfg.GetAuthScheme(),
		MinimumRole:     minRole,
		ContextEnricher: f.contextEnricher(),
		ErrorHandler:    f.rejectHandler(),
	})
}

func (f *SecurityFilter) validator() bearer.TokenValidator {
	return validatorAdapter{tokens: f.tokens}
}

// principalHandler runs after a token validates. It attaches the claims to
// the request context and, when a store is configured, resolves the subject
// to the stored account. Claims and principal are installed together or not
// at all: a token whose subject no longer exists must not read as
// authenticated, so the claims are stripped again on a failed lookup.
func (f *SecurityFilter) principalHandler() router.HandlerFunc {
	return func(ctx router.Context) error {
		claims, ok := GetRouterClaims(ctx, f.cfg.GetContextKey())
		if !ok {
			return ctx.Next()
		}

		stdCtx := f.enricher(ctx.Context(), claims)

		if f.store == nil {
			ctx.SetContext(stdCtx)
			return ctx.Next()
		}

		lookupCtx, cancel := context.WithTimeout(ctx.Context(), f.lookupTimeout)
		defer cancel()

		user, err := f.store.GetByEmail(lookupCtx, claims.Subject())
		if err != nil {
			f.logger.Info("token subject did not resolve to an account", "subject", claims.Subject(), "error", err)
			ctx.Locals(f.cfg.GetContextKey(), nil)
			return ctx.Next()
		}

		ctx.SetContext(WithPrincipal(stdCtx, user))
		return ctx.Next()
	}
}

// guarded keeps anything thrown during authentication inside the filter. The
// security state is dropped and the request continues unauthenticated.
func (f *SecurityFilter) guarded(mw router.MiddlewareFunc) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		h := mw(next)
		return func(ctx router.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("authentication filter recovered from panic", "path", ctx.Path(), "panic", r)
					ctx.Locals(f.cfg.GetContextKey(), nil)
					err = ctx.Next()
				}
			}()
			return h(ctx)
		}
	}
}

func (f *SecurityFilter) contextEnricher() func(context.Context, bearer.AccessClaims) context.Context {
	return func(ctx context.Context, claims bearer.AccessClaims) context.Context {
		ac, ok := claims.(AccessClaims)
		if !ok {
			return ctx
		}
		return f.enricher(ctx, ac)
	}
}

func (f *SecurityFilter) rejectHandler() router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		reason := "invalid"
		if IsTokenExpiredError(err) {
			reason = "expired"
		} else if IsMalformedError(err) {
			reason = "malformed"
		}

		// which check failed stays in the log, the response is one constant
		// payload for every rejection
		f.logger.Info("request rejected by role gate", "path", ctx.Path(), "reason", reason, "error", err)

		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": "Invalid authentication token",
		})
	}
}

// validatorAdapter bridges TokenService to the middleware's validator
// interface, the return types differ even though the claims are the same
// value.
type validatorAdapter struct {
	tokens TokenService
}

func (v validatorAdapter) Validate(tokenString string) (bearer.AccessClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
