package identity

import "strings"

// PublicRoutes is the allow list of paths that never require a bearer token.
// Entries ending in "/*" match the whole subtree, everything else matches the
// exact path.
type PublicRoutes struct {
	exact    map[string]struct{}
	prefixes []string
}

// DefaultPublicRoutes covers the endpoints a caller needs before they can
// hold a token.
func DefaultPublicRoutes() *PublicRoutes {
	return NewPublicRoutes(
		"/auth/login",
		"/auth/register",
		"/auth/verify-email",
		"/auth/resend-verification",
		"/auth/forgot-password",
		"/auth/reset-password",
		"/auth/federated/*",
		"/health",
	)
}

func NewPublicRoutes(routes ...string) *PublicRoutes {
	p := &PublicRoutes{
		exact: make(map[string]struct{}, len(routes)),
	}
	return p.Add(routes...)
}

func (p *PublicRoutes) Add(routes ...string) *PublicRoutes {
	for _, route := range routes {
		route = strings.TrimSpace(route)
		if route == "" {
			continue
		}
		if strings.HasSuffix(route, "/*") {
			p.prefixes = append(p.prefixes, strings.TrimSuffix(route, "*"))
			continue
		}
		p.exact[route] = struct{}{}
	}
	return p
}

// Matches reports whether the given request path is public.
func (p *PublicRoutes) Matches(path string) bool {
	if path == "" {
		return false
	}

	if _, ok := p.exact[path]; ok {
		return true
	}

	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}
