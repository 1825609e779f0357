package federated

import (
	"net/url"
	"strings"
)

// BuildCallbackRedirect assembles the post-login redirect URL. The token and
// profile fields travel in the URI fragment, never the query string, so they
// stay out of server logs and Referer headers on the way to the client app.
func BuildCallbackRedirect(base string, outcome *Outcome) string {
	if outcome == nil || outcome.Kind != OutcomeToken {
		return base
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "#"))
	b.WriteString("#token=")
	b.WriteString(url.QueryEscape(outcome.Token))
	b.WriteString("&role=")
	b.WriteString(url.QueryEscape(outcome.Role))
	b.WriteString("&name=")
	b.WriteString(url.QueryEscape(outcome.Name))
	b.WriteString("&email=")
	b.WriteString(url.QueryEscape(outcome.Email))

	return b.String()
}
