package credential

import (
	"context"

	"golang.org/x/oauth2"
)

// contextTokenSource binds a context to a Provider so it satisfies oauth2.TokenSource,
// whose Token method takes no context.
type contextTokenSource struct {
	ctx      context.Context
	provider *Provider
}

// Compile-time check to ensure contextTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = contextTokenSource{}

// TokenSource returns an oauth2.TokenSource backed by p. Acquisitions triggered
// through it use ctx, typically a long-lived server context.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return contextTokenSource{ctx: ctx, provider: p}
}

// Token returns the provider's credential.
func (s contextTokenSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx)
}
