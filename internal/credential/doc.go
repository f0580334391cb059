// Package credential acquires and caches the bearer credential used to
// authorize calls against the task service.
//
// The service issues access tokens in exchange for a username and password
// posted as JSON to its token endpoint. The first successful exchange is kept
// for the lifetime of the Provider; tokens are never refreshed.
//
// # Usage
//
//	p, err := credential.NewProvider(baseURL, username, store)
//	tok, err := p.Token(ctx)
//	// tok.SetAuthHeader(req)
//
// # Concurrent acquisition
//
// Callers racing for the first token share a single in-flight exchange, so
// every caller observes the same credential. Failed exchanges are not cached;
// the next Token call starts a fresh one.
//
// # oauth2 Integration
//
// TokenSource adapts a Provider to oauth2.TokenSource for use with oauth2.Transport:
//
//	transport := &oauth2.Transport{Source: p.TokenSource(ctx), Base: base}
package credential
