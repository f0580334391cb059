package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/tasklet/internal/secretstore"
)

// TokenPath is the token endpoint, relative to the service base URL.
const TokenPath = "api/auth/token/"

// maxTokenResponseSize bounds how much of a token response is decoded.
const maxTokenResponseSize = 1 << 20

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for token exchanges.
// If not provided, a client with a 30 second timeout over http.DefaultTransport is used.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithObserver registers a callback invoked after every token exchange with its outcome.
func WithObserver(observe func(err error)) Option {
	return func(p *Provider) {
		p.observe = observe
	}
}

// Provider hands out a bearer credential, exchanging the configured
// username and password for it at most once while exchanges succeed.
type Provider struct {
	tokenURL   string
	username   string
	secrets    secretstore.Store
	httpClient *http.Client
	observe    func(err error)

	token        atomic.Pointer[oauth2.Token]
	inflight     singleflight.Group
	acquisitions atomic.Int64
}

// tokenRequest is the JSON body posted to the token endpoint.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse holds the fields read from a token endpoint response.
// Other fields (e.g. the refresh token) are ignored.
type tokenResponse struct {
	Access string `json:"access"`
}

// NewProvider creates a Provider for the service at baseURL.
// No I/O is performed until the first Token call; the password is read from
// secrets at that point.
func NewProvider(baseURL, username string, secrets secretstore.Store, opts ...Option) (*Provider, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	if username == "" {
		return nil, fmt.Errorf("missing username")
	}
	if secrets == nil {
		return nil, fmt.Errorf("missing secret store")
	}

	p := &Provider{
		tokenURL: strings.TrimRight(baseURL, "/") + "/" + TokenPath,
		username: username,
		secrets:  secrets,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Token returns the cached credential, acquiring it first if none is cached.
//
// Concurrent callers share one in-flight exchange. If ctx ends while waiting,
// Token returns ctx.Err(); the exchange itself runs to completion and its
// result is cached for later callers.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := p.token.Load(); tok != nil {
		return tok, nil
	}

	ch := p.inflight.DoChan("token", func() (any, error) {
		// A previous flight may have finished between Load and DoChan
		if tok := p.token.Load(); tok != nil {
			return tok, nil
		}

		tok, err := p.acquire(context.WithoutCancel(ctx))
		if p.observe != nil {
			p.observe(err)
		}
		if err != nil {
			return nil, err
		}

		p.token.Store(tok)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// Acquisitions returns the number of token exchanges sent so far.
func (p *Provider) Acquisitions() int64 {
	return p.acquisitions.Load()
}

// acquire performs a single token exchange against the token endpoint.
func (p *Provider) acquire(ctx context.Context) (*oauth2.Token, error) {
	password, err := p.secrets.Read(ctx)
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("reading password: %w", err)}
	}

	body, err := json.Marshal(tokenRequest{Username: p.username, Password: password})
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("encoding token request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("creating token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	p.acquisitions.Add(1)
	slog.DebugContext(ctx, "requesting access token", "url", p.tokenURL, "username", p.username)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain for connection reuse, the body may echo credentials so it is not surfaced
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenResponseSize))
		slog.WarnContext(ctx, "token exchange rejected", "status", resp.StatusCode)
		return nil, &AuthenticationError{StatusCode: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseSize)).Decode(&tr); err != nil {
		return nil, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding token response: %w", err),
		}
	}
	if tr.Access == "" {
		return nil, &AuthenticationError{StatusCode: resp.StatusCode, Err: errMissingAccess}
	}

	slog.DebugContext(ctx, "access token acquired")

	return &oauth2.Token{
		AccessToken: tr.Access,
		TokenType:   "Bearer",
	}, nil
}
