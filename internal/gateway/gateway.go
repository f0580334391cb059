package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/tasklet/internal/credential"
	"github.com/florianilch/tasklet/internal/metrics"
	"github.com/florianilch/tasklet/internal/observability/middleware"
)

// CollectionPrefix is the path prefix forwarded to the task service.
const CollectionPrefix = "/api/tasks/"

// allowedHeaders defines the request headers passed through to the task service.
// Inbound Authorization is deliberately absent: the gateway supplies its own credential.
var allowedHeaders = map[string]bool{
	"Accept":          true,
	"Accept-Encoding": true,
	"Accept-Language": true,
	"Content-Type":    true,
	"Content-Length":  true,
	"If-Match":        true,
	"If-None-Match":   true,
	"X-Request-Id":    true,

	// W3C Trace Context for distributed tracing correlation.
	"Traceparent": true,
	"Tracestate":  true,
}

// Option configures a Gateway.
type Option func(*config)

type config struct {
	transport http.RoundTripper
	metrics   *metrics.Metrics
}

// WithTransport sets the base transport for upstream requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.transport = transport
	}
}

// WithMetrics instruments served requests and exposes the registry at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Gateway is a local HTTP server that forwards task collection requests to the
// task service with the bearer credential attached.
type Gateway struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Gateway implements http.Handler
var _ http.Handler = (*Gateway)(nil)

// New creates a Gateway forwarding to the service at baseURL, authorized by ts.
func New(ts oauth2.TokenSource, baseURL string, opts ...Option) (*Gateway, error) {
	if ts == nil {
		return nil, fmt.Errorf("missing token source")
	}
	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host required", baseURL)
	}

	cfg := &config{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(cfg)
	}

	reverseProxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()

			filtered := make(http.Header, len(pr.Out.Header))
			for key, values := range pr.Out.Header {
				if allowedHeaders[key] || isForwardedHeader(key) {
					filtered[key] = values
				}
			}
			pr.Out.Header = filtered
		},
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   cfg.transport,
		},
		ErrorHandler: upstreamErrorHandler,
	}

	logger := slog.Default()

	var collection http.Handler = reverseProxy
	if cfg.metrics != nil {
		collection = cfg.metrics.InstrumentHandler(collection)
	}

	mux := http.NewServeMux()
	mux.Handle(CollectionPrefix, middleware.Chain(collection,
		middleware.Logging(logger),
		middleware.Recovery,
	))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	if cfg.metrics != nil {
		mux.Handle("GET /metrics", cfg.metrics.Handler())
	}

	return &Gateway{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return g.Serve(ctx, listener), nil
}

// Serve serves on an existing listener in the background. See Start.
func (g *Gateway) Serve(ctx context.Context, listener net.Listener) <-chan error {
	g.server = &http.Server{
		Handler:      g,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// upstreamErrorHandler answers requests the gateway could not forward.
func upstreamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var authErr *credential.AuthenticationError
	if errors.As(err, &authErr) {
		slog.ErrorContext(ctx, "gateway could not authenticate", "error", err)
		writeJSONError(ctx, w, "upstream authentication failed", http.StatusBadGateway)
		return
	}
	if ctx.Err() != nil {
		// Client went away, nobody is left to answer
		return
	}

	slog.ErrorContext(ctx, "upstream request failed", "error", err)
	writeJSONError(ctx, w, "upstream unavailable", http.StatusBadGateway)
}

// isForwardedHeader reports whether key is one of the X-Forwarded-* headers set by SetXForwarded.
func isForwardedHeader(key string) bool {
	switch key {
	case "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto":
		return true
	}
	return false
}
