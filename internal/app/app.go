package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/tasklet/internal/credential"
	"github.com/florianilch/tasklet/internal/gateway"
	"github.com/florianilch/tasklet/internal/metrics"
	"github.com/florianilch/tasklet/internal/observability"
	"github.com/florianilch/tasklet/internal/secretstore"
	"github.com/florianilch/tasklet/internal/tasks"
)

// App owns the credential provider and the task client built from one
// configuration, and runs the gateway on demand.
type App struct {
	cfg        *Config
	secrets    secretstore.Store
	metrics    *metrics.Metrics
	transport  http.RoundTripper
	credential *credential.Provider
	tasks      *tasks.Client
}

// New creates a new App instance. No I/O is performed; the password is read
// on the first call that needs a credential.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	secrets, err := cfg.Auth.NewSecretStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	m := metrics.New()

	// Outgoing calls are logged and tagged first, then counted
	transport := &observability.Transport{Base: m.InstrumentTransport(http.DefaultTransport)}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.API.Timeout,
	}

	provider, err := credential.NewProvider(cfg.API.BaseURL, cfg.API.Username, secrets,
		credential.WithHTTPClient(httpClient),
		credential.WithObserver(m.ObserveTokenAcquisition),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential provider: %w", err)
	}

	client, err := tasks.NewClient(cfg.API.BaseURL, provider, tasks.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create task client: %w", err)
	}

	return &App{
		cfg:        cfg,
		secrets:    secrets,
		metrics:    m,
		transport:  transport,
		credential: provider,
		tasks:      client,
	}, nil
}

// Tasks returns the task client.
func (a *App) Tasks() *tasks.Client {
	return a.tasks
}

// Secrets returns the configured password store.
func (a *App) Secrets() secretstore.Store {
	return a.secrets
}

// Metrics returns the metrics registry shared by the client and the gateway.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Credential returns the credential provider.
func (a *App) Credential() *credential.Provider {
	return a.credential
}

// Serve starts the gateway on the configured address and blocks until ctx is
// cancelled or the gateway fails.
func (a *App) Serve(ctx context.Context) error {
	gw, err := a.newGateway(ctx)
	if err != nil {
		return err
	}

	address := a.cfg.GatewayAddress()
	slog.InfoContext(ctx, "starting gateway", "address", address, "upstream", a.cfg.API.BaseURL)
	errCh, err := gw.Start(ctx, address)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	return a.run(ctx, gw, errCh, address)
}

// ServeListener is Serve on an existing listener.
func (a *App) ServeListener(ctx context.Context, listener net.Listener) error {
	gw, err := a.newGateway(ctx)
	if err != nil {
		_ = listener.Close()
		return err
	}

	address := listener.Addr().String()
	slog.InfoContext(ctx, "starting gateway", "address", address, "upstream", a.cfg.API.BaseURL)
	return a.run(ctx, gw, gw.Serve(ctx, listener), address)
}

func (a *App) newGateway(ctx context.Context) (*gateway.Gateway, error) {
	// The credential outlives individual gateway requests
	gw, err := gateway.New(a.credential.TokenSource(context.WithoutCancel(ctx)), a.cfg.API.BaseURL,
		gateway.WithTransport(a.transport),
		gateway.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return gw, nil
}

// run blocks until ctx is cancelled or the gateway reports a runtime error, then shuts down.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) run(ctx context.Context, gw *gateway.Gateway, gatewayErrCh <-chan error, address string) error {
	g, gCtx := errgroup.WithContext(ctx)

	shutdownFuncs := []func(context.Context) error{gw.Shutdown}

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "gateway ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("gateway stopped")
	return nil
}
