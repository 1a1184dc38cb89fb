package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/newsnow-ops/source-registry-server/internal/api"
	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/service"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// SourceRegistryAppOptions is a function that configures the source registry app builder
type SourceRegistryAppOptions func(*sourceRegistryAppConfig) error

// sourceRegistryAppConfig holds the builder state.
// It supports dependency injection for testing while providing sensible defaults for production
type sourceRegistryAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	registry registry.SourceRegistry
	runner   rebuild.CommandRunner

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...SourceRegistryAppOptions) (*sourceRegistryAppConfig, error) {
	cfg := &sourceRegistryAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSourceRegistryApp builds the application from the given options
func NewSourceRegistryApp(
	ctx context.Context,
	opts ...SourceRegistryAppOptions,
) (*SourceRegistryApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := buildComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &SourceRegistryApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the handling time of a single request
func WithRequestTimeout(d time.Duration) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithSourceRegistry allows injecting a custom source registry (for testing)
func WithSourceRegistry(reg registry.SourceRegistry) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.registry = reg
		return nil
	}
}

// WithCommandRunner allows injecting a custom rebuild command runner (for testing)
func WithCommandRunner(runner rebuild.CommandRunner) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.runner = runner
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP, registry and rebuild metrics
func WithMeterProvider(mp metric.MeterProvider) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves handler on /metrics
func WithMetricsHandler(handler http.Handler) SourceRegistryAppOptions {
	return func(cfg *sourceRegistryAppConfig) error {
		cfg.metricsHandler = handler
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *sourceRegistryAppConfig,
	svc service.SourceService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Tracing and metrics go first so that they see every request
	var observability []func(http.Handler) http.Handler
	if b.tracerProvider != nil {
		observability = append(observability, telemetry.TracingMiddleware(b.tracerProvider))
		slog.Info("HTTP tracing middleware enabled")
	}
	if b.meterProvider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		if httpMetrics != nil {
			observability = append(observability, httpMetrics.Middleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	middlewares := append(observability, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithMetricsHandler(b.metricsHandler),
	}
	if b.config != nil {
		serverOpts = append(serverOpts, api.WithMaxBodyBytes(b.config.GetMaxBodyBytes()))
	}

	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
