// Package api provides the REST API server for the source registry.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/newsnow-ops/source-registry-server/internal/api/common"
	v0 "github.com/newsnow-ops/source-registry-server/internal/api/v0"
	v1 "github.com/newsnow-ops/source-registry-server/internal/api/v1"
	"github.com/newsnow-ops/source-registry-server/internal/service"
)

// ServerOption configures the source registry API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	maxBodyBytes   int64
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves handler on /metrics. A nil handler leaves the route unregistered.
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// WithMaxBodyBytes caps the size of request bodies
func WithMaxBodyBytes(n int64) ServerOption {
	return func(cfg *serverConfig) {
		cfg.maxBodyBytes = n
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.SourceService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.NotFound(common.NotFoundHandler)
	r.MethodNotAllowed(common.MethodNotAllowedHandler)

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	routeOpts := []v1.Option{v1.WithMaxBodyBytes(cfg.maxBodyBytes)}

	// Health check routes live at the root
	r.Mount("/", v0.HealthRouter(svc))

	r.Mount("/v1", v1.Router(svc, routeOpts...))

	// Paths used by the existing editor front-end
	r.Mount("/api", v1.LegacyRouter(svc, routeOpts...))

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
