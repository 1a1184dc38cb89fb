// Package app provides application lifecycle management for the source registry server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsnow-ops/source-registry-server/internal/config"
)

// SourceRegistryApp encapsulates all components needed to run the source registry API server.
// It provides lifecycle management and graceful shutdown capabilities
type SourceRegistryApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the rebuild dispatcher, the consistency auditor and the HTTP server.
// This method blocks until the HTTP server stops or encounters an error
func (app *SourceRegistryApp) Start() error {
	if err := app.components.Dispatcher.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start rebuild dispatcher: %w", err)
	}

	g, gctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		// A failed audit never takes the API down
		if err := app.components.Auditor.Start(gctx); err != nil {
			slog.Error("Consistency auditor failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout.
// The HTTP server stops first so that no new rebuild request is accepted; a
// rebuild command that is already running is left running.
func (app *SourceRegistryApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if err := app.components.Auditor.Stop(); err != nil {
		slog.Error("Failed to stop consistency auditor", "error", err)
	}

	if err := app.components.Dispatcher.Stop(shutdownCtx); err != nil {
		slog.Error("Failed to stop rebuild dispatcher", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SourceRegistryApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SourceRegistryApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the wired components
func (app *SourceRegistryApp) GetComponents() *AppComponents {
	return app.components
}
