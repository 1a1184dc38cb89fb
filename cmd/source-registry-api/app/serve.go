package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
	"github.com/newsnow-ops/source-registry-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the source registry API server",
	Long: `Start the source registry API server.

The optional configuration file (--config) specifies:
- Where the registry document and the extraction modules live
- The rebuild command and its working directory
- Validation limits, the background consistency audit and telemetry

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 10 * time.Second // Registration writes two small files
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	address := viper.GetString("address")

	slog.Info("Starting source registry API server", "address", address)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithServiceVersion(versions.Current().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []registryapp.SourceRegistryAppOptions{
		registryapp.WithConfig(cfg),
		registryapp.WithAddress(address),
		registryapp.WithRequestTimeout(serverRequestTimeout),
		registryapp.WithMetricsHandler(tel.MetricsHandler()),
	}
	if cfg.Telemetry.MetricsEnabled() {
		opts = append(opts, registryapp.WithMeterProvider(tel.MeterProvider()))
	}
	if cfg.Telemetry.TracingEnabled() {
		opts = append(opts, registryapp.WithTracerProvider(tel.TracerProvider()))
	}

	app, err := registryapp.NewSourceRegistryApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		if err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
		return nil
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	return <-errChan
}
