package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/newsnow-ops/source-registry-server/internal/audit"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/service"
	"github.com/newsnow-ops/source-registry-server/internal/status"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
	"github.com/newsnow-ops/source-registry-server/internal/validators"
)

const (
	// ServiceTracerName names the tracer of the source service spans
	ServiceTracerName = "github.com/newsnow-ops/source-registry-server/service"

	// RebuildTracerName names the tracer of the rebuild run spans
	RebuildTracerName = "github.com/newsnow-ops/source-registry-server/rebuild"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Registry owns the registry document and the extraction modules
	Registry registry.SourceRegistry

	// Service provides source registration business logic
	Service service.SourceService

	// Dispatcher runs the rebuild command in the background
	Dispatcher *rebuild.Dispatcher

	// Auditor checks the registry for orphans in the background
	Auditor *audit.Auditor
}

// NewComponents wires the registry, the rebuild dispatcher, the service and the
// auditor described by the configuration. Nothing is started.
func NewComponents(opts ...SourceRegistryAppOptions) (*AppComponents, error) {
	b, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(b)
}

func buildComponents(b *sourceRegistryAppConfig) (*AppComponents, error) {
	slog.Info("Initializing source registry components")

	if b.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	cfg := b.config

	reg := b.registry
	if reg == nil {
		reg = registry.NewFileSourceRegistry(registry.FileConfig{
			DocumentPath:    cfg.GetDocumentPath(),
			ModulesDir:      cfg.GetModulesDir(),
			ModuleExtension: cfg.GetModuleExtension(),
			StateDir:        cfg.GetStateDir(),
			LockTimeout:     cfg.GetLockTimeout(),
		})
	}

	registryMetrics, err := telemetry.NewRegistryMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}
	rebuildMetrics, err := telemetry.NewRebuildMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create rebuild metrics: %w", err)
	}

	dispatcher := buildDispatcher(b, rebuildMetrics)

	svc, err := buildService(b, reg, dispatcher, registryMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build source service: %w", err)
	}

	auditOpts := []audit.Option{
		audit.WithInterval(cfg.GetAuditInterval()),
		audit.WithRollbackOrphans(cfg.Audit.RollbackOrphans),
		audit.WithMetrics(registryMetrics),
	}
	if cfg.WatchDocument() {
		auditOpts = append(auditOpts, audit.WithWatchPath(cfg.GetDocumentPath()))
	}

	slog.Info("Source registry components initialized",
		"document", cfg.GetDocumentPath(),
		"modules_dir", cfg.GetModulesDir(),
		"rebuild_enabled", dispatcher.Enabled())

	return &AppComponents{
		Registry:   reg,
		Service:    svc,
		Dispatcher: dispatcher,
		Auditor:    audit.New(reg, auditOpts...),
	}, nil
}

func buildDispatcher(b *sourceRegistryAppConfig, metrics *telemetry.RebuildMetrics) *rebuild.Dispatcher {
	cfg := b.config

	opts := []rebuild.DispatcherOption{
		rebuild.WithStatusPersistence(status.NewFileStatusPersistence(cfg.GetStateDir())),
		rebuild.WithRunLock(filepath.Join(cfg.GetStateDir(), rebuild.RunLockFileName)),
		rebuild.WithMetrics(metrics),
	}
	if b.runner != nil {
		opts = append(opts, rebuild.WithRunner(b.runner))
	}
	if tracer := b.tracer(RebuildTracerName); tracer != nil {
		opts = append(opts, rebuild.WithTracer(tracer))
	}

	return rebuild.NewDispatcher(
		rebuild.NewCommand(cfg.Rebuild.Command, cfg.Rebuild.WorkDir, cfg.Rebuild.Env),
		opts...,
	)
}

func buildService(
	b *sourceRegistryAppConfig,
	reg registry.SourceRegistry,
	dispatcher *rebuild.Dispatcher,
	metrics *telemetry.RegistryMetrics,
) (service.SourceService, error) {
	cfg := b.config

	idValidator, err := validators.NewSourceIDValidator(cfg.GetIDPattern(), cfg.GetMaxIDLength())
	if err != nil {
		return nil, fmt.Errorf("failed to create identifier validator: %w", err)
	}
	configValidator, err := validators.NewSourceConfigValidator(cfg.Validation.ConfigSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create configuration validator: %w", err)
	}
	if configValidator.HasSchema() {
		slog.Info("Source configurations are validated against a schema", "schema", cfg.Validation.ConfigSchema)
	}

	opts := []service.Option{
		service.WithTrigger(dispatcher),
		service.WithStatusReader(dispatcher),
		service.WithIDValidator(idValidator),
		service.WithConfigValidator(configValidator),
		service.WithMaxCodeBytes(cfg.GetMaxCodeBytes()),
		service.WithMetrics(metrics),
	}
	if tracer := b.tracer(ServiceTracerName); tracer != nil {
		opts = append(opts, service.WithTracer(tracer))
	}

	return service.New(reg, opts...)
}

func (b *sourceRegistryAppConfig) tracer(name string) trace.Tracer {
	if b.tracerProvider == nil {
		return nil
	}
	return b.tracerProvider.Tracer(name)
}
