package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/newsnow-ops/source-registry-server/internal/otel"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/status"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
	"github.com/newsnow-ops/source-registry-server/internal/validators"
)

const (
	// DefaultMaxCodeBytes is the default size limit of an extraction module
	DefaultMaxCodeBytes = 1 << 20

	resultSuccess = "success"
)

// Option configures the source service
type Option func(*sourceService)

// WithTrigger sets the rebuild trigger. Without one, rebuild requests fail with
// rebuild.ErrRebuildDisabled.
func WithTrigger(trigger rebuild.Trigger) Option {
	return func(s *sourceService) {
		s.trigger = trigger
	}
}

// WithStatusReader sets where the rebuild status is read from
func WithStatusReader(reader StatusReader) Option {
	return func(s *sourceService) {
		s.statusReader = reader
	}
}

// WithIDValidator overrides the identifier allow-list
func WithIDValidator(v *validators.SourceIDValidator) Option {
	return func(s *sourceService) {
		s.idValidator = v
	}
}

// WithConfigValidator overrides the configuration validator
func WithConfigValidator(v *validators.SourceConfigValidator) Option {
	return func(s *sourceService) {
		s.configValidator = v
	}
}

// WithMaxCodeBytes sets the size limit of an extraction module
func WithMaxCodeBytes(n int) Option {
	return func(s *sourceService) {
		s.maxCodeBytes = n
	}
}

// WithMetrics records registration outcomes
func WithMetrics(m *telemetry.RegistryMetrics) Option {
	return func(s *sourceService) {
		s.metrics = m
	}
}

// WithTracer records a span per operation
func WithTracer(tracer trace.Tracer) Option {
	return func(s *sourceService) {
		s.tracer = tracer
	}
}

type sourceService struct {
	registry        registry.SourceRegistry
	trigger         rebuild.Trigger
	statusReader    StatusReader
	idValidator     *validators.SourceIDValidator
	configValidator *validators.SourceConfigValidator
	maxCodeBytes    int
	metrics         *telemetry.RegistryMetrics
	tracer          trace.Tracer
}

var _ SourceService = (*sourceService)(nil)

// New creates a source service on top of reg
func New(reg registry.SourceRegistry, opts ...Option) (SourceService, error) {
	if reg == nil {
		return nil, fmt.Errorf("source registry is required")
	}

	s := &sourceService{
		registry:     reg,
		maxCodeBytes: DefaultMaxCodeBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.idValidator == nil {
		v, err := validators.NewSourceIDValidator("", 0)
		if err != nil {
			return nil, err
		}
		s.idValidator = v
	}
	if s.configValidator == nil {
		v, err := validators.NewSourceConfigValidator("")
		if err != nil {
			return nil, err
		}
		s.configValidator = v
	}
	if s.maxCodeBytes <= 0 {
		s.maxCodeBytes = DefaultMaxCodeBytes
	}

	return s, nil
}

// CheckReadiness reports whether the registry document can be loaded
func (s *sourceService) CheckReadiness(ctx context.Context) error {
	if _, err := s.registry.List(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

// RegisterSource validates the request, registers the source and, when asked,
// requests a rebuild. A rebuild failure never fails the registration.
func (s *sourceService) RegisterSource(ctx context.Context, req *RegisterSourceRequest) (*RegisterSourceResult, error) {
	if req == nil {
		req = &RegisterSourceRequest{}
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.RegisterSource",
		trace.WithAttributes(otel.AttrSourceID.String(req.ID)))
	defer span.End()

	if err := s.validateRegistration(req); err != nil {
		s.recordFailure(ctx, span, err)
		return nil, err
	}

	if err := s.registry.Register(ctx, req.ID, req.Config, req.Code); err != nil {
		s.recordFailure(ctx, span, err)
		return nil, err
	}
	s.metrics.RecordRegistration(ctx, resultSuccess)

	result := &RegisterSourceResult{
		ID:      req.ID,
		Message: fmt.Sprintf("Source %q was created. Request a rebuild to activate it.", req.ID),
	}
	if !req.Rebuild {
		return result, nil
	}

	ack, err := s.requestRebuild(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Source registered but rebuild was not triggered",
			"source_id", req.ID, "error", err)
		result.RebuildError = err.Error()
		result.Message = fmt.Sprintf("Source %q was created but the rebuild was not triggered: %v. "+
			"Request a rebuild to activate it.", req.ID, err)
		return result, nil
	}

	result.Rebuild = ack
	result.Message = fmt.Sprintf("Source %q was created and a rebuild was triggered (request %s). "+
		"The source becomes active once the service restarts.", req.ID, ack.RequestID)
	return result, nil
}

// RequestRebuild hands a rebuild request to the trigger
func (s *sourceService) RequestRebuild(ctx context.Context) (*rebuild.Ack, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.RequestRebuild")
	defer span.End()

	ack, err := s.requestRebuild(ctx)
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return nil, err
	}

	span.SetAttributes(
		otel.AttrRebuildRequestID.String(ack.RequestID),
		otel.AttrRebuildCoalesced.Bool(ack.Coalesced),
	)
	return ack, nil
}

func (s *sourceService) requestRebuild(ctx context.Context) (*rebuild.Ack, error) {
	if s.trigger == nil {
		return nil, rebuild.ErrRebuildDisabled
	}
	return s.trigger.Trigger(ctx)
}

// ListSources returns every registered source
func (s *sourceService) ListSources(ctx context.Context) ([]*registry.Entry, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.ListSources")
	defer span.End()

	entries, err := s.registry.List(ctx)
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return nil, err
	}

	span.SetAttributes(otel.AttrSourceCount.Int(len(entries)))
	return entries, nil
}

// GetSource returns a registered source by identifier
func (s *sourceService) GetSource(ctx context.Context, id string) (*registry.Entry, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.GetSource",
		trace.WithAttributes(otel.AttrSourceID.String(id)))
	defer span.End()

	if err := s.idValidator.Validate(id); err != nil {
		err = fmt.Errorf("%w: %w", ErrValidation, err)
		otel.RecordError(span, err, errorKind(err))
		return nil, err
	}

	entry, err := s.registry.Get(ctx, id)
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return nil, err
	}
	return entry, nil
}

// RepairSource writes the missing module of an orphaned source
func (s *sourceService) RepairSource(ctx context.Context, req *RepairSourceRequest) error {
	if req == nil {
		req = &RepairSourceRequest{}
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.RepairSource",
		trace.WithAttributes(otel.AttrSourceID.String(req.ID)))
	defer span.End()

	err := s.validateRepair(req)
	if err == nil {
		err = s.registry.Repair(ctx, req.ID, req.Code)
	}
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return err
	}

	slog.InfoContext(ctx, "Source repaired", "source_id", req.ID)
	return nil
}

// DiscardSource removes the configuration entry of an orphaned source
func (s *sourceService) DiscardSource(ctx context.Context, id string) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.DiscardSource",
		trace.WithAttributes(otel.AttrSourceID.String(id)))
	defer span.End()

	err := s.idValidator.Validate(id)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrValidation, err)
	} else {
		err = s.registry.Discard(ctx, id)
	}
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return err
	}
	return nil
}

// CheckConsistency runs a registry consistency check and publishes its gauges
func (s *sourceService) CheckConsistency(ctx context.Context) (*registry.Report, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SourceService.CheckConsistency")
	defer span.End()

	report, err := s.registry.Check(ctx)
	if err != nil {
		otel.RecordError(span, err, errorKind(err))
		return nil, err
	}

	s.metrics.RecordConsistency(ctx, report.Sources, len(report.Orphans), len(report.StrayModules))
	span.SetAttributes(otel.AttrSourceCount.Int(report.Sources))
	return report, nil
}

// GetRebuildStatus returns the last known state of the rebuild command
func (s *sourceService) GetRebuildStatus(ctx context.Context) (*status.RebuildStatus, error) {
	if s.statusReader == nil {
		return nil, rebuild.ErrRebuildDisabled
	}
	return s.statusReader.Status(ctx)
}

func (s *sourceService) validateRegistration(req *RegisterSourceRequest) error {
	var missing []string
	if req.ID == "" {
		missing = append(missing, "id")
	}
	if isMissingConfig(req.Config) {
		missing = append(missing, "config")
	}
	if req.Code == "" {
		missing = append(missing, "code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	if err := s.idValidator.Validate(req.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.configValidator.Validate(req.Config); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.validateCode(req.Code)
}

func (s *sourceService) validateRepair(req *RepairSourceRequest) error {
	if err := s.idValidator.Validate(req.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.Code == "" {
		return fmt.Errorf("%w: missing required fields: code", ErrValidation)
	}
	return s.validateCode(req.Code)
}

func (s *sourceService) validateCode(code string) error {
	if len(code) > s.maxCodeBytes {
		return fmt.Errorf("%w: code exceeds maximum size of %d bytes", ErrValidation, s.maxCodeBytes)
	}
	return nil
}

func (s *sourceService) recordFailure(ctx context.Context, span trace.Span, err error) {
	kind := errorKind(err)
	otel.RecordError(span, err, kind)
	s.metrics.RecordRegistration(ctx, kind)
}

// isMissingConfig treats an absent value, null and an empty string as missing
func isMissingConfig(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

// errorKind maps an error to a low-cardinality label for metrics and spans
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, registry.ErrDuplicateIdentifier):
		return "duplicate_identifier"
	case errors.Is(err, registry.ErrPartialRegistration):
		return "partial_registration"
	case errors.Is(err, registry.ErrConfigCorrupt):
		return "config_corrupt"
	case errors.Is(err, registry.ErrRegistryBusy):
		return "registry_busy"
	case errors.Is(err, registry.ErrSourceNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrNotOrphaned):
		return "not_orphaned"
	case errors.Is(err, registry.ErrIOFailure):
		return "io_failure"
	case errors.Is(err, rebuild.ErrRebuildDisabled), errors.Is(err, rebuild.ErrDispatcherStopped):
		return "rebuild_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
