package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RegistryMetricsMeterName is the name used for the registry metrics meter
	RegistryMetricsMeterName = "github.com/newsnow-ops/source-registry-server/registry"

	// RebuildMetricsMeterName is the name used for the rebuild metrics meter
	RebuildMetricsMeterName = "github.com/newsnow-ops/source-registry-server/rebuild"
)

// RegistryMetrics holds the OpenTelemetry instruments for registry metrics
type RegistryMetrics struct {
	registrations metric.Int64Counter
	sourcesTotal  metric.Int64Gauge
	orphans       metric.Int64Gauge
	strays        metric.Int64Gauge
}

// NewRegistryMetrics creates a new RegistryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRegistryMetrics(provider metric.MeterProvider) (*RegistryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RegistryMetricsMeterName)

	registrations, err := meter.Int64Counter(
		"source_registry_registrations_total",
		metric.WithDescription("Number of source registration attempts by result"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, err
	}

	sourcesTotal, err := meter.Int64Gauge(
		"source_registry_sources_total",
		metric.WithDescription("Number of sources in the registry document"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	orphans, err := meter.Int64Gauge(
		"source_registry_orphaned_sources",
		metric.WithDescription("Number of configured sources without an extraction module"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	strays, err := meter.Int64Gauge(
		"source_registry_stray_modules",
		metric.WithDescription("Number of extraction modules without a configuration entry"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{
		registrations: registrations,
		sourcesTotal:  sourcesTotal,
		orphans:       orphans,
		strays:        strays,
	}, nil
}

// RecordRegistration counts one registration attempt. result is "success" or an error kind.
func (m *RegistryMetrics) RecordRegistration(ctx context.Context, result string) {
	if m == nil || m.registrations == nil {
		return
	}

	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordConsistency records the outcome of a consistency check
func (m *RegistryMetrics) RecordConsistency(ctx context.Context, sources, orphans, strays int) {
	if m == nil {
		return
	}

	m.sourcesTotal.Record(ctx, int64(sources))
	m.orphans.Record(ctx, int64(orphans))
	m.strays.Record(ctx, int64(strays))
}

// RebuildMetrics holds the OpenTelemetry instruments for rebuild metrics
type RebuildMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRebuildMetrics creates a new RebuildMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRebuildMetrics(provider metric.MeterProvider) (*RebuildMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RebuildMetricsMeterName)

	requests, err := meter.Int64Counter(
		"source_registry_rebuild_requests_total",
		metric.WithDescription("Number of accepted rebuild requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"source_registry_rebuild_duration_seconds",
		metric.WithDescription("Duration of rebuild command runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1200),
	)
	if err != nil {
		return nil, err
	}

	return &RebuildMetrics{
		requests: requests,
		duration: duration,
	}, nil
}

// RecordRequest counts one accepted rebuild request
func (m *RebuildMetrics) RecordRequest(ctx context.Context, coalesced bool) {
	if m == nil || m.requests == nil {
		return
	}

	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coalesced", coalesced)))
}

// RecordRun records the duration and outcome of one command run
func (m *RebuildMetrics) RecordRun(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.duration == nil {
		return
	}

	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}
