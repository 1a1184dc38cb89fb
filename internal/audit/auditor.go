// Package audit runs the background consistency check of the source registry.
//
// The auditor checks the registry once at start, then on a fixed interval and
// whenever the registry document changes on disk. Each check publishes gauges,
// logs every orphaned source and, when enabled, discards orphans that this
// subsystem created and never completed.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
)

const (
	// DefaultInterval is the period between two scheduled audits
	DefaultInterval = 5 * time.Minute

	// DefaultDebounce groups bursts of filesystem events into one audit
	DefaultDebounce = 500 * time.Millisecond

	jobName = "registry-consistency-audit"
)

// Option configures an Auditor
type Option func(*Auditor)

// WithInterval sets the period between two scheduled audits
func WithInterval(interval time.Duration) Option {
	return func(a *Auditor) {
		a.interval = interval
	}
}

// WithWatchPath re-runs the audit when the file at path changes. An empty path disables watching.
func WithWatchPath(path string) Option {
	return func(a *Auditor) {
		a.watchPath = path
	}
}

// WithDebounce sets how long the auditor waits after a filesystem event before auditing
func WithDebounce(d time.Duration) Option {
	return func(a *Auditor) {
		a.debounce = d
	}
}

// WithRollbackOrphans discards orphans that still carry an intent marker
func WithRollbackOrphans(enabled bool) Option {
	return func(a *Auditor) {
		a.rollbackOrphans = enabled
	}
}

// WithMetrics publishes the consistency gauges
func WithMetrics(m *telemetry.RegistryMetrics) Option {
	return func(a *Auditor) {
		a.metrics = m
	}
}

// Auditor periodically checks the registry for orphans and stray modules
type Auditor struct {
	registry        registry.SourceRegistry
	interval        time.Duration
	watchPath       string
	debounce        time.Duration
	rollbackOrphans bool
	metrics         *telemetry.RegistryMetrics

	// auditMu serializes audits triggered by the schedule and by the watcher
	auditMu sync.Mutex

	mu         sync.Mutex
	lastReport *registry.Report
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates an auditor for reg
func New(reg registry.SourceRegistry, opts ...Option) *Auditor {
	a := &Auditor{
		registry: reg,
		interval: DefaultInterval,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.interval <= 0 {
		a.interval = DefaultInterval
	}
	if a.debounce <= 0 {
		a.debounce = DefaultDebounce
	}
	return a
}

// Start runs the first audit, then schedules the following ones.
// Blocks until ctx is cancelled or Stop is called.
func (a *Auditor) Start(ctx context.Context) error {
	auditCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()
	defer func() {
		close(a.done)
		slog.Info("Consistency auditor stopped")
	}()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create audit scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Warn("Failed to shut down audit scheduler", "error", err)
		}
	}()

	if _, err := scheduler.NewJob(
		gocron.DurationJob(a.interval),
		gocron.NewTask(a.runScheduled, auditCtx),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	if a.watchPath != "" {
		watcher, err := a.newWatcher()
		if err != nil {
			slog.Warn("Registry document watch disabled", "path", a.watchPath, "error", err)
		} else {
			defer func() { _ = watcher.Close() }()
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	slog.Info("Starting consistency auditor",
		"interval", a.interval,
		"watch", events != nil,
		"rollback_orphans", a.rollbackOrphans)

	a.runScheduled(auditCtx)
	scheduler.Start()

	var debounceC <-chan time.Time
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-auditCtx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !a.isDocumentEvent(ev) {
				continue
			}
			slog.Debug("Registry document changed", "op", ev.Op.String())
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(a.debounce)
			} else {
				debounceTimer.Reset(a.debounce)
			}
			debounceC = debounceTimer.C
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			slog.Warn("Registry document watch error", "error", err)
		case <-debounceC:
			debounceC = nil
			a.runScheduled(auditCtx)
		}
	}
}

// Stop stops the auditor and waits for Start to return
func (a *Auditor) Stop() error {
	a.mu.Lock()
	cancel := a.cancelFunc
	a.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping consistency auditor")
		cancel()
		<-a.done
	}
	return nil
}

// LastReport returns the report of the most recent successful audit, nil before the first one
func (a *Auditor) LastReport() *registry.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReport
}

// RunOnce checks the registry, publishes the gauges and, when enabled, discards
// orphans that still carry an intent marker
func (a *Auditor) RunOnce(ctx context.Context) (*registry.Report, error) {
	a.auditMu.Lock()
	defer a.auditMu.Unlock()

	report, err := a.registry.Check(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range report.Orphans {
		slog.WarnContext(ctx, "Source configured without extraction module", "source_id", id)
	}
	for _, id := range report.StrayModules {
		slog.InfoContext(ctx, "Extraction module without configuration entry", "source_id", id)
	}
	if len(report.ClearedIntents) > 0 {
		slog.InfoContext(ctx, "Cleared intent markers", "source_ids", report.ClearedIntents)
	}

	if a.rollbackOrphans {
		report = a.rollback(ctx, report)
	}

	a.metrics.RecordConsistency(ctx, report.Sources, len(report.Orphans), len(report.StrayModules))

	a.mu.Lock()
	a.lastReport = report
	a.mu.Unlock()

	return report, nil
}

// rollback discards the orphans named by pending intents and re-checks the registry
func (a *Auditor) rollback(ctx context.Context, report *registry.Report) *registry.Report {
	if len(report.PendingIntents) == 0 {
		return report
	}

	discarded := 0
	for _, intent := range report.PendingIntents {
		if err := a.registry.Discard(ctx, intent.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to discard orphaned source",
				"source_id", intent.ID,
				"request_id", intent.RequestID,
				"error", err)
			continue
		}
		discarded++
		slog.WarnContext(ctx, "Discarded orphaned source left by an incomplete registration",
			"source_id", intent.ID,
			"request_id", intent.RequestID,
			"started_at", intent.StartedAt)
	}
	if discarded == 0 {
		return report
	}

	refreshed, err := a.registry.Check(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to re-check registry after rollback", "error", err)
		return report
	}
	return refreshed
}

func (a *Auditor) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	report, err := a.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Consistency audit failed", "error", err)
		return
	}

	slog.DebugContext(ctx, "Consistency audit completed",
		"sources", report.Sources,
		"orphans", len(report.Orphans),
		"stray_modules", len(report.StrayModules),
		"duration", time.Since(start))
}

// newWatcher watches the directory of the document: the document is replaced by
// rename, which a watch on the file itself would lose
func (a *Auditor) newWatcher() (*fsnotify.Watcher, error) {
	dir := filepath.Dir(a.watchPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	return watcher, nil
}

func (a *Auditor) isDocumentEvent(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(a.watchPath) {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
