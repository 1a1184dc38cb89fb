package rebuild

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/newsnow-ops/source-registry-server/internal/otel"
	"github.com/newsnow-ops/source-registry-server/internal/status"
	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
)

const (
	// maxLoggedOutput caps how much of the command output is logged per stream
	maxLoggedOutput = 4096

	// drainPollInterval is how often Drain checks whether the dispatcher is idle
	drainPollInterval = 50 * time.Millisecond
)

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithRunner overrides the command runner
func WithRunner(runner CommandRunner) DispatcherOption {
	return func(d *Dispatcher) {
		d.runner = runner
	}
}

// WithStatusPersistence persists the rebuild status after every transition
func WithStatusPersistence(p status.StatusPersistence) DispatcherOption {
	return func(d *Dispatcher) {
		d.persistence = p
	}
}

// WithMetrics records request and run metrics
func WithMetrics(m *telemetry.RebuildMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracer records a span per run
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

type request struct {
	id          string
	requestedAt time.Time
}

// Dispatcher implements Trigger with a single worker goroutine
type Dispatcher struct {
	command     Command
	runner      CommandRunner
	persistence status.StatusPersistence
	metrics     *telemetry.RebuildMetrics
	tracer      trace.Tracer
	now         func() time.Time
	runLockPath string
	runLock     *flock.Flock

	mu      sync.Mutex
	current status.RebuildStatus
	pending *request
	running bool
	started bool
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

var _ Trigger = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for command. An empty command yields a
// dispatcher whose Trigger always returns ErrRebuildDisabled.
func NewDispatcher(command Command, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		command: command,
		runner:  NewExecRunner(),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether a rebuild command is configured
func (d *Dispatcher) Enabled() bool {
	return len(d.command.Args) > 0
}

// Start restores the persisted status and launches the worker goroutine.
// A status left in the Running phase by a previous process becomes Interrupted,
// unless another process still holds the run lock.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.persistence != nil {
		d.restoreStatus(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return nil
	}
	d.started = true
	go d.loop()

	if d.Enabled() {
		slog.InfoContext(ctx, "Rebuild dispatcher started", "command", d.command.String())
	} else {
		slog.InfoContext(ctx, "Rebuild dispatcher started without a command; rebuild requests will be rejected")
	}
	return nil
}

func (d *Dispatcher) restoreStatus(ctx context.Context) {
	locked, err := d.tryRunLock()
	if err != nil {
		slog.WarnContext(ctx, "Failed to take rebuild lock", "path", d.runLockPath, "error", err)
	}
	if !locked {
		slog.InfoContext(ctx, "Rebuild running in another process; keeping its status")
		d.refreshStatus(ctx)
		return
	}
	defer d.releaseRunLock()

	st, err := status.MarkInterrupted(ctx, d.persistence)
	if err != nil {
		slog.WarnContext(ctx, "Failed to restore rebuild status", "error", err)
		return
	}
	if st.Phase == status.RebuildPhaseInterrupted && st.LastFinished == nil {
		slog.InfoContext(ctx, "Previous rebuild was interrupted by a restart", "request_id", st.RequestID)
	}
	d.mu.Lock()
	d.current = *st
	d.mu.Unlock()
}

// Stop stops accepting requests and waits for the worker to exit, at most until ctx
// is done. A command that is running is never killed; queued requests are dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	dropped := d.pending
	d.pending = nil
	d.mu.Unlock()

	close(d.quit)
	if dropped != nil {
		slog.WarnContext(ctx, "Dropping queued rebuild request at shutdown", "request_id", dropped.id)
	}
	if !started {
		return nil
	}

	select {
	case <-d.done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rebuild command still running at shutdown; leaving it running")
	}
	return nil
}

// Trigger queues a rebuild request
func (d *Dispatcher) Trigger(ctx context.Context) (*Ack, error) {
	if !d.Enabled() {
		return nil, ErrRebuildDisabled
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, ErrDispatcherStopped
	}

	var (
		req       *request
		coalesced bool
	)
	if d.pending != nil {
		req = d.pending
		coalesced = true
	} else {
		req = &request{id: uuid.NewString(), requestedAt: d.now().UTC()}
		d.pending = req
		coalesced = d.running || d.runningElsewhere()
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	d.metrics.RecordRequest(ctx, coalesced)
	slog.InfoContext(ctx, "Rebuild requested", "request_id", req.id, "coalesced", coalesced)

	return &Ack{
		RequestID:   req.id,
		RequestedAt: req.requestedAt,
		Command:     d.command.String(),
		Coalesced:   coalesced,
	}, nil
}

// Status returns the last known rebuild status. While idle, the persisted status is
// reloaded, since another process sharing the state directory may have run since.
func (d *Dispatcher) Status(ctx context.Context) (*status.RebuildStatus, error) {
	d.mu.Lock()
	idle := !d.running
	d.mu.Unlock()
	if idle {
		d.refreshStatus(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.current
	if st.Command == "" && d.Enabled() {
		st.Command = d.command.String()
	}
	return &st, nil
}

// Drain waits until no run is queued or in flight
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		d.mu.Lock()
		idle := d.pending == nil && !d.running
		d.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for {
		select {
		case <-d.quit:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			req := d.pending
			d.pending = nil
			d.running = req != nil
			d.mu.Unlock()

			if req == nil {
				break
			}

			if !d.waitRunLock(req.id) {
				d.mu.Lock()
				d.running = false
				d.mu.Unlock()
				slog.Warn("Dropping rebuild request at shutdown", "request_id", req.id)
				return
			}
			d.refreshStatus(context.Background())
			d.execute(req)
			d.releaseRunLock()

			d.mu.Lock()
			d.running = false
			d.mu.Unlock()

			select {
			case <-d.quit:
				return
			default:
			}
		}
	}
}

func (d *Dispatcher) execute(req *request) {
	// Runs are deliberately detached from the context of the request that queued them
	ctx, span := otel.StartSpan(context.Background(), d.tracer, "rebuild.Run",
		trace.WithAttributes(otel.AttrRebuildRequestID.String(req.id)))
	defer span.End()

	startedAt := d.now().UTC()
	d.update(ctx, func(st *status.RebuildStatus) {
		st.Phase = status.RebuildPhaseRunning
		st.Message = "Rebuild running"
		st.RequestID = req.id
		st.Command = d.command.String()
		st.LastRequested = &req.requestedAt
		st.LastStarted = &startedAt
		st.LastFinished = nil
		st.ExitCode = nil
		st.RunCount++
	})

	slog.InfoContext(ctx, "Launching rebuild command", "request_id", req.id, "command", d.command.String())

	result := d.runner.Run(d.command)

	finishedAt := d.now().UTC()
	d.update(ctx, func(st *status.RebuildStatus) {
		st.LastFinished = &finishedAt
		if result.ExitCode >= 0 {
			exitCode := result.ExitCode
			st.ExitCode = &exitCode
		}
		if result.Err != nil {
			st.Phase = status.RebuildPhaseFailed
			st.Message = result.Err.Error()
			st.FailureCount++
			return
		}
		st.Phase = status.RebuildPhaseComplete
		st.Message = "Rebuild completed"
		st.FailureCount = 0
	})

	d.metrics.RecordRun(ctx, result.Duration, result.Err == nil)

	if result.Err != nil {
		otel.RecordError(span, result.Err, "trigger_unreportable")
		slog.ErrorContext(ctx, "Rebuild command failed",
			"request_id", req.id,
			"exit_code", result.ExitCode,
			"duration", result.Duration,
			"stdout", tail(result.Stdout),
			"stderr", tail(result.Stderr),
			"error", result.Err)
		return
	}

	slog.InfoContext(ctx, "Rebuild command completed",
		"request_id", req.id,
		"duration", result.Duration,
		"stdout", tail(result.Stdout),
		"stderr", tail(result.Stderr))
}

// update applies fn to the in-memory status and persists the result
func (d *Dispatcher) update(ctx context.Context, fn func(st *status.RebuildStatus)) {
	d.mu.Lock()
	fn(&d.current)
	snapshot := d.current
	d.mu.Unlock()

	if d.persistence == nil {
		return
	}
	if err := d.persistence.SaveStatus(ctx, &snapshot); err != nil {
		slog.WarnContext(ctx, "Failed to persist rebuild status", "phase", snapshot.Phase, "error", err)
	}
}

func tail(s string) string {
	if len(s) <= maxLoggedOutput {
		return s
	}
	return "..." + s[len(s)-maxLoggedOutput:]
}
