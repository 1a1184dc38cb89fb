package rebuild

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
)

// RunLockFileName names the lock file, inside the state directory, held for the whole of a run
const RunLockFileName = "rebuild.lock"

// WithRunLock holds an advisory file lock on path for the whole of every run.
// Dispatchers of different processes sharing a state directory then never run
// the command at the same time, and a Running status is only marked Interrupted
// when no process holds the lock.
func WithRunLock(path string) DispatcherOption {
	return func(d *Dispatcher) {
		d.runLockPath = path
		d.runLock = flock.New(path)
	}
}

func (d *Dispatcher) ensureRunLockDir() error {
	return os.MkdirAll(filepath.Dir(d.runLockPath), 0750)
}

// tryRunLock takes the run lock without waiting. It reports true when no run
// lock is configured.
func (d *Dispatcher) tryRunLock() (bool, error) {
	if d.runLock == nil {
		return true, nil
	}
	if err := d.ensureRunLockDir(); err != nil {
		return false, err
	}
	return d.runLock.TryLock()
}

func (d *Dispatcher) releaseRunLock() {
	if d.runLock == nil {
		return
	}
	if err := d.runLock.Unlock(); err != nil {
		slog.Warn("Failed to release rebuild lock", "path", d.runLockPath, "error", err)
	}
}

// waitRunLock blocks until the run lock is taken or the dispatcher is stopped.
// It returns false when stopped first.
func (d *Dispatcher) waitRunLock(requestID string) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	logged := false
	for {
		locked, err := d.tryRunLock()
		if err != nil {
			slog.Warn("Failed to take rebuild lock", "path", d.runLockPath, "error", err)
		}
		if locked {
			return true
		}
		if !logged && err == nil {
			slog.Info("Rebuild running in another process; waiting for it to finish", "request_id", requestID)
			logged = true
		}

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-d.quit:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// runningElsewhere reports whether another process holds the run lock. It must
// not be called while this dispatcher holds the lock.
func (d *Dispatcher) runningElsewhere() bool {
	if d.runLockPath == "" {
		return false
	}
	if err := d.ensureRunLockDir(); err != nil {
		return false
	}
	other := flock.New(d.runLockPath)
	locked, err := other.TryLock()
	if err != nil {
		slog.Warn("Failed to check rebuild lock", "path", d.runLockPath, "error", err)
		return false
	}
	if locked {
		_ = other.Unlock()
		return false
	}
	return true
}

// refreshStatus replaces the in-memory status with the persisted one, which another
// process sharing the state directory may have updated
func (d *Dispatcher) refreshStatus(ctx context.Context) {
	if d.persistence == nil {
		return
	}
	st, err := d.persistence.LoadStatus(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to reload rebuild status", "error", err)
		return
	}
	d.mu.Lock()
	d.current = *st
	d.mu.Unlock()
}
