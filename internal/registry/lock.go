package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
)

//go:generate mockgen -destination=mocks/mock_locker.go -package=mocks -source=lock.go Locker

// LockFileSuffix is appended to the document path to name the cross-process lock file
const LockFileSuffix = ".lock"

var errLockHeld = errors.New("lock held by another process")

// Locker serializes registry mutations
type Locker interface {
	// Lock blocks until the lock is acquired or the timeout elapses. The returned
	// function releases the lock.
	Lock(ctx context.Context) (func(), error)
}

// fileLocker combines an in-process semaphore with an advisory file lock
type fileLocker struct {
	sem     chan struct{}
	flock   *flock.Flock
	timeout time.Duration
}

// NewFileLocker creates a locker using <documentPath>.lock as the cross-process lock file
func NewFileLocker(documentPath string, timeout time.Duration) Locker {
	return &fileLocker{
		sem:     make(chan struct{}, 1),
		flock:   flock.New(documentPath + LockFileSuffix),
		timeout: timeout,
	}
}

// Lock acquires the in-process semaphore, then the file lock
func (l *fileLocker) Lock(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
	case <-lockCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: timed out after %s waiting for another registry operation", ErrRegistryBusy, l.timeout)
	}

	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0750); err != nil {
		<-l.sem
		return nil, fmt.Errorf("%w: failed to create lock directory: %w", ErrIOFailure, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(lockCtx, func() (bool, error) {
		locked, err := l.flock.TryLock()
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if !locked {
			return false, errLockHeld
		}
		return true, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(l.timeout))
	if err != nil {
		<-l.sem
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, errLockHeld), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s is held by another process", ErrRegistryBusy, l.flock.Path())
		default:
			return nil, fmt.Errorf("%w: failed to lock %s: %w", ErrIOFailure, l.flock.Path(), err)
		}
	}

	return func() {
		_ = l.flock.Unlock()
		<-l.sem
	}, nil
}
