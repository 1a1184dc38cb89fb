// Package rebuild hands control to the external build-and-restart command.
//
// A rebuild request is a one-way message: Trigger queues it and returns an Ack at
// once. A single dispatcher goroutine runs the configured command; requests that
// arrive while a run is in flight collapse into one follow-up run. The outcome of
// a run is never reported to the requester. It goes to the log, the metrics and the
// persisted rebuild status, because a successful run usually replaces this process.
package rebuild

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_trigger.go -package=mocks -source=trigger.go Trigger

var (
	// ErrRebuildDisabled is returned when no rebuild command is configured
	ErrRebuildDisabled = errors.New("rebuild command is not configured")

	// ErrDispatcherStopped is returned when a rebuild is requested after shutdown began
	ErrDispatcherStopped = errors.New("rebuild dispatcher is stopped")
)

// Ack acknowledges that a rebuild request was accepted. It says nothing about the
// outcome of the rebuild.
type Ack struct {
	// RequestID identifies the run that will serve this request
	RequestID string `json:"requestId"`

	// RequestedAt is when the request was accepted
	RequestedAt time.Time `json:"requestedAt"`

	// Command is the shell-quoted command, for display only
	Command string `json:"command"`

	// Coalesced is true when the request was merged into a run that is already queued,
	// or will follow the one in flight in this or another process
	Coalesced bool `json:"coalesced"`
}

// Trigger requests a rebuild of the aggregation service
type Trigger interface {
	// Trigger queues a rebuild request and returns without waiting for it
	Trigger(ctx context.Context) (*Ack, error)
}
