// Package service provides the registration orchestration for the source registry API
package service

import (
	"context"
	"errors"

	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/status"
)

var (
	// ErrValidation is returned when a request is rejected before the registry is touched
	ErrValidation = errors.New("validation failed")
	// ErrNotReady is returned by CheckReadiness when the registry cannot be read
	ErrNotReady = errors.New("service not ready")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go SourceService,StatusReader

// SourceService defines the interface for source registration operations
type SourceService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// RegisterSource validates and persists a new source, optionally requesting a rebuild
	RegisterSource(ctx context.Context, req *RegisterSourceRequest) (*RegisterSourceResult, error)

	// RequestRebuild asks the rebuild trigger to rebuild and restart the aggregation service
	RequestRebuild(ctx context.Context) (*rebuild.Ack, error)

	// ListSources returns every registered source
	ListSources(ctx context.Context) ([]*registry.Entry, error)

	// GetSource returns a registered source by identifier
	GetSource(ctx context.Context, id string) (*registry.Entry, error)

	// RepairSource writes the missing module of an orphaned source
	RepairSource(ctx context.Context, req *RepairSourceRequest) error

	// DiscardSource removes the configuration entry of an orphaned source
	DiscardSource(ctx context.Context, id string) error

	// CheckConsistency reports inconsistencies between configurations and modules
	CheckConsistency(ctx context.Context) (*registry.Report, error)

	// GetRebuildStatus returns the last known state of the rebuild command
	GetRebuildStatus(ctx context.Context) (*status.RebuildStatus, error)
}

// StatusReader exposes the rebuild status
type StatusReader interface {
	Status(ctx context.Context) (*status.RebuildStatus, error)
}
