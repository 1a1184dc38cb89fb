// Package status provides rebuild status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the rebuild status file
	StatusFileName = "rebuild-status.json"
)

// StatusPersistence defines the interface for rebuild status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the rebuild status to persistent storage
	SaveStatus(ctx context.Context, status *RebuildStatus) error

	// LoadStatus loads the rebuild status from persistent storage.
	// Returns an empty RebuildStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context) (*RebuildStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	mu       sync.Mutex
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence
// basePath is the state directory where the status file will be stored
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// SaveStatus saves the rebuild status to a JSON file in the state directory
func (f *fileStatusPersistence) SaveStatus(_ context.Context, status *RebuildStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, StatusFileName)

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rebuild status: %w", err)
	}

	// Each save writes its own temporary file, so processes sharing the state
	// directory never rename each other's partial writes
	tmp, err := os.CreateTemp(f.basePath, "."+StatusFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary status file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to sync temporary status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close temporary status file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// LoadStatus loads the rebuild status from the JSON file
// Returns an empty RebuildStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context) (*RebuildStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath := filepath.Join(f.basePath, StatusFileName)

	// #nosec G304 -- filePath is constructed from the configured state directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist - this is OK for first run
			return &RebuildStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status RebuildStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rebuild status: %w", err)
	}

	return &status, nil
}

// MarkInterrupted turns a leftover Running phase into Interrupted. It is called once
// at startup: a status still Running means the previous process was replaced before
// the command reported back.
func MarkInterrupted(ctx context.Context, p StatusPersistence) (*RebuildStatus, error) {
	status, err := p.LoadStatus(ctx)
	if err != nil {
		return nil, err
	}

	if status.Phase != RebuildPhaseRunning {
		return status, nil
	}

	status.Phase = RebuildPhaseInterrupted
	status.Message = "process replaced while rebuild was running"
	if err := p.SaveStatus(ctx, status); err != nil {
		return nil, err
	}

	return status, nil
}
