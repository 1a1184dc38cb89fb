package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_module_store.go -package=mocks -source=module_store.go ModuleStore

// ModuleStore persists extraction modules, one file per source
type ModuleStore interface {
	// Write creates or replaces the module of id
	Write(ctx context.Context, id string, code string) error

	// Exists reports whether the module of id is present
	Exists(ctx context.Context, id string) (bool, error)

	// List returns the identifiers of every module present, in lexical order
	List(ctx context.Context) ([]string, error)

	// PathFor returns the location of the module of id
	PathFor(id string) string
}

// fileModuleStore implements ModuleStore on a directory
type fileModuleStore struct {
	dir       string
	extension string
}

// NewFileModuleStore creates a module store writing <dir>/<id><extension>
func NewFileModuleStore(dir, extension string) ModuleStore {
	return &fileModuleStore{dir: dir, extension: extension}
}

// PathFor returns the module path of id
func (s *fileModuleStore) PathFor(id string) string {
	return filepath.Join(s.dir, id+s.extension)
}

// Write stores code as the module of id
func (s *fileModuleStore) Write(_ context.Context, id string, code string) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create modules directory: %w", ErrIOFailure, err)
	}

	// Modules are compiled by the aggregation service build
	if err := writeFileAtomic(s.PathFor(id), []byte(code), 0644); err != nil {
		return fmt.Errorf("%w: failed to write module for source %q: %w", ErrIOFailure, id, err)
	}

	return nil
}

// Exists reports whether the module file of id is present
func (s *fileModuleStore) Exists(_ context.Context, id string) (bool, error) {
	info, err := os.Stat(s.PathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to stat module for source %q: %w", ErrIOFailure, id, err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns the identifiers of all module files
func (s *fileModuleStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read modules directory: %w", ErrIOFailure, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		id, ok := strings.CutSuffix(name, s.extension)
		if !ok || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}
