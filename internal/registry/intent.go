package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_intent_journal.go -package=mocks -source=intent.go IntentJournal

const (
	// IntentsDirName is the directory under the state directory holding intent markers
	IntentsDirName = "intents"
)

// IntentJournal records registrations that are in progress
type IntentJournal interface {
	// Begin records the intent to register a source
	Begin(ctx context.Context, intent *Intent) error

	// Complete removes the intent marker of id. A missing marker is not an error.
	Complete(ctx context.Context, id string) error

	// Get returns the intent marker of id, or nil when there is none
	Get(ctx context.Context, id string) (*Intent, error)

	// List returns every intent marker ordered by identifier
	List(ctx context.Context) ([]*Intent, error)
}

// fileIntentJournal implements IntentJournal with one JSON file per marker
type fileIntentJournal struct {
	dir string
}

// NewFileIntentJournal creates an intent journal under <stateDir>/intents
func NewFileIntentJournal(stateDir string) IntentJournal {
	return &fileIntentJournal{dir: filepath.Join(stateDir, IntentsDirName)}
}

func (j *fileIntentJournal) pathFor(id string) string {
	return filepath.Join(j.dir, id+".json")
}

// Begin persists the intent marker
func (j *fileIntentJournal) Begin(_ context.Context, intent *Intent) error {
	if err := os.MkdirAll(j.dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create intents directory: %w", ErrIOFailure, err)
	}

	data, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal intent for source %q: %w", ErrIOFailure, intent.ID, err)
	}

	if err := writeFileAtomic(j.pathFor(intent.ID), data, 0600); err != nil {
		return fmt.Errorf("%w: failed to record intent for source %q: %w", ErrIOFailure, intent.ID, err)
	}

	return nil
}

// Complete removes the intent marker
func (j *fileIntentJournal) Complete(_ context.Context, id string) error {
	if err := os.Remove(j.pathFor(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to clear intent for source %q: %w", ErrIOFailure, id, err)
	}
	return nil
}

// Get loads the intent marker of id
func (j *fileIntentJournal) Get(_ context.Context, id string) (*Intent, error) {
	// #nosec G304 -- id has passed identifier validation
	data, err := os.ReadFile(j.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read intent for source %q: %w", ErrIOFailure, id, err)
	}

	var intent Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("%w: failed to parse intent for source %q: %w", ErrIOFailure, id, err)
	}
	if intent.ID == "" {
		intent.ID = id
	}

	return &intent, nil
}

// List loads every intent marker
func (j *fileIntentJournal) List(ctx context.Context) ([]*Intent, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Intent{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read intents directory: %w", ErrIOFailure, err)
	}

	intents := make([]*Intent, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id, ok := strings.CutSuffix(name, ".json")
		if !ok {
			continue
		}

		intent, err := j.Get(ctx, id)
		if err != nil {
			// An unreadable marker must not hide the others
			slog.WarnContext(ctx, "Skipping unreadable intent marker", "source_id", id, "error", err)
			continue
		}
		if intent != nil {
			intents = append(intents, intent)
		}
	}

	slices.SortFunc(intents, func(a, b *Intent) int {
		return strings.Compare(a.ID, b.ID)
	})

	return intents, nil
}
