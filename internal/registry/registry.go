package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

//go:generate mockgen -destination=mocks/mock_registry.go -package=mocks -source=registry.go SourceRegistry

// DefaultStaleIntentAge is how old an intent marker must be before Check treats it as abandoned
const DefaultStaleIntentAge = time.Minute

// SourceRegistry is the single authority over which sources exist
type SourceRegistry interface {
	// Register persists the configuration and the module of a new source
	Register(ctx context.Context, id string, config json.RawMessage, code string) error

	// List returns every registered source ordered by identifier
	List(ctx context.Context) ([]*Entry, error)

	// Get returns one registered source
	Get(ctx context.Context, id string) (*Entry, error)

	// Repair writes the missing module of an orphaned source
	Repair(ctx context.Context, id string, code string) error

	// Discard removes the configuration entry of an orphaned source
	Discard(ctx context.Context, id string) error

	// Check reports inconsistencies between the document, the modules and the intent markers
	Check(ctx context.Context) (*Report, error)
}

// Option configures a SourceRegistry
type Option func(*sourceRegistry)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *sourceRegistry) {
		r.now = now
	}
}

// WithStaleIntentAge sets the age after which an intent with no matching orphan is cleared
func WithStaleIntentAge(age time.Duration) Option {
	return func(r *sourceRegistry) {
		r.staleIntentAge = age
	}
}

type sourceRegistry struct {
	configs        ConfigStore
	modules        ModuleStore
	intents        IntentJournal
	lock           Locker
	now            func() time.Time
	staleIntentAge time.Duration
}

// NewSourceRegistry creates a registry over the given stores
func NewSourceRegistry(
	configs ConfigStore,
	modules ModuleStore,
	intents IntentJournal,
	lock Locker,
	opts ...Option,
) SourceRegistry {
	r := &sourceRegistry{
		configs:        configs,
		modules:        modules,
		intents:        intents,
		lock:           lock,
		now:            time.Now,
		staleIntentAge: DefaultStaleIntentAge,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileConfig locates the on-disk artifacts of a file-backed registry
type FileConfig struct {
	DocumentPath    string
	ModulesDir      string
	ModuleExtension string
	StateDir        string
	LockTimeout     time.Duration
}

// NewFileSourceRegistry creates a registry backed by the filesystem
func NewFileSourceRegistry(cfg FileConfig, opts ...Option) SourceRegistry {
	return NewSourceRegistry(
		NewFileConfigStore(cfg.DocumentPath),
		NewFileModuleStore(cfg.ModulesDir, cfg.ModuleExtension),
		NewFileIntentJournal(cfg.StateDir),
		NewFileLocker(cfg.DocumentPath, cfg.LockTimeout),
		opts...,
	)
}

// Register performs the two-phase write: configuration first, module second
func (r *sourceRegistry) Register(ctx context.Context, id string, config json.RawMessage, code string) error {
	unlock, err := r.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := r.configs.Load(ctx)
	if err != nil {
		return err
	}

	if doc.Has(id) {
		present, err := r.modules.Exists(ctx, id)
		if err != nil {
			return err
		}
		if present {
			return fmt.Errorf("%w: source %q already exists", ErrDuplicateIdentifier, id)
		}
		return fmt.Errorf("%w: source %q has a configuration entry but no module; repair or discard it",
			ErrPartialRegistration, id)
	}

	intent := &Intent{
		ID:        id,
		RequestID: uuid.NewString(),
		StartedAt: r.now().UTC(),
	}
	if err := r.intents.Begin(ctx, intent); err != nil {
		return err
	}

	doc[id] = config
	if err := r.configs.Save(ctx, doc); err != nil {
		if clearErr := r.intents.Complete(ctx, id); clearErr != nil {
			slog.WarnContext(ctx, "Failed to clear intent after document write failure",
				"source_id", id, "error", clearErr)
		}
		return err
	}

	if err := r.modules.Write(ctx, id, code); err != nil {
		slog.ErrorContext(ctx, "Source configuration persisted without module",
			"source_id", id,
			"request_id", intent.RequestID,
			"error", err)
		return fmt.Errorf("%w: configuration for source %q was saved but its module was not: %w",
			ErrPartialRegistration, id, err)
	}

	if err := r.intents.Complete(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to clear intent after registration", "source_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Source registered",
		"source_id", id,
		"name", gjson.GetBytes(config, "name").String(),
		"request_id", intent.RequestID,
		"module", r.modules.PathFor(id))

	return nil
}

// List returns every registered source
func (r *sourceRegistry) List(ctx context.Context) ([]*Entry, error) {
	doc, err := r.configs.Load(ctx)
	if err != nil {
		return nil, err
	}

	present, err := r.moduleSet(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(doc))
	for _, id := range doc.IDs() {
		entries = append(entries, &Entry{
			ID:            id,
			Config:        doc[id],
			ModulePresent: present[id],
		})
	}

	return entries, nil
}

// Get returns one registered source
func (r *sourceRegistry) Get(ctx context.Context, id string) (*Entry, error) {
	doc, err := r.configs.Load(ctx)
	if err != nil {
		return nil, err
	}

	config, ok := doc[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}

	present, err := r.modules.Exists(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Entry{ID: id, Config: config, ModulePresent: present}, nil
}

// Repair writes the module of an orphan and clears its intent
func (r *sourceRegistry) Repair(ctx context.Context, id string, code string) error {
	unlock, err := r.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := r.configs.Load(ctx)
	if err != nil {
		return err
	}
	if !doc.Has(id) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}

	present, err := r.modules.Exists(ctx, id)
	if err != nil {
		return err
	}
	if present {
		return fmt.Errorf("%w: source %q already has a module", ErrDuplicateIdentifier, id)
	}

	if err := r.modules.Write(ctx, id, code); err != nil {
		return err
	}

	if err := r.intents.Complete(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to clear intent after repair", "source_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Orphaned source repaired", "source_id", id, "module", r.modules.PathFor(id))
	return nil
}

// Discard removes the configuration entry of an orphan
func (r *sourceRegistry) Discard(ctx context.Context, id string) error {
	unlock, err := r.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := r.configs.Load(ctx)
	if err != nil {
		return err
	}
	if !doc.Has(id) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}

	present, err := r.modules.Exists(ctx, id)
	if err != nil {
		return err
	}
	if present {
		return fmt.Errorf("%w: source %q has a module", ErrNotOrphaned, id)
	}

	delete(doc, id)
	if err := r.configs.Save(ctx, doc); err != nil {
		return err
	}

	if err := r.intents.Complete(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to clear intent after discard", "source_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Orphaned source discarded", "source_id", id)
	return nil
}

// Check compares the document with the module directory and the intent markers.
// Intents of healthy sources, and intents older than the stale age whose source
// never reached the document, are removed.
func (r *sourceRegistry) Check(ctx context.Context) (*Report, error) {
	unlock, err := r.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := r.configs.Load(ctx)
	if err != nil {
		return nil, err
	}

	present, err := r.moduleSet(ctx)
	if err != nil {
		return nil, err
	}

	intents, err := r.intents.List(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	report := &Report{
		CheckedAt:      now,
		Sources:        len(doc),
		Orphans:        []string{},
		StrayModules:   []string{},
		PendingIntents: []*Intent{},
		ClearedIntents: []string{},
	}

	for _, id := range doc.IDs() {
		if !present[id] {
			report.Orphans = append(report.Orphans, id)
		}
	}
	for id := range present {
		if !doc.Has(id) {
			report.StrayModules = append(report.StrayModules, id)
		}
	}
	slices.Sort(report.StrayModules)

	for _, intent := range intents {
		switch {
		case doc.Has(intent.ID) && !present[intent.ID]:
			report.PendingIntents = append(report.PendingIntents, intent)
			continue
		case !doc.Has(intent.ID) && now.Sub(intent.StartedAt) < r.staleIntentAge:
			continue
		}

		if err := r.intents.Complete(ctx, intent.ID); err != nil {
			slog.WarnContext(ctx, "Failed to clear intent", "source_id", intent.ID, "error", err)
			continue
		}
		report.ClearedIntents = append(report.ClearedIntents, intent.ID)
	}

	return report, nil
}

func (r *sourceRegistry) moduleSet(ctx context.Context) (map[string]bool, error) {
	ids, err := r.modules.List(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	return present, nil
}
