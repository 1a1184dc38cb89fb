package registry

import "errors"

var (
	// ErrDuplicateIdentifier is returned when a healthy source with the same identifier exists
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrConfigCorrupt is returned when the registry document cannot be parsed as a JSON object
	ErrConfigCorrupt = errors.New("registry document is corrupt")

	// ErrIOFailure is returned when reading or writing a registry artifact fails
	ErrIOFailure = errors.New("registry I/O failure")

	// ErrPartialRegistration is returned when the configuration is persisted but the module is not
	ErrPartialRegistration = errors.New("partial registration")

	// ErrRegistryBusy is returned when the registry lock cannot be acquired in time
	ErrRegistryBusy = errors.New("registry is busy")

	// ErrSourceNotFound is returned when the identifier has no entry in the registry document
	ErrSourceNotFound = errors.New("source not found")

	// ErrNotOrphaned is returned when discarding a source whose module exists
	ErrNotOrphaned = errors.New("source is not orphaned")
)
