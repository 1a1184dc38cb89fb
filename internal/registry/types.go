package registry

import (
	"encoding/json"
	"slices"
	"time"
)

// Document is the in-memory form of the registry document
type Document map[string]json.RawMessage

// Has reports whether id has an entry
func (d Document) Has(id string) bool {
	_, ok := d[id]
	return ok
}

// IDs returns the identifiers in lexical order
func (d Document) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Entry is a read-only view of one registered source
type Entry struct {
	ID            string          `json:"id"`
	Config        json.RawMessage `json:"config"`
	ModulePresent bool            `json:"modulePresent"`
}

// Intent is the write-ahead marker of one registration in progress
type Intent struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	StartedAt time.Time `json:"startedAt"`
}

// Report is the result of a consistency check
type Report struct {
	CheckedAt time.Time `json:"checkedAt"`

	// Sources is the number of entries in the registry document
	Sources int `json:"sources"`

	// Orphans are configuration entries whose module is missing
	Orphans []string `json:"orphans"`

	// StrayModules are module files with no configuration entry
	StrayModules []string `json:"strayModules"`

	// PendingIntents are the intents of orphans that this subsystem created and never completed
	PendingIntents []*Intent `json:"pendingIntents"`

	// ClearedIntents are identifiers whose stale or completed intent markers were removed
	ClearedIntents []string `json:"clearedIntents"`
}

// Healthy reports whether the registry has no orphans and no stray modules
func (r *Report) Healthy() bool {
	return len(r.Orphans) == 0 && len(r.StrayModules) == 0
}
