package filtering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/newsnow-ops/source-registry-server/internal/registry"
)

// Criteria selects sources by identifier pattern and by tag
type Criteria struct {
	IncludeIDs  []string
	ExcludeIDs  []string
	IncludeTags []string
	ExcludeTags []string
}

// IsEmpty reports whether the criteria select every source
func (c *Criteria) IsEmpty() bool {
	return c == nil ||
		len(c.IncludeIDs) == 0 && len(c.ExcludeIDs) == 0 &&
			len(c.IncludeTags) == 0 && len(c.ExcludeTags) == 0
}

// Validate checks that every identifier pattern compiles
func (c *Criteria) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, pattern := range append(append([]string{}, c.IncludeIDs...), c.ExcludeIDs...) {
		if _, err := compilePattern(pattern); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FilterService applies identifier and tag filters to a registry listing
type FilterService interface {
	// Apply returns the entries selected by criteria, in their original order
	Apply(ctx context.Context, entries []*registry.Entry, criteria *Criteria) []*registry.Entry
}

// defaultFilterService implements filtering coordination using name and tag filters
type defaultFilterService struct {
	nameFilter NameFilter
	tagFilter  TagFilter
}

// NewDefaultFilterService creates a new defaultFilterService with default filter implementations
func NewDefaultFilterService() FilterService {
	return &defaultFilterService{
		nameFilter: NewDefaultNameFilter(),
		tagFilter:  NewDefaultTagFilter(),
	}
}

// NewFilterService creates a new defaultFilterService with custom filter implementations
func NewFilterService(nameFilter NameFilter, tagFilter TagFilter) FilterService {
	return &defaultFilterService{
		nameFilter: nameFilter,
		tagFilter:  tagFilter,
	}
}

// Apply returns the entries selected by criteria. Empty criteria return entries unchanged.
func (s *defaultFilterService) Apply(
	ctx context.Context,
	entries []*registry.Entry,
	criteria *Criteria,
) []*registry.Entry {
	if criteria.IsEmpty() {
		return entries
	}

	filtered := make([]*registry.Entry, 0, len(entries))
	for _, entry := range entries {
		tags := ExtractTags(entry.Config)
		included, reason := s.shouldIncludeWithReason(entry.ID, tags, criteria)
		if included {
			filtered = append(filtered, entry)
		}
		slog.DebugContext(ctx, "Source filter decision",
			"source_id", entry.ID,
			"tags", tags,
			"included", included,
			"reason", reason)
	}

	slog.DebugContext(ctx, "Source filtering completed",
		"included", len(filtered),
		"excluded", len(entries)-len(filtered))
	return filtered
}

// shouldIncludeWithReason requires both the identifier and the tag filter to pass
func (s *defaultFilterService) shouldIncludeWithReason(id string, tags []string, c *Criteria) (bool, string) {
	idIncluded, idReason := s.nameFilter.ShouldInclude(id, c.IncludeIDs, c.ExcludeIDs)
	if !idIncluded {
		return false, fmt.Sprintf("identifier filter: %s", idReason)
	}

	tagIncluded, tagReason := s.tagFilter.ShouldInclude(tags, c.IncludeTags, c.ExcludeTags)
	if !tagIncluded {
		return false, fmt.Sprintf("tag filter: %s", tagReason)
	}

	reasons := []string{}
	if len(c.IncludeIDs) > 0 || len(c.ExcludeIDs) > 0 {
		reasons = append(reasons, fmt.Sprintf("identifier filter: %s", idReason))
	}
	if len(c.IncludeTags) > 0 || len(c.ExcludeTags) > 0 {
		reasons = append(reasons, fmt.Sprintf("tag filter: %s", tagReason))
	}
	return true, "passed all filters: " + strings.Join(reasons, " AND ")
}
