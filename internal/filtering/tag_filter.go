package filtering

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
)

// DisabledTag is the tag of a source whose configuration sets "disable" to true
const DisabledTag = "disabled"

// TagFilter handles tag-based filtering using exact string matching
type TagFilter interface {
	// ShouldInclude determines if a source with given tags should be included based on include/exclude tag lists
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(tags []string, include, exclude []string) (bool, string)
}

// DefaultTagFilter implements tag filtering using exact string matching
type DefaultTagFilter struct{}

// NewDefaultTagFilter creates a new DefaultTagFilter
func NewDefaultTagFilter() *DefaultTagFilter {
	return &DefaultTagFilter{}
}

// ShouldInclude determines if a source with given tags should be included based on include/exclude tag lists
func (*DefaultTagFilter) ShouldInclude(tags []string, include, exclude []string) (bool, string) {
	for _, tag := range tags {
		if slices.Contains(exclude, tag) {
			return false, fmt.Sprintf("excluded by tag '%s'", tag)
		}
	}

	if len(include) > 0 {
		for _, tag := range tags {
			if slices.Contains(include, tag) {
				return true, fmt.Sprintf("included by tag '%s'", tag)
			}
		}
		return false, fmt.Sprintf("no matching tags found in include list %v (source tags: %v)", include, tags)
	}

	if len(exclude) > 0 {
		return true, fmt.Sprintf("no matching tags in exclude list %v (source tags: %v)", exclude, tags)
	}
	return true, "no tag filters specified"
}

// ExtractTags returns the tags of a source configuration entry
func ExtractTags(config json.RawMessage) []string {
	parsed := gjson.ParseBytes(config)

	var tags []string
	for _, field := range []string{"column", "type"} {
		if v := parsed.Get(field); v.Type == gjson.String && v.Str != "" {
			tags = append(tags, v.Str)
		}
	}
	if parsed.Get("disable").Bool() {
		tags = append(tags, DisabledTag)
	}
	return tags
}
