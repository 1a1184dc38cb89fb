package filtering

import (
	"fmt"

	"github.com/gobwas/glob"
)

// NameFilter handles identifier filtering using glob patterns
type NameFilter interface {
	// ShouldInclude determines if a source identifier should be included based on include/exclude patterns
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(id string, include, exclude []string) (bool, string)
}

// defaultNameFilter implements identifier filtering using glob patterns
type defaultNameFilter struct{}

var _ NameFilter = (*defaultNameFilter)(nil)

// NewDefaultNameFilter creates a new defaultNameFilter
func NewDefaultNameFilter() NameFilter {
	return &defaultNameFilter{}
}

// compilePattern compiles a glob pattern. No separators are passed, so '*' matches any character.
func compilePattern(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty glob pattern")
	}
	compiled, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return compiled, nil
}

func matchPattern(pattern, id string) (bool, error) {
	compiled, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return compiled.Match(id), nil
}

// ShouldInclude determines if a source identifier should be included based on include/exclude patterns.
// Exclude patterns are checked first; an invalid pattern excludes the source.
func (*defaultNameFilter) ShouldInclude(id string, include, exclude []string) (bool, string) {
	for _, pattern := range exclude {
		matches, err := matchPattern(pattern, id)
		if err != nil {
			return false, fmt.Sprintf("invalid exclude pattern: %v", err)
		}
		if matches {
			return false, fmt.Sprintf("excluded by pattern '%s'", pattern)
		}
	}

	if len(include) > 0 {
		for _, pattern := range include {
			matches, err := matchPattern(pattern, id)
			if err != nil {
				return false, fmt.Sprintf("invalid include pattern: %v", err)
			}
			if matches {
				return true, fmt.Sprintf("included by pattern '%s'", pattern)
			}
		}
		return false, fmt.Sprintf("no match found in include patterns %v", include)
	}

	if len(exclude) > 0 {
		return true, fmt.Sprintf("no match in exclude patterns %v", exclude)
	}
	return true, "no identifier filters specified"
}
