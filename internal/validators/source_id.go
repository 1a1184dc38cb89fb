// Package validators provides validation functions for source registration input.
package validators

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultSourceIDPattern allows alphanumerics with '-' and '_' in the middle
	DefaultSourceIDPattern = `^[a-zA-Z0-9]([a-zA-Z0-9_-]*[a-zA-Z0-9])?$`

	// DefaultMaxSourceIDLength is the default maximum identifier length
	DefaultMaxSourceIDLength = 64
)

// SourceIDValidator checks source identifiers against an allow-list.
//
// Identifiers become file names in the module directory and keys of the registry
// document, so on top of the configured pattern every identifier must be a single
// local path element: no separators, no "." or "..", no leading dot.
type SourceIDValidator struct {
	pattern   *regexp.Regexp
	maxLength int
}

// NewSourceIDValidator creates a validator from an allow-list pattern and a maximum length.
// An empty pattern or a non-positive length selects the defaults.
func NewSourceIDValidator(pattern string, maxLength int) (*SourceIDValidator, error) {
	if pattern == "" {
		pattern = DefaultSourceIDPattern
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxSourceIDLength
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid source id pattern: %w", err)
	}

	return &SourceIDValidator{
		pattern:   re,
		maxLength: maxLength,
	}, nil
}

var defaultSourceIDValidator = func() *SourceIDValidator {
	v, err := NewSourceIDValidator("", 0)
	if err != nil {
		panic(err)
	}
	return v
}()

// ValidateSourceID validates an identifier with the default policy
func ValidateSourceID(id string) error {
	return defaultSourceIDValidator.Validate(id)
}

// Validate returns an error describing why id is not an acceptable source identifier.
//
// Examples of valid identifiers:
//   - techblog
//   - hacker-news
//   - v2ex_share
//
// Examples of invalid identifiers:
//   - ../etc/passwd (path traversal)
//   - tech blog (whitespace)
//   - -leading-dash
//   - $(reboot) (shell metacharacters)
func (v *SourceIDValidator) Validate(id string) error {
	if id == "" {
		return fmt.Errorf("source id cannot be empty")
	}

	if len(id) > v.maxLength {
		return fmt.Errorf("source id exceeds maximum length of %d characters", v.maxLength)
	}

	if strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("source id %q must be a single file name without path elements", id)
	}

	if !v.pattern.MatchString(id) {
		return fmt.Errorf("source id %q is invalid: it must match %s", id, v.pattern.String())
	}

	return nil
}

// IsValidSourceID reports whether id passes the default policy
func IsValidSourceID(id string) bool {
	return ValidateSourceID(id) == nil
}
