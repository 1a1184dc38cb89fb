package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/tidwall/gjson"
)

//go:generate mockgen -destination=mocks/mock_config_store.go -package=mocks -source=config_store.go ConfigStore

// ConfigStore persists the registry document as a whole
type ConfigStore interface {
	// Load reads the registry document. A missing document is an empty one.
	Load(ctx context.Context) (Document, error)

	// Save replaces the registry document
	Save(ctx context.Context, doc Document) error

	// Path returns the location of the registry document
	Path() string
}

// fileConfigStore implements ConfigStore on a single JSON file
type fileConfigStore struct {
	path string
}

// NewFileConfigStore creates a config store backed by the JSON file at path
func NewFileConfigStore(path string) ConfigStore {
	return &fileConfigStore{path: path}
}

// Path returns the document path
func (s *fileConfigStore) Path() string {
	return s.path
}

// Load reads and parses the registry document
func (s *fileConfigStore) Load(_ context.Context) (Document, error) {
	// #nosec G304 -- path comes from server configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read registry document %s: %w", ErrIOFailure, s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConfigCorrupt, s.path)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrConfigCorrupt, s.path)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrConfigCorrupt, s.path)
	}

	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigCorrupt, s.path, err)
	}

	return doc, nil
}

// Save writes the whole document with two-space indentation. Entries already in the
// file keep their position; new entries follow them in key order.
func (s *fileConfigStore) Save(_ context.Context, doc Document) error {
	if doc == nil {
		doc = Document{}
	}

	data, err := encodeDocument(doc, s.currentOrder())
	if err != nil {
		return fmt.Errorf("%w: failed to marshal registry document: %w", ErrIOFailure, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("%w: failed to create document directory: %w", ErrIOFailure, err)
	}

	// The document is read by the aggregation service build
	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to save registry document %s: %w", ErrIOFailure, s.path, err)
	}

	return nil
}

// currentOrder returns the keys of the document on disk in file order. An unreadable
// or malformed document has no order.
func (s *fileConfigStore) currentOrder() []string {
	// #nosec G304 -- path comes from server configuration
	data, err := os.ReadFile(s.path)
	if err != nil || !gjson.ValidBytes(data) {
		return nil
	}

	var keys []string
	gjson.ParseBytes(data).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

func encodeDocument(doc Document, order []string) ([]byte, error) {
	keys := make([]string, 0, len(doc))
	seen := make(map[string]bool, len(doc))
	for _, k := range order {
		if _, ok := doc[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	added := make([]string, 0, len(doc)-len(keys))
	for k := range doc {
		if !seen[k] {
			added = append(added, k)
		}
	}
	slices.Sort(added)
	keys = append(keys, added...)

	if len(keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range keys {
		key, err := encodeJSON(k, "")
		if err != nil {
			return nil, err
		}
		value, err := encodeJSON(doc[k], "  ")
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeJSON indents v with prefix on every line but the first, leaving HTML
// characters unescaped
func encodeJSON(v any, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
