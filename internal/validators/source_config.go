package validators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
)

// SourceConfigValidator checks that a source configuration is a JSON object and,
// when a schema is configured, that it satisfies that schema.
type SourceConfigValidator struct {
	schema *jsonschema.Schema
}

// NewSourceConfigValidator creates a validator. schemaPath is optional; the schema
// file may contain comments and trailing commas (JSONC).
func NewSourceConfigValidator(schemaPath string) (*SourceConfigValidator, error) {
	if schemaPath == "" {
		return &SourceConfigValidator{}, nil
	}

	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config schema: %w", err)
	}

	schema, err := compileSchema(absPath, data)
	if err != nil {
		return nil, err
	}

	return &SourceConfigValidator{schema: schema}, nil
}

func compileSchema(location string, data []byte) (*jsonschema.Schema, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(standardized))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(location, doc); err != nil {
		return nil, fmt.Errorf("failed to load config schema: %w", err)
	}

	schema, err := compiler.Compile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}

	return schema, nil
}

// HasSchema reports whether a schema is enforced
func (v *SourceConfigValidator) HasSchema() bool {
	return v.schema != nil
}

// Validate returns an error when raw is not an acceptable source configuration
func (v *SourceConfigValidator) Validate(raw json.RawMessage) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("config cannot be empty")
	}

	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("config is not valid JSON")
	}

	if !gjson.ParseBytes(raw).IsObject() {
		return fmt.Errorf("config must be a JSON object")
	}

	if v.schema == nil {
		return nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("config is not valid JSON: %w", err)
	}

	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}

	return nil
}
