// Package config provides configuration loading and management for the source registry server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newsnow-ops/source-registry-server/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variables read through viper
	EnvPrefix = "SOURCE_REGISTRY"

	// DefaultStateDir is where intent markers and rebuild status are kept
	DefaultStateDir = "./data"

	// DefaultDocumentPath is the registry document shared with the aggregation service build
	DefaultDocumentPath = "./shared/sources.json"

	// DefaultModulesDir is the directory holding one extraction module per source
	DefaultModulesDir = "./server/sources"

	// DefaultModuleExtension is appended to the source identifier to name its module
	DefaultModuleExtension = ".ts"

	// DefaultLockTimeout bounds how long a mutation waits for the registry lock
	DefaultLockTimeout = 10 * time.Second

	// DefaultIDPattern is the identifier allow-list: alphanumerics with inner '-' and '_'
	DefaultIDPattern = `^[a-zA-Z0-9]([a-zA-Z0-9_-]*[a-zA-Z0-9])?$`

	// DefaultMaxIDLength is the maximum length of a source identifier
	DefaultMaxIDLength = 64

	// DefaultMaxCodeBytes is the maximum size of an extraction module
	DefaultMaxCodeBytes = 1 << 20

	// DefaultMaxBodyBytes is the maximum size of a registration request body
	DefaultMaxBodyBytes = 2 << 20

	// DefaultAuditInterval is the period of the background consistency audit
	DefaultAuditInterval = 5 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// StateDir holds intent markers and the persisted rebuild status
	StateDir string `yaml:"stateDir,omitempty"`

	Registry   RegistryConfig    `yaml:"registry"`
	Validation ValidationConfig  `yaml:"validation,omitempty"`
	Rebuild    RebuildConfig     `yaml:"rebuild,omitempty"`
	Audit      AuditConfig       `yaml:"audit,omitempty"`
	Server     ServerConfig      `yaml:"server,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// RegistryConfig defines where the two registry artifacts live
type RegistryConfig struct {
	// DocumentPath is the JSON document mapping every source identifier to its configuration
	DocumentPath string `yaml:"documentPath,omitempty"`

	// ModulesDir receives one extraction module per source, named <id><ModuleExtension>
	ModulesDir string `yaml:"modulesDir,omitempty"`

	// ModuleExtension is the file extension of extraction modules (e.g. ".ts")
	ModuleExtension string `yaml:"moduleExtension,omitempty"`

	// LockTimeout is how long a mutation waits for the registry lock (e.g. "10s")
	LockTimeout string `yaml:"lockTimeout,omitempty"`
}

// ValidationConfig defines input validation applied before the registry is touched
type ValidationConfig struct {
	// IDPattern is the allow-list regular expression for source identifiers
	IDPattern string `yaml:"idPattern,omitempty"`

	// MaxIDLength caps the identifier length
	MaxIDLength int `yaml:"maxIdLength,omitempty"`

	// MaxCodeBytes caps the size of an extraction module
	MaxCodeBytes int `yaml:"maxCodeBytes,omitempty"`

	// ConfigSchema is an optional JSON Schema (JSON or JSONC) every source configuration must satisfy
	ConfigSchema string `yaml:"configSchema,omitempty"`
}

// RebuildConfig defines the external build-and-restart command
type RebuildConfig struct {
	// Command is the argv of the rebuild command. It is executed without a shell;
	// use ["sh", "-c", "..."] explicitly when shell syntax is needed.
	Command []string `yaml:"command,omitempty"`

	// WorkDir is the working directory of the command
	WorkDir string `yaml:"workDir,omitempty"`

	// Env holds extra environment variables passed to the command
	Env map[string]string `yaml:"env,omitempty"`
}

// AuditConfig defines the background consistency audit
type AuditConfig struct {
	// Interval between two audits (e.g. "5m")
	Interval string `yaml:"interval,omitempty"`

	// Watch re-runs the audit when the registry document changes on disk
	Watch *bool `yaml:"watch,omitempty"`

	// RollbackOrphans discards configuration entries left behind by a failed module write
	RollbackOrphans bool `yaml:"rollbackOrphans,omitempty"`
}

// ServerConfig defines HTTP transport limits
type ServerConfig struct {
	// MaxBodyBytes caps the size of a request body
	MaxBodyBytes int64 `yaml:"maxBodyBytes,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration using every default value
func Default() *Config {
	return &Config{}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if ext := c.Registry.ModuleExtension; ext != "" {
		if !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
			errs = append(errs, fmt.Errorf("registry.moduleExtension must start with '.' and contain no path separator, got %q", ext))
		}
	}

	if c.Registry.LockTimeout != "" {
		if d, err := time.ParseDuration(c.Registry.LockTimeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("registry.lockTimeout must be a positive duration (e.g., '10s'), got %q", c.Registry.LockTimeout))
		}
	}

	if c.Validation.IDPattern != "" {
		if _, err := regexp.Compile(c.Validation.IDPattern); err != nil {
			errs = append(errs, fmt.Errorf("validation.idPattern is not a valid regular expression: %w", err))
		}
	}
	if c.Validation.MaxIDLength < 0 {
		errs = append(errs, fmt.Errorf("validation.maxIdLength cannot be negative"))
	}
	if c.Validation.MaxCodeBytes < 0 {
		errs = append(errs, fmt.Errorf("validation.maxCodeBytes cannot be negative"))
	}

	if len(c.Rebuild.Command) > 0 && strings.TrimSpace(c.Rebuild.Command[0]) == "" {
		errs = append(errs, fmt.Errorf("rebuild.command[0] cannot be empty"))
	}

	if c.Audit.Interval != "" {
		if d, err := time.ParseDuration(c.Audit.Interval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("audit.interval must be a positive duration (e.g., '5m'), got %q", c.Audit.Interval))
		}
	}

	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.maxBodyBytes cannot be negative"))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// GetStateDir returns the state directory, using the default if not specified
func (c *Config) GetStateDir() string {
	if c.StateDir == "" {
		return DefaultStateDir
	}
	return c.StateDir
}

// GetDocumentPath returns the registry document path, using the default if not specified
func (c *Config) GetDocumentPath() string {
	if c.Registry.DocumentPath == "" {
		return DefaultDocumentPath
	}
	return c.Registry.DocumentPath
}

// GetModulesDir returns the modules directory, using the default if not specified
func (c *Config) GetModulesDir() string {
	if c.Registry.ModulesDir == "" {
		return DefaultModulesDir
	}
	return c.Registry.ModulesDir
}

// GetModuleExtension returns the module file extension, using the default if not specified
func (c *Config) GetModuleExtension() string {
	if c.Registry.ModuleExtension == "" {
		return DefaultModuleExtension
	}
	return c.Registry.ModuleExtension
}

// GetLockTimeout returns the registry lock timeout. Validate must have been called.
func (c *Config) GetLockTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Registry.LockTimeout); err == nil && d > 0 {
		return d
	}
	return DefaultLockTimeout
}

// GetIDPattern returns the identifier allow-list pattern
func (c *Config) GetIDPattern() string {
	if c.Validation.IDPattern == "" {
		return DefaultIDPattern
	}
	return c.Validation.IDPattern
}

// GetMaxIDLength returns the maximum identifier length
func (c *Config) GetMaxIDLength() int {
	if c.Validation.MaxIDLength == 0 {
		return DefaultMaxIDLength
	}
	return c.Validation.MaxIDLength
}

// GetMaxCodeBytes returns the maximum module size
func (c *Config) GetMaxCodeBytes() int {
	if c.Validation.MaxCodeBytes == 0 {
		return DefaultMaxCodeBytes
	}
	return c.Validation.MaxCodeBytes
}

// GetMaxBodyBytes returns the maximum request body size
func (c *Config) GetMaxBodyBytes() int64 {
	if c.Server.MaxBodyBytes == 0 {
		return DefaultMaxBodyBytes
	}
	return c.Server.MaxBodyBytes
}

// RebuildEnabled reports whether a rebuild command is configured
func (c *Config) RebuildEnabled() bool {
	return len(c.Rebuild.Command) > 0
}

// GetAuditInterval returns the audit interval. Validate must have been called.
func (c *Config) GetAuditInterval() time.Duration {
	if d, err := time.ParseDuration(c.Audit.Interval); err == nil && d > 0 {
		return d
	}
	return DefaultAuditInterval
}

// WatchDocument reports whether the auditor should watch the registry document
func (c *Config) WatchDocument() bool {
	if c.Audit.Watch == nil {
		return true
	}
	return *c.Audit.Watch
}
