// Package config provides configuration types and defaults for nodegraph.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/nodegraph/internal/execution"
	"github.com/zjrosen/nodegraph/internal/flags"
	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/tracing"
)

// Output formats for flattened prompts.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds all configuration options for nodegraph.
type Config struct {
	Log     LogConfig       `mapstructure:"log"`
	Flatten FlattenConfig   `mapstructure:"flatten"`
	Store   StoreConfig     `mapstructure:"store"`
	Tracing tracing.Config  `mapstructure:"tracing"`
	Watch   WatchConfig     `mapstructure:"watch"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Path  string `mapstructure:"path"`  // Empty disables logging
	Level string `mapstructure:"level"` // debug, info, warn or error
}

// FlattenConfig holds defaults for the flatten command.
type FlattenConfig struct {
	MaxDepth int    `mapstructure:"max_depth"`
	Format   string `mapstructure:"format"` // "json" (default) or "yaml"
}

// StoreConfig locates the blueprint database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig tunes flatten --watch.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultStorePath returns ~/.nodegraph/blueprints.db, or a relative path
// when the home directory is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".nodegraph", "blueprints.db")
	}
	return filepath.Join(home, ".nodegraph", "blueprints.db")
}

// DefaultTracesFilePath returns ~/.config/nodegraph/traces/traces.jsonl or
// empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nodegraph", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Flatten: FlattenConfig{
			MaxDepth: execution.MaxNestedSubgraphs,
			Format:   FormatJSON,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Tracing: tc,
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Flags: flags.Defaults(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateFlatten(c.Flatten); err != nil {
		return err
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateFlatten checks flatten defaults.
func ValidateFlatten(f FlattenConfig) error {
	if f.MaxDepth < 1 {
		return fmt.Errorf("flatten.max_depth must be at least 1, got %d", f.MaxDepth)
	}
	switch f.Format {
	case "", FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("flatten.format must be %q or %q, got %q", FormatJSON, FormatYAML, f.Format)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# nodegraph configuration

# Debug log
log:
  # path: ~/.nodegraph/debug.log  # Unset disables logging
  level: info                     # debug, info, warn or error

# Flattening
flatten:
  max_depth: 1000   # Deepest allowed subgraph nesting
  format: json      # Prompt output: json or yaml

# Blueprint library
store:
  # path: ~/.nodegraph/blueprints.db

# flatten --watch
watch:
  debounce: 200ms   # Quiet period before re-flattening

# Feature flags
flags:
  hydrate-blueprints: true   # flatten pulls missing subgraph definitions from the blueprint library
  prune-unused: false        # blueprint save skips definitions no node uses

# Tracing of flattening passes
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/nodegraph/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
