// Package config provides configuration types, defaults and validation for
// kindhub.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/kindhub/internal/flags"
	"github.com/zjrosen/kindhub/internal/log"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterFile   = "file"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds all configuration options for kindhub.
type Config struct {
	Project   string          `mapstructure:"project"`
	Manifests ManifestsConfig `mapstructure:"manifests"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Flags     map[string]bool `mapstructure:"flags"`
}

// ManifestsConfig locates YAML kind manifests.
type ManifestsConfig struct {
	// Dir is walked for *.yaml manifests. Empty disables manifest loading.
	Dir string `mapstructure:"dir"`
}

// StoreConfig selects the CRUD backend for persisted entities.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "memory" (default) or "sqlite"
	Path    string `mapstructure:"path"`    // database file for sqlite
}

// CacheConfig tunes the runtime cache.
type CacheConfig struct {
	RuntimeTTL      time.Duration `mapstructure:"runtime_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ExecutionConfig holds run defaults.
type ExecutionConfig struct {
	// LocalExecution is used when a run request does not choose.
	LocalExecution bool `mapstructure:"local_execution"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/kindhub/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LogConfig controls the file log sink.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"` // debug, info (default), warn, error
}

// DefaultTracesFilePath returns ~/.config/kindhub/traces/traces.jsonl, or
// an empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kindhub", "traces", "traces.jsonl")
}

// DefaultStorePath returns ~/.kindhub/kindhub.db, or an empty string if the
// home directory is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kindhub", "kindhub.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Project: "default",
		Store: StoreConfig{
			Backend: StoreMemory,
			Path:    DefaultStorePath(),
		},
		Cache: CacheConfig{
			RuntimeTTL:      30 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     ExporterFile,
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Enabled: false,
			Level:   "info",
		},
		Flags: flags.Defaults(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}
	if err := ValidateStore(c.Store); err != nil {
		return err
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateLog(c.Log)
}

// ValidateStore checks store configuration for errors.
func ValidateStore(store StoreConfig) error {
	switch store.Backend {
	case "", StoreMemory:
		return nil
	case StoreSQLite:
		if store.Path == "" {
			return fmt.Errorf("store.path is required when backend is \"sqlite\"")
		}
		return nil
	default:
		return fmt.Errorf("store.backend must be \"memory\" or \"sqlite\", got %q", store.Backend)
	}
}

// ValidateCache checks cache durations.
func ValidateCache(cache CacheConfig) error {
	if cache.RuntimeTTL < 0 {
		return fmt.Errorf("cache.runtime_ttl must not be negative, got %s", cache.RuntimeTTL)
	}
	if cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", cache.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case ExporterNone, ExporterFile, ExporterStdout, ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == ExporterFile && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == ExporterOTLP && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// ValidateLog checks log configuration for errors.
func ValidateLog(l LogConfig) error {
	if _, err := log.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if l.Enabled && l.Path == "" {
		return fmt.Errorf("log.path is required when logging is enabled")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# kindhub configuration

# Project that new entities belong to
project: default

# Kind manifests: every *.yaml below dir declares kinds bound to
# runtimes and validators compiled into the binary
# manifests:
#   dir: ./kinds

# Entity store
store:
  backend: memory            # memory (default) or sqlite
  # path: ~/.kindhub/kindhub.db

# Runtime cache (used when the runtime-cache flag is on)
cache:
  runtime_ttl: 30m
  cleanup_interval: 10m

# Run defaults
execution:
  local_execution: false

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/kindhub/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# File logging
log:
  enabled: false
  # path: ~/.kindhub/kindhub.log
  level: info

# Feature flags
flags:
  run-persistence: false   # Save runs through the store as they progress
  runtime-cache: true      # Reuse runtimes per kind and project
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
