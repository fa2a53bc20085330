package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/kindhub/internal/flags"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "default", cfg.Project)
	require.Equal(t, StoreMemory, cfg.Store.Backend)
	require.Equal(t, 30*time.Minute, cfg.Cache.RuntimeTTL)
	require.Equal(t, ExporterFile, cfg.Tracing.Exporter)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)
	require.False(t, cfg.Tracing.Enabled)
	require.True(t, cfg.Flags[flags.FlagRuntimeCache])
	require.False(t, cfg.Flags[flags.FlagRunPersistence])
	require.NoError(t, cfg.Validate())
}

func TestValidateStore(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{name: "empty backend", store: StoreConfig{}},
		{name: "memory", store: StoreConfig{Backend: StoreMemory}},
		{name: "sqlite with path", store: StoreConfig{Backend: StoreSQLite, Path: "/tmp/k.db"}},
		{name: "sqlite without path", store: StoreConfig{Backend: StoreSQLite}, wantErr: "store.path is required"},
		{name: "unknown backend", store: StoreConfig{Backend: "postgres"}, wantErr: "store.backend must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStore(tt.store)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		wantErr string
	}{
		{name: "empty", tracing: TracingConfig{}},
		{name: "sample rate too high", tracing: TracingConfig{SampleRate: 1.5}, wantErr: "sample_rate"},
		{name: "sample rate negative", tracing: TracingConfig{SampleRate: -0.1}, wantErr: "sample_rate"},
		{name: "bad exporter", tracing: TracingConfig{Exporter: "zipkin"}, wantErr: "tracing.exporter"},
		{name: "file without path when enabled", tracing: TracingConfig{Enabled: true, Exporter: ExporterFile}, wantErr: "file_path"},
		{name: "file without path when disabled", tracing: TracingConfig{Exporter: ExporterFile}},
		{name: "otlp without endpoint", tracing: TracingConfig{Enabled: true, Exporter: ExporterOTLP}, wantErr: "otlp_endpoint"},
		{name: "stdout", tracing: TracingConfig{Enabled: true, Exporter: ExporterStdout, SampleRate: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateCacheAndLog(t *testing.T) {
	require.Error(t, ValidateCache(CacheConfig{RuntimeTTL: -time.Second}))
	require.Error(t, ValidateCache(CacheConfig{CleanupInterval: -time.Second}))
	require.NoError(t, ValidateCache(CacheConfig{}))

	require.ErrorContains(t, ValidateLog(LogConfig{Level: "loud"}), "log.level")
	require.ErrorContains(t, ValidateLog(LogConfig{Enabled: true}), "log.path")
	require.NoError(t, ValidateLog(LogConfig{Enabled: true, Path: "/tmp/k.log", Level: "debug"}))
}

func TestConfig_ValidateRequiresProject(t *testing.T) {
	cfg := Defaults()
	cfg.Project = ""
	require.ErrorContains(t, cfg.Validate(), "project is required")
}

func TestDefaultConfigTemplate_Parses(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &parsed))
	require.Equal(t, "default", parsed["project"])
	require.Contains(t, parsed, "flags")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

// === Load ===

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project: ml
store:
  backend: sqlite
  path: /var/lib/kindhub/k.db
cache:
  runtime_ttl: 5m
flags:
  run-persistence: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "ml", cfg.Project)
	require.Equal(t, StoreSQLite, cfg.Store.Backend)
	require.Equal(t, "/var/lib/kindhub/k.db", cfg.Store.Path)
	require.Equal(t, 5*time.Minute, cfg.Cache.RuntimeTTL)
	require.Equal(t, 10*time.Minute, cfg.Cache.CleanupInterval)
	require.True(t, cfg.Flags[flags.FlagRunPersistence])
	require.True(t, cfg.Flags[flags.FlagRuntimeCache])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KINDHUB_PROJECT", "from-env")
	t.Setenv("KINDHUB_EXECUTION_LOCAL_EXECUTION", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Project)
	require.True(t, cfg.Execution.LocalExecution)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("KINDHUB_PROJECT=dotenv-project\n"), 0o600))
	t.Setenv("KINDHUB_PROJECT", "")
	require.NoError(t, os.Unsetenv("KINDHUB_PROJECT"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	require.Equal(t, "dotenv-project", cfg.Project)
}

func TestLoad_NamedEnvFileMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	_, err := Load("", missing)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.ErrorContains(t, err, "loading env files")
}

func TestLoad_DefaultEnvFileMayBeAbsent(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults().Project, cfg.Project)
}

func TestLoad_DefaultEnvFileFromWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEnvFile), []byte("KINDHUB_PROJECT=cwd-project\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("KINDHUB_PROJECT", "")
	require.NoError(t, os.Unsetenv("KINDHUB_PROJECT"))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "cwd-project", cfg.Project)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: etcd\n"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "x", "y.db"), expandHome("~/x/y.db"))
	require.Equal(t, "/abs/path", expandHome("/abs/path"))
	require.Equal(t, "", expandHome(""))
}

// === SaveFlags ===

func TestSaveFlags_PreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveFlags(path, map[string]bool{flags.FlagRunPersistence: true, flags.FlagRuntimeCache: false}))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Flags[flags.FlagRunPersistence])
	require.False(t, cfg.Flags[flags.FlagRuntimeCache])
	require.Equal(t, "default", cfg.Project)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Entity store")
}

func TestSaveFlags_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "config.yaml")

	require.NoError(t, SaveFlags(path, map[string]bool{"b": true, "a": false}))

	var parsed struct {
		Flags map[string]bool `yaml:"flags"`
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Equal(t, map[string]bool{"a": false, "b": true}, parsed.Flags)
}
