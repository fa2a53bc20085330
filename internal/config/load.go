package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zjrosen/kindhub/internal/log"
)

// EnvPrefix prefixes environment overrides, e.g. KINDHUB_STORE_BACKEND.
const EnvPrefix = "KINDHUB"

// DefaultEnvFile is loaded when no env files are named. It may be absent.
const DefaultEnvFile = ".env"

// Load reads configuration from path on top of Defaults, then applies
// environment overrides. Variables from envFiles are loaded first; every
// named file must exist. Without envFiles, DefaultEnvFile is loaded if
// present. An empty path loads defaults and environment only.
func Load(path string, envFiles ...string) (Config, error) {
	if err := loadEnv(envFiles); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to load env files", err, "files", envFiles)
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v, Defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.ErrorErr(log.CatConfig, "Failed to read config", err, "path", path)
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Tracing.FilePath = expandHome(cfg.Tracing.FilePath)
	cfg.Log.Path = expandHome(cfg.Log.Path)
	cfg.Manifests.Dir = expandHome(cfg.Manifests.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug(log.CatConfig, "Loaded config", "path", v.ConfigFileUsed(), "project", cfg.Project, "store", cfg.Store.Backend)
	return cfg, nil
}

func loadEnv(envFiles []string) error {
	if len(envFiles) == 0 {
		err := godotenv.Load(DefaultEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", DefaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(envFiles...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("project", d.Project)
	v.SetDefault("manifests.dir", d.Manifests.Dir)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("cache.runtime_ttl", d.Cache.RuntimeTTL)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
	v.SetDefault("execution.local_execution", d.Execution.LocalExecution)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	for name, on := range d.Flags {
		v.SetDefault("flags."+name, on)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
