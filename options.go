package kindhub

import (
	"io/fs"
	"time"

	"github.com/zjrosen/kindhub/internal/config"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/store"
)

type options struct {
	cfg        *config.Config
	configFile string
	envFiles   []string
	modules    []registry.Module
	manifests  fs.FS
	catalog    *registry.Catalog
	client     store.Client
	clock      func() time.Time
}

// Option configures a Hub.
type Option func(*options)

// WithConfig uses cfg instead of loading configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

// WithConfigFile loads configuration from a YAML file, environment
// variables and optional .env files.
func WithConfigFile(path string, envFiles ...string) Option {
	return func(o *options) {
		o.configFile = path
		o.envFiles = envFiles
	}
}

// WithModules registers plugin modules in place of BuiltinModules.
func WithModules(modules ...registry.Module) Option {
	return func(o *options) {
		o.modules = append(o.modules, modules...)
	}
}

// WithManifests loads YAML kind manifests from fsys, overriding
// manifests.dir from the configuration.
func WithManifests(fsys fs.FS) Option {
	return func(o *options) {
		o.manifests = fsys
	}
}

// WithCatalog resolves manifest locators against cat instead of the
// default catalog.
func WithCatalog(cat *registry.Catalog) Option {
	return func(o *options) {
		o.catalog = cat
	}
}

// WithStoreClient uses client instead of the configured store backend.
func WithStoreClient(client store.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithClock sets the clock used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}
