// Package kindhub is a kind-driven entity framework. Execution families
// register their kinds once at startup; the hub then builds entities of
// any registered kind and dispatches task runs to the family runtime.
package kindhub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/zjrosen/kindhub/internal/builder"
	"github.com/zjrosen/kindhub/internal/config"
	"github.com/zjrosen/kindhub/internal/dispatch"
	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/events"
	"github.com/zjrosen/kindhub/internal/flags"
	"github.com/zjrosen/kindhub/internal/infrastructure/sqlite"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtimes/container"
	"github.com/zjrosen/kindhub/internal/runtimes/kfp"
	"github.com/zjrosen/kindhub/internal/runtimes/native"
	"github.com/zjrosen/kindhub/internal/store"
	"github.com/zjrosen/kindhub/internal/tracing"
)

// Public names for the core types.
type (
	Entity       = entity.Entity
	EntityType   = entity.EntityType
	State        = entity.State
	EntityParams = builder.EntityParams
	Request      = dispatch.Request
	RunEvent     = dispatch.RunEvent
	Module       = registry.Module
)

// BuiltinModules returns the bundled families: container, kfp without a
// pipeline client, and native with the default handler set.
func BuiltinModules() []Module {
	return []Module{
		container.Module(),
		kfp.Module(nil),
		native.Module(native.DefaultHandlers()),
	}
}

// Hub wires configuration, the frozen kind registry, builders, storage,
// tracing and the dispatcher.
type Hub struct {
	cfg        config.Config
	flags      *flags.Registry
	kinds      *registry.View
	builder    *builder.Builder
	dispatcher *dispatch.Dispatcher
	repo       *store.Repository
	events     *events.Broker[RunEvent]
	tracing    *tracing.Provider
	closers    []func() error
}

// New builds a Hub. Registration happens here, once; the registry is
// read-only afterwards.
func New(opts ...Option) (*Hub, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, err
	}

	h := &Hub{cfg: cfg}
	if err := h.init(o); err != nil {
		_ = h.Close()
		return nil, err
	}
	log.Info(log.CatConfig, "Hub ready", "project", cfg.Project, "kinds", h.kinds.Len(), "store", cfg.Store.Backend)
	return h, nil
}

func resolveConfig(o options) (config.Config, error) {
	switch {
	case o.cfg != nil:
		if err := o.cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid config: %w", err)
		}
		return *o.cfg, nil
	case o.configFile != "" || len(o.envFiles) > 0:
		return config.Load(o.configFile, o.envFiles...)
	default:
		return config.Load("")
	}
}

func (h *Hub) init(o options) error {
	cfg := h.cfg

	if cfg.Log.Enabled && cfg.Log.Path != "" {
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return err
		}
		h.closers = append(h.closers, func() error { cleanup(); return nil })
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetMinLevel(level)
	}

	h.flags = flags.NewWithDefaults(cfg.Flags)

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  tracing.DefaultServiceName,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	h.tracing = tp
	h.closers = append(h.closers, func() error { return tp.Shutdown(context.Background()) })

	if h.kinds, err = bootstrap(o, cfg); err != nil {
		return err
	}

	var bopts []builder.Option
	if h.flags.Enabled(flags.FlagRuntimeCache) {
		bopts = append(bopts, builder.WithRuntimeCache(builder.NewRuntimeCache(cfg.Cache.RuntimeTTL, cfg.Cache.CleanupInterval)))
	}
	if o.clock != nil {
		bopts = append(bopts, builder.WithClock(o.clock))
	}
	h.builder = builder.New(h.kinds, bopts...)

	client := o.client
	if client == nil {
		if client, err = h.openStore(cfg.Store); err != nil {
			return err
		}
	}
	h.repo = store.NewRepository(client)

	h.events = events.NewBroker[RunEvent]()
	h.closers = append(h.closers, func() error { h.events.Close(); return nil })

	h.dispatcher = dispatch.New(h.builder,
		dispatch.WithRepository(h.repo),
		dispatch.WithEvents(h.events),
		dispatch.WithTracer(tp.Tracer()),
		dispatch.WithFlags(h.flags),
	)
	return nil
}

func bootstrap(o options, cfg config.Config) (*registry.View, error) {
	modules := o.modules
	if len(modules) == 0 {
		modules = BuiltinModules()
	}

	fsys := o.manifests
	if fsys == nil && cfg.Manifests.Dir != "" {
		fsys = os.DirFS(cfg.Manifests.Dir)
	}
	if fsys != nil {
		cat := o.catalog
		if cat == nil {
			cat = registry.DefaultCatalog()
		}
		modules = append(slices.Clone(modules), registry.Manifests(fsys, cat))
	}
	return registry.Bootstrap(modules...)
}

func (h *Hub) openStore(sc config.StoreConfig) (store.Client, error) {
	switch sc.Backend {
	case config.StoreSQLite:
		db, err := sqlite.NewDB(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		h.closers = append(h.closers, db.Close)
		return db.Client(), nil
	default:
		return store.NewMemoryClient(), nil
	}
}

// Config returns the effective configuration.
func (h *Hub) Config() config.Config {
	return h.cfg
}

// Kinds returns the read-only kind registry.
func (h *Hub) Kinds() *registry.View {
	return h.kinds
}

// Builder returns the entity builder.
func (h *Hub) Builder() *builder.Builder {
	return h.builder
}

// Dispatcher returns the run dispatcher.
func (h *Hub) Dispatcher() *dispatch.Dispatcher {
	return h.dispatcher
}

// Repository returns the entity repository.
func (h *Hub) Repository() *store.Repository {
	return h.repo
}

// Events returns the run event stream.
func (h *Hub) Events() events.Subscriber[RunEvent] {
	return h.events
}

// Flags returns the feature flags.
func (h *Hub) Flags() *flags.Registry {
	return h.flags
}

// NewEntity builds an entity of kind k and saves it. An empty project
// defaults to the configured project.
func (h *Hub) NewEntity(ctx context.Context, k string, p EntityParams) (*Entity, error) {
	if p.Project == "" {
		p.Project = h.cfg.Project
	}
	e, err := h.builder.BuildEntity(k, p)
	if err != nil {
		return nil, err
	}
	if err := h.repo.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get reads a stored entity.
func (h *Hub) Get(ctx context.Context, project string, t EntityType, id string) (*Entity, error) {
	return h.repo.Get(ctx, project, t, id)
}

// Run dispatches action on executable with the configured execution mode.
func (h *Hub) Run(ctx context.Context, executable *Entity, action string, params map[string]any) (*Entity, error) {
	return h.dispatcher.Run(ctx, Request{
		Executable:     executable,
		Action:         action,
		Params:         params,
		LocalExecution: h.cfg.Execution.LocalExecution,
	})
}

// Dispatch runs a fully specified request.
func (h *Hub) Dispatch(ctx context.Context, req Request) (*Entity, error) {
	return h.dispatcher.Run(ctx, req)
}

// Close releases the store, flushes traces and closes the event stream.
func (h *Hub) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
