// Package builder constructs entity parts by kind. Every operation resolves
// the kind in the registry first and never writes to it.
package builder

import (
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
)

// Builder errors
var (
	ErrNoRuntime     = errors.New("kind has no runtime")
	ErrInvalidParams = errors.New("invalid entity params")
)

// Builder builds specs, statuses, metadata, runtimes and whole entities.
// It is safe for concurrent use.
type Builder struct {
	kinds registry.Provider
	now   func() time.Time
	cache *RuntimeCache
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces time.Now for timestamp defaults.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithRuntimeCache reuses runtimes through c.
func WithRuntimeCache(c *RuntimeCache) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// New creates a Builder over a registry view.
func New(kinds registry.Provider, opts ...Option) *Builder {
	b := &Builder{kinds: kinds, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kinds returns the registry the builder reads.
func (b *Builder) Kinds() registry.Provider {
	return b.kinds
}

// BuildSpec builds the spec of kind k. With validate set and a schema on
// the entry, params are validated, defaulted and stripped to declared
// fields; otherwise they are copied as given.
func (b *Builder) BuildSpec(k string, validate bool, params map[string]any) (entity.Spec, error) {
	e, err := b.kinds.Get(k)
	if err != nil {
		return entity.Spec{}, err
	}
	if !validate || e.Schema == nil {
		return entity.NewSpec(params), nil
	}

	fields, err := e.Schema.Validate(params)
	if err != nil {
		log.Debug(log.CatBuilder, "Spec validation failed", "kind", k, "error", err)
		return entity.Spec{}, fmt.Errorf("kind %q: %w", k, err)
	}
	return entity.Spec{Fields: fields}, nil
}

// BuildStatus builds the status of kind k. An absent state becomes CREATED.
func (b *Builder) BuildStatus(k string, params map[string]any) (entity.Status, error) {
	if _, err := b.kinds.Get(k); err != nil {
		return entity.Status{}, err
	}
	st, err := entity.StatusFromMap(params)
	if err != nil {
		return entity.Status{}, fmt.Errorf("kind %q: %w", k, err)
	}
	return st, nil
}

// BuildMetadata builds the metadata of kind k. An absent created timestamp
// is set to now in UTC; an absent updated timestamp copies created.
func (b *Builder) BuildMetadata(k string, params map[string]any) (entity.Metadata, error) {
	if _, err := b.kinds.Get(k); err != nil {
		return entity.Metadata{}, err
	}
	m, err := entity.MetadataFromMap(params)
	if err != nil {
		return entity.Metadata{}, fmt.Errorf("kind %q: %w", k, err)
	}
	if m.Created.IsZero() {
		m.Created = b.now().UTC()
	}
	if m.Updated.IsZero() {
		m.Updated = m.Created
	}
	return m, nil
}

// BuildRuntime resolves the runtime of kind k for project, together with
// the family table it was built with.
func (b *Builder) BuildRuntime(k, project string) (runtime.Runtime, *kind.Family, error) {
	e, err := b.kinds.Get(k)
	if err != nil {
		return nil, nil, err
	}
	if !e.HasRuntime() {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoRuntime, k)
	}

	build := func() (runtime.Runtime, error) {
		rt, err := e.NewRuntime(e.Family, project)
		if err != nil {
			return nil, fmt.Errorf("build runtime for kind %q: %w", k, err)
		}
		log.Debug(log.CatBuilder, "Built runtime", "kind", k, "family", e.Family.ExecutableKind(), "project", project)
		return rt, nil
	}

	if b.cache == nil {
		rt, err := build()
		return rt, e.Family, err
	}
	rt, err := b.cache.GetOrBuild(string(e.Family.ExecutableKind()), project, build)
	return rt, e.Family, err
}

// EntityParams are the inputs of BuildEntity.
type EntityParams struct {
	Project string
	Name    string
	// ID must be a UUIDv4 when set; empty generates one.
	ID       string
	Metadata map[string]any
	Spec     map[string]any
	Status   map[string]any
	// SkipValidation copies spec params without running the schema.
	SkipValidation bool
}

// BuildEntity assembles a complete entity of kind k. Either every part
// builds or an error is returned and nothing is constructed.
func (b *Builder) BuildEntity(k string, p EntityParams) (*entity.Entity, error) {
	t, err := b.kinds.EntityType(k)
	if err != nil {
		return nil, err
	}

	id, err := entity.ResolveID(p.ID)
	if err != nil {
		return nil, err
	}

	meta, err := b.BuildMetadata(k, p.Metadata)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = meta.Name
	}
	if p.Project == "" {
		p.Project = meta.Project
	}
	if p.Project == "" && t == entity.TypeProject {
		p.Project = p.Name
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: kind %q: name is required", ErrInvalidParams, k)
	}
	if p.Project == "" {
		return nil, fmt.Errorf("%w: kind %q: project is required", ErrInvalidParams, k)
	}
	meta.Name = p.Name
	meta.Project = p.Project

	spec, err := b.BuildSpec(k, !p.SkipValidation, p.Spec)
	if err != nil {
		return nil, err
	}
	status, err := b.BuildStatus(k, p.Status)
	if err != nil {
		return nil, err
	}

	return &entity.Entity{
		Project:  p.Project,
		Name:     p.Name,
		ID:       id,
		Kind:     k,
		Type:     t,
		Metadata: meta,
		Spec:     spec,
		Status:   status,
	}, nil
}
