// Package testutil seeds stores with entities for tests.
package testutil

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/store"
)

// DefaultProject is the project of seeded entities unless overridden.
const DefaultProject = "test-project"

// saveOrder lists entity types in the order they are saved: executables
// before the tasks and runs that reference them.
var saveOrder = []entity.EntityType{
	entity.TypeProject,
	entity.TypeFunction,
	entity.TypeWorkflow,
	entity.TypeTask,
	entity.TypeRun,
	entity.TypeArtifact,
	entity.TypeDataitem,
	entity.TypeModel,
	entity.TypeSecret,
}

// Builder accumulates entities and saves them in dependency order.
type Builder struct {
	t        *testing.T
	repo     *store.Repository
	entities []entityData
}

// NewBuilder creates a builder saving through client.
func NewBuilder(t *testing.T, client store.Client) *Builder {
	t.Helper()
	return &Builder{t: t, repo: store.NewRepository(client)}
}

// WithEntity adds an entity of any type.
func (b *Builder) WithEntity(typ entity.EntityType, kind, name string, opts ...EntityOption) *Builder {
	d := defaultEntity(typ, kind, name)
	for _, opt := range opts {
		opt(&d)
	}
	b.entities = append(b.entities, d)
	return b
}

// WithProject adds a project entity.
func (b *Builder) WithProject(name string, opts ...EntityOption) *Builder {
	return b.WithEntity(entity.TypeProject, "project", name, append([]EntityOption{Project(name)}, opts...)...)
}

// WithFunction adds a function.
func (b *Builder) WithFunction(kind, name string, opts ...EntityOption) *Builder {
	return b.WithEntity(entity.TypeFunction, kind, name, opts...)
}

// WithTask adds a task.
func (b *Builder) WithTask(kind, name string, opts ...EntityOption) *Builder {
	return b.WithEntity(entity.TypeTask, kind, name, opts...)
}

// WithRun adds a run.
func (b *Builder) WithRun(kind, name string, opts ...EntityOption) *Builder {
	return b.WithEntity(entity.TypeRun, kind, name, opts...)
}

// Build saves every accumulated entity and returns them in the order they
// were added.
func (b *Builder) Build() []*entity.Entity {
	b.t.Helper()

	built := make([]*entity.Entity, len(b.entities))
	for i, d := range b.entities {
		built[i] = d.entity()
	}

	ctx := context.Background()
	for _, typ := range saveOrder {
		for _, e := range built {
			if e.Type == typ {
				require.NoError(b.t, b.repo.Save(ctx, e), "seed %s %s", e.Type, e.Name)
			}
		}
	}
	return slices.Clip(built)
}
