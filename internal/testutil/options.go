package testutil

import (
	"time"

	"github.com/zjrosen/kindhub/internal/entity"
)

// seedTime is the creation time of seeded entities unless overridden.
var seedTime = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// entityData holds all data for an entity to be saved.
type entityData struct {
	project   string
	name      string
	id        string
	kind      string
	typ       entity.EntityType
	spec      map[string]any
	state     entity.State
	message   string
	labels    []string
	createdAt time.Time
	updatedAt *time.Time
}

func defaultEntity(t entity.EntityType, kind, name string) entityData {
	return entityData{
		project:   DefaultProject,
		name:      name,
		kind:      kind,
		typ:       t,
		state:     entity.StateCreated,
		createdAt: seedTime,
	}
}

func (d entityData) entity() *entity.Entity {
	id := d.id
	if id == "" {
		id = entity.NewID()
	}
	updated := d.createdAt
	if d.updatedAt != nil {
		updated = *d.updatedAt
	}
	return &entity.Entity{
		Project: d.project,
		Name:    d.name,
		ID:      id,
		Kind:    d.kind,
		Type:    d.typ,
		Metadata: entity.Metadata{
			Project: d.project,
			Name:    d.name,
			Labels:  d.labels,
			Created: d.createdAt,
			Updated: updated,
		},
		Spec:   entity.NewSpec(d.spec),
		Status: entity.Status{State: d.state, Message: d.message},
	}
}

// EntityOption configures a seeded entity.
type EntityOption func(*entityData)

// Project sets the project.
func Project(p string) EntityOption {
	return func(d *entityData) { d.project = p }
}

// ID sets the id. It should be a UUIDv4.
func ID(id string) EntityOption {
	return func(d *entityData) { d.id = id }
}

// Spec sets the spec fields.
func Spec(fields map[string]any) EntityOption {
	return func(d *entityData) { d.spec = fields }
}

// State sets the status state.
func State(s entity.State) EntityOption {
	return func(d *entityData) { d.state = s }
}

// Message sets the status message.
func Message(m string) EntityOption {
	return func(d *entityData) { d.message = m }
}

// Labels sets the metadata labels.
func Labels(labels ...string) EntityOption {
	return func(d *entityData) { d.labels = labels }
}

// CreatedAt sets the creation timestamp.
func CreatedAt(t time.Time) EntityOption {
	return func(d *entityData) { d.createdAt = t }
}

// UpdatedAt sets the update timestamp.
func UpdatedAt(t time.Time) EntityOption {
	return func(d *entityData) { d.updatedAt = &t }
}
