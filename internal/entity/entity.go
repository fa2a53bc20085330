package entity

import (
	"fmt"
)

// Entity is the uniform shape of every entity type. Type and Kind select
// the variant; there are no per-family entity structs.
type Entity struct {
	Project  string
	Name     string
	ID       string
	Kind     string
	Type     EntityType
	Metadata Metadata
	Spec     Spec
	Status   Status
}

// Key returns the store:// key of the entity.
func (e *Entity) Key() Key {
	return Key{Project: e.Project, Type: e.Type, Kind: e.Kind, Name: e.Name, ID: e.ID}
}

// Ref returns the <kind>://<project>/<name>:<id> reference used by tasks and
// runs to point at their executable.
func (e *Entity) Ref() string {
	return ExecutableRef(e.Kind, e.Project, e.Name, e.ID)
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Metadata.Labels = append([]string(nil), e.Metadata.Labels...)
	c.Metadata.Extra = CloneMap(e.Metadata.Extra)
	c.Spec = NewSpec(e.Spec.Fields)
	c.Status.Results = CloneMap(e.Status.Results)
	c.Status.Outputs = CloneMap(e.Status.Outputs)
	c.Status.Extra = CloneMap(e.Status.Extra)
	return &c
}

// Map encodes the entity into its persisted document form.
func (e *Entity) Map() map[string]any {
	return map[string]any{
		"project":     e.Project,
		"name":        e.Name,
		"id":          e.ID,
		"kind":        e.Kind,
		"entity_type": string(e.Type),
		"metadata":    e.Metadata.Map(),
		"spec":        e.Spec.Map(),
		"status":      e.Status.Map(),
	}
}

// FromMap decodes an entity document produced by Map.
func FromMap(m map[string]any) (*Entity, error) {
	e := &Entity{}
	var err error

	if e.Project, err = stringField("project", m["project"]); err != nil {
		return nil, err
	}
	if e.Name, err = stringField("name", m["name"]); err != nil {
		return nil, err
	}
	if e.ID, err = stringField("id", m["id"]); err != nil {
		return nil, err
	}
	if e.Kind, err = stringField("kind", m["kind"]); err != nil {
		return nil, err
	}

	typ, _ := m["entity_type"].(string)
	if e.Type, err = ParseEntityType(typ); err != nil {
		return nil, err
	}

	meta, err := mapField("metadata", m["metadata"])
	if err != nil {
		return nil, err
	}
	if e.Metadata, err = MetadataFromMap(meta); err != nil {
		return nil, err
	}

	spec, err := mapField("spec", m["spec"])
	if err != nil {
		return nil, err
	}
	e.Spec = Spec{Fields: spec}

	status, err := mapField("status", m["status"])
	if err != nil {
		return nil, err
	}
	if e.Status, err = StatusFromMap(status); err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.ID, err)
	}
	return e, nil
}
