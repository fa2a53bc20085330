// Package entity defines the uniform entity model shared by every entity
// type: identity, metadata, spec, status and the run lifecycle state machine.
package entity

import (
	"errors"
	"fmt"
)

// Entity errors
var (
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidID         = errors.New("invalid entity id")
	ErrInvalidKey        = errors.New("invalid entity key")
	ErrInvalidMetadata   = errors.New("invalid metadata")
)

// EntityType discriminates the entity variants.
type EntityType string

const (
	TypeProject  EntityType = "project"
	TypeFunction EntityType = "function"
	TypeTask     EntityType = "task"
	TypeRun      EntityType = "run"
	TypeWorkflow EntityType = "workflow"
	TypeArtifact EntityType = "artifact"
	TypeDataitem EntityType = "dataitem"
	TypeModel    EntityType = "model"
	TypeSecret   EntityType = "secret"
)

var entityTypes = []EntityType{
	TypeProject, TypeFunction, TypeTask, TypeRun, TypeWorkflow,
	TypeArtifact, TypeDataitem, TypeModel, TypeSecret,
}

// EntityTypes returns every entity type.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypes))
	copy(out, entityTypes)
	return out
}

// ParseEntityType converts a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, s)
	}
	return t, nil
}

func (t EntityType) String() string {
	return string(t)
}

// IsValid returns true if this is a recognized EntityType value.
func (t EntityType) IsValid() bool {
	for _, v := range entityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsExecutable reports whether entities of this type can be run.
func (t EntityType) IsExecutable() bool {
	return t == TypeFunction || t == TypeWorkflow
}

// Plural returns the collection name used in store paths.
func (t EntityType) Plural() string {
	return string(t) + "s"
}
