package registry

import (
	"fmt"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// Ref locates the implementation of one entity part.
type Ref struct {
	Locator   string `yaml:"locator"`
	Type      string `yaml:"type"`
	Validator string `yaml:"validator,omitempty"`
}

// RuntimeRef locates a runtime and its family table.
type RuntimeRef struct {
	Locator       string `yaml:"locator"`
	Type          string `yaml:"type"`
	FamilyLocator string `yaml:"family_kind_registry_locator"`
	FamilyType    string `yaml:"family_kind_registry_type"`
}

// Entry describes one registered kind.
type Entry struct {
	Kind       string
	EntityType entity.EntityType
	Spec       Ref
	Status     Ref
	Metadata   Ref
	Runtime    *RuntimeRef

	// Schema validates spec params. Nil means params are taken as given.
	Schema *schema.Schema
	// NewRuntime and Family are set together for kinds that can be run.
	NewRuntime runtime.Factory
	Family     *kind.Family
}

// HasRuntime reports whether the kind resolves to a runtime.
func (e Entry) HasRuntime() bool {
	return e.NewRuntime != nil
}

func (e Entry) validate() error {
	if _, err := kind.Parse(e.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if !e.EntityType.IsValid() {
		return fmt.Errorf("%w: kind %q has entity type %q", ErrInvalidEntry, e.Kind, e.EntityType)
	}
	if (e.NewRuntime == nil) != (e.Family == nil) {
		return fmt.Errorf("%w: kind %q must set runtime factory and family together", ErrInvalidEntry, e.Kind)
	}
	if e.Runtime != nil && e.NewRuntime == nil {
		return fmt.Errorf("%w: kind %q declares a runtime ref without a runtime factory", ErrInvalidEntry, e.Kind)
	}
	if e.Family != nil && kind.Composite(e.Kind).Base() != e.Family.ExecutableKind().Base() {
		return fmt.Errorf("%w: kind %q is outside family %q", ErrInvalidEntry, e.Kind, e.Family.ExecutableKind())
	}
	return nil
}
