package registry

import (
	"fmt"
	"strings"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// FamilyRegistration registers every kind of an execution family in one
// call: the executable kind, one task kind per action and the run kind.
type FamilyRegistration struct {
	Family *kind.Family
	// ExecutableType is TypeFunction or TypeWorkflow.
	ExecutableType entity.EntityType
	// Locator identifies the plugin package in refs.
	Locator    string
	NewRuntime runtime.Factory

	ExecutableSchema *schema.Schema
	// TaskSchemas are keyed by action.
	TaskSchemas map[string]*schema.Schema
	RunSchema   *schema.Schema
}

// Entries expands the registration into registry entries.
func (fr FamilyRegistration) Entries() ([]Entry, error) {
	if fr.Family == nil || fr.NewRuntime == nil {
		return nil, fmt.Errorf("%w: family registration needs a family and a runtime factory", ErrInvalidEntry)
	}
	if !fr.ExecutableType.IsExecutable() {
		return nil, fmt.Errorf("%w: executable type %q cannot be run", ErrInvalidEntry, fr.ExecutableType)
	}

	rtRef := &RuntimeRef{
		Locator:       fr.Locator,
		Type:          "Runtime",
		FamilyLocator: fr.Locator,
		FamilyType:    "Family",
	}
	entry := func(k kind.Composite, t entity.EntityType, s *schema.Schema) Entry {
		e := Entry{
			Kind:       string(k),
			EntityType: t,
			Spec:       fr.ref(t, "Spec"),
			Status:     fr.ref(t, "Status"),
			Metadata:   fr.ref(t, "Metadata"),
			Runtime:    rtRef,
			Schema:     s,
			NewRuntime: fr.NewRuntime,
			Family:     fr.Family,
		}
		if s != nil {
			e.Spec.Validator = s.Name()
		}
		return e
	}

	entries := []Entry{entry(fr.Family.ExecutableKind(), fr.ExecutableType, fr.ExecutableSchema)}
	for _, ak := range fr.Family.ActionKinds() {
		entries = append(entries, entry(ak.TaskKind, entity.TypeTask, fr.TaskSchemas[ak.Action]))
	}
	entries = append(entries, entry(fr.Family.RunKind(), entity.TypeRun, fr.RunSchema))
	return entries, nil
}

func (fr FamilyRegistration) ref(t entity.EntityType, part string) Ref {
	name := string(t)
	return Ref{Locator: fr.Locator, Type: strings.ToUpper(name[:1]) + name[1:] + part}
}

// RegisterFamily registers every kind of a family atomically.
func (r *Registry) RegisterFamily(fr FamilyRegistration) error {
	entries, err := fr.Entries()
	if err != nil {
		return err
	}
	return r.RegisterAll(entries...)
}

// Module is implemented by plugin packages that register kinds.
type Module interface {
	Register(r *Registry) error
}

// ModuleFunc adapts a function to Module.
type ModuleFunc func(r *Registry) error

// Register calls f.
func (f ModuleFunc) Register(r *Registry) error {
	return f(r)
}

// Bootstrap registers modules into a fresh registry and freezes it.
func Bootstrap(modules ...Module) (*View, error) {
	r := NewRegistry()
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return nil, fmt.Errorf("register module %T: %w", m, err)
		}
	}
	return r.Freeze(), nil
}
