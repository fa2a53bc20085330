package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/log"
)

// Registry errors
var (
	ErrUnknownKind   = errors.New("unknown kind")
	ErrDuplicateKind = errors.New("kind already registered")
	ErrInvalidEntry  = errors.New("invalid registry entry")
	ErrFrozen        = errors.New("registry is frozen")
)

// Registry is the write phase of the kind registry. It is used during
// program initialization and then frozen into a View.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. The kind must not be registered yet.
func (r *Registry) Register(e Entry) error {
	return r.RegisterAll(e)
}

// RegisterAll adds entries atomically: either every entry is added or none.
func (r *Registry) RegisterAll(entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}

	batch := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
		if _, exists := r.entries[e.Kind]; exists || batch[e.Kind] {
			return fmt.Errorf("%w: %q", ErrDuplicateKind, e.Kind)
		}
		batch[e.Kind] = true
	}

	for _, e := range entries {
		r.entries[e.Kind] = e
		r.order = append(r.order, e.Kind)
		log.Debug(log.CatRegistry, "Registered kind", "kind", e.Kind, "entity_type", e.EntityType, "runtime", e.HasRuntime())
	}
	return nil
}

// Update replaces the entry of an already registered kind.
func (r *Registry) Update(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if err := e.validate(); err != nil {
		return err
	}
	if _, exists := r.entries[e.Kind]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}

	r.entries[e.Kind] = e
	log.Debug(log.CatRegistry, "Updated kind", "kind", e.Kind, "entity_type", e.EntityType)
	return nil
}

// Get returns the entry of a kind.
func (r *Registry) Get(k string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[k]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return e, nil
}

// EntityType returns the entity type declared for a kind.
func (r *Registry) EntityType(k string) (entity.EntityType, error) {
	e, err := r.Get(k)
	if err != nil {
		return "", err
	}
	return e.EntityType, nil
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Freeze ends the write phase and returns the read-only view. Later calls
// return a view of the same entries; writes after Freeze fail with ErrFrozen.
func (r *Registry) Freeze() *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
	v := newView(r.entries, r.order)
	log.Info(log.CatRegistry, "Registry frozen", "kinds", v.Len())
	return v
}
