package registry

import (
	"fmt"
	"sort"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
)

// Provider is read-only access to registered kinds.
type Provider interface {
	// Get returns the entry for a kind, or ErrUnknownKind.
	Get(kind string) (Entry, error)

	// EntityType returns the entity type declared for a kind.
	EntityType(kind string) (entity.EntityType, error)

	// Kinds returns every registered kind, sorted.
	Kinds() []string

	// List returns entries matching the query, sorted by kind.
	List(q ListQuery) []Entry
}

// Compile-time check that View implements Provider.
var _ Provider = (*View)(nil)

// ListQuery filters List results. Zero fields match everything.
type ListQuery struct {
	EntityType  entity.EntityType
	Family      string
	RunnersOnly bool
}

func (q ListQuery) matches(e Entry) bool {
	if q.EntityType != "" && e.EntityType != q.EntityType {
		return false
	}
	if q.Family != "" && kind.Composite(e.Kind).Base() != q.Family {
		return false
	}
	if q.RunnersOnly && !e.HasRuntime() {
		return false
	}
	return true
}

// View is an immutable snapshot of the registry. Its methods never write
// and are safe for unsynchronized concurrent use.
type View struct {
	entries map[string]Entry
	kinds   []string
}

func newView(entries map[string]Entry, order []string) *View {
	v := &View{
		entries: make(map[string]Entry, len(entries)),
		kinds:   make([]string, 0, len(order)),
	}
	for _, k := range order {
		v.entries[k] = entries[k]
		v.kinds = append(v.kinds, k)
	}
	sort.Strings(v.kinds)
	return v
}

// Get returns the entry of a kind.
func (v *View) Get(k string) (Entry, error) {
	e, ok := v.entries[k]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return e, nil
}

// EntityType returns the entity type declared for a kind.
func (v *View) EntityType(k string) (entity.EntityType, error) {
	e, err := v.Get(k)
	if err != nil {
		return "", err
	}
	return e.EntityType, nil
}

// Has reports whether a kind is registered.
func (v *View) Has(k string) bool {
	_, ok := v.entries[k]
	return ok
}

// Len returns the number of registered kinds.
func (v *View) Len() int {
	return len(v.kinds)
}

// Kinds returns every registered kind, sorted.
func (v *View) Kinds() []string {
	out := make([]string, len(v.kinds))
	copy(out, v.kinds)
	return out
}

// List returns entries matching q, sorted by kind.
func (v *View) List(q ListQuery) []Entry {
	out := make([]Entry, 0)
	for _, k := range v.kinds {
		if e := v.entries[k]; q.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Families returns the family tables of registered runnable kinds, one per
// executable kind, sorted by executable kind.
func (v *View) Families() []*kind.Family {
	seen := make(map[kind.Composite]bool)
	out := make([]*kind.Family, 0)
	for _, k := range v.kinds {
		f := v.entries[k].Family
		if f == nil || seen[f.ExecutableKind()] {
			continue
		}
		seen[f.ExecutableKind()] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutableKind() < out[j].ExecutableKind() })
	return out
}
