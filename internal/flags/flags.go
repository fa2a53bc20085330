// Package flags provides read-only feature flags loaded from configuration.
// Unknown flags read as disabled.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/kindhub/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagRunPersistence saves runs through the store repository as they
	// move through their lifecycle.
	FlagRunPersistence = "run-persistence"

	// FlagRuntimeCache reuses built runtimes per kind and project instead of
	// calling the factory for every run.
	FlagRuntimeCache = "runtime-cache"
)

// Defaults returns the default value of every known flag.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagRunPersistence: false,
		FlagRuntimeCache:   true,
	}
}

// Registry holds feature flag state. It is read-only after New.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map. The map is copied.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.Names())
	return r
}

// NewWithDefaults overlays flags on top of Defaults.
func NewWithDefaults(flags map[string]bool) *Registry {
	merged := Defaults()
	maps.Copy(merged, flags)
	return New(merged)
}

// Enabled returns true if the named flag is enabled.
// Unknown flags and a nil registry return false.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags.
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}

// Names returns the enabled flag names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, on := range r.flags {
		if on {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
