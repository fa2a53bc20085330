package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// ErrNotInCatalog is returned when a manifest names a locator or validator
// that no plugin provided.
var ErrNotInCatalog = errors.New("not provided in catalog")

// RuntimeBinding is what a plugin provides for a runtime locator.
type RuntimeBinding struct {
	Family     *kind.Family
	NewRuntime runtime.Factory
}

// Catalog maps manifest locators to bindings provided by plugin packages.
// It is filled from init functions and read when manifests are loaded.
type Catalog struct {
	mu       sync.RWMutex
	runtimes map[string]RuntimeBinding
	schemas  map[string]*schema.Schema
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		runtimes: make(map[string]RuntimeBinding),
		schemas:  make(map[string]*schema.Schema),
	}
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process catalog that plugin init functions
// provide into.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// AddRuntime provides a runtime binding under a locator.
func (c *Catalog) AddRuntime(locator string, b RuntimeBinding) error {
	if locator == "" || b.Family == nil || b.NewRuntime == nil {
		return fmt.Errorf("%w: runtime binding %q is incomplete", ErrInvalidEntry, locator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.runtimes[locator]; exists {
		return fmt.Errorf("runtime locator %q provided twice", locator)
	}
	c.runtimes[locator] = b
	return nil
}

// AddSchema provides a validator under its schema name.
func (c *Catalog) AddSchema(s *schema.Schema) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("%w: schema must be named", ErrInvalidEntry)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.schemas[s.Name()]; exists {
		return fmt.Errorf("validator %q provided twice", s.Name())
	}
	c.schemas[s.Name()] = s
	return nil
}

// Runtime looks up a runtime binding.
func (c *Catalog) Runtime(locator string) (RuntimeBinding, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.runtimes[locator]
	if !ok {
		return RuntimeBinding{}, fmt.Errorf("%w: runtime %q", ErrNotInCatalog, locator)
	}
	return b, nil
}

// Schema looks up a validator by name.
func (c *Catalog) Schema(name string) (*schema.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: validator %q", ErrNotInCatalog, name)
	}
	return s, nil
}

// ProvideRuntime adds a runtime binding to the default catalog. It is meant
// for plugin init functions and panics on conflicts.
func ProvideRuntime(locator string, b RuntimeBinding) {
	if err := defaultCatalog.AddRuntime(locator, b); err != nil {
		panic(err)
	}
}

// ProvideSchema adds a validator to the default catalog. It is meant for
// plugin init functions and panics on conflicts.
func ProvideSchema(s *schema.Schema) {
	if err := defaultCatalog.AddSchema(s); err != nil {
		panic(err)
	}
}
