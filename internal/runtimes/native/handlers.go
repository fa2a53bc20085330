package native

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoHandler is returned when a function names an unregistered handler.
var ErrNoHandler = errors.New("handler not registered")

// Input is what a handler receives.
type Input struct {
	Project    string
	RunID      string
	Inputs     map[string]any
	Parameters map[string]any
}

// Output is what a handler produces. Outputs hold store:// keys of the
// entities it created.
type Output struct {
	Message string
	Values  map[string]any
	Outputs map[string]string
}

// Handler is an in-process function body.
type Handler func(ctx context.Context, in Input) (Output, error)

// Handlers is a named set of handlers. It is safe for concurrent use.
type Handlers struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlers creates an empty set.
func NewHandlers() *Handlers {
	return &Handlers{handlers: make(map[string]Handler)}
}

var defaultHandlers = NewHandlers()

// DefaultHandlers returns the process-wide set used by manifest-declared
// native kinds.
func DefaultHandlers() *Handlers {
	return defaultHandlers
}

// Register adds a handler under name.
func (h *Handlers) Register(name string, fn Handler) error {
	if name == "" || fn == nil {
		return fmt.Errorf("handler needs a name and a function")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlers[name]; exists {
		return fmt.Errorf("handler %q registered twice", name)
	}
	h.handlers[name] = fn
	return nil
}

// Lookup returns the handler registered under name.
func (h *Handlers) Lookup(name string) (Handler, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, name)
	}
	return fn, nil
}

// Names returns the registered names, sorted.
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle registers fn in the default set. It panics on conflicts and is
// meant for init functions.
func Handle(name string, fn Handler) {
	if err := defaultHandlers.Register(name, fn); err != nil {
		panic(err)
	}
}
