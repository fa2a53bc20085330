package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zjrosen/kindhub/internal/entity"
)

// MemoryClient keeps documents in process memory. Documents are copied on
// the way in and out.
type MemoryClient struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient creates an empty in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{docs: make(map[string]map[string]any)}
}

// Create implements Client.
func (c *MemoryClient) Create(_ context.Context, path string, doc map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[path]; exists {
		return &conflictError{path: path}
	}
	c.docs[path] = entity.CloneMap(doc)
	return nil
}

// Read implements Client.
func (c *MemoryClient) Read(_ context.Context, path string) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[path]
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	return entity.CloneMap(doc), nil
}

// Update implements Client.
func (c *MemoryClient) Update(_ context.Context, path string, doc map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[path]; !ok {
		return &NotFoundError{Path: path}
	}
	c.docs[path] = entity.CloneMap(doc)
	return nil
}

// Delete implements Client.
func (c *MemoryClient) Delete(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[path]; !ok {
		return &NotFoundError{Path: path}
	}
	delete(c.docs, path)
	return nil
}

// List implements Client.
func (c *MemoryClient) List(_ context.Context, collection string) ([]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0)
	for p := range c.docs {
		if isChild(collection, p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]map[string]any, len(paths))
	for i, p := range paths {
		out[i] = entity.CloneMap(c.docs[p])
	}
	return out, nil
}

// IsLocal implements Client.
func (c *MemoryClient) IsLocal() bool {
	return true
}

type conflictError struct {
	path string
}

func (e *conflictError) Error() string {
	return "document " + e.path + ": " + ErrConflict.Error()
}

func (e *conflictError) Unwrap() error {
	return ErrConflict
}
