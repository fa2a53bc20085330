// Package store is the persistence boundary of kindhub: a path-addressed
// CRUD client contract, an in-memory client and an entity repository on
// top of any client.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Store errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// NotFoundError reports a missing document.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %s: %s", e.Path, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Client is the CRUD contract every backend implements. Documents are
// JSON-like maps addressed by API paths (see EntityPath).
type Client interface {
	// Create stores a new document. It fails with ErrConflict if the path
	// is taken.
	Create(ctx context.Context, path string, doc map[string]any) error

	// Read returns the document at path, or a *NotFoundError.
	Read(ctx context.Context, path string) (map[string]any, error)

	// Update replaces an existing document, or fails with *NotFoundError.
	Update(ctx context.Context, path string, doc map[string]any) error

	// Delete removes the document at path, or fails with *NotFoundError.
	Delete(ctx context.Context, path string) error

	// List returns the documents directly below a collection path,
	// ordered by path.
	List(ctx context.Context, collection string) ([]map[string]any, error)

	// IsLocal reports whether the backend lives in this process or on
	// local disk.
	IsLocal() bool
}
