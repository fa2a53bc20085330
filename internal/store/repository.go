package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/log"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Kind  string
	Name  string
	State entity.State
}

func (f Filter) matches(e *entity.Entity) bool {
	return (f.Kind == "" || e.Kind == f.Kind) &&
		(f.Name == "" || e.Name == f.Name) &&
		(f.State == "" || e.Status.State == f.State)
}

// Repository persists entities through a Client.
type Repository struct {
	client Client
}

// NewRepository creates a repository over client.
func NewRepository(client Client) *Repository {
	return &Repository{client: client}
}

// Client returns the underlying client.
func (r *Repository) Client() Client {
	return r.client
}

// Save creates the entity document or replaces the existing one.
func (r *Repository) Save(ctx context.Context, e *entity.Entity) error {
	path := PathOf(e)
	doc := e.Map()

	err := r.client.Create(ctx, path, doc)
	if errors.Is(err, ErrConflict) {
		err = r.client.Update(ctx, path, doc)
	}
	if err != nil {
		log.ErrorErr(log.CatStore, "Failed to save entity", err, "path", path)
		return fmt.Errorf("save %s: %w", path, err)
	}
	log.Debug(log.CatStore, "Saved entity", "path", path, "kind", e.Kind, "state", e.Status.State)
	return nil
}

// Get reads one entity. For projects, id is ignored and project names the
// document.
func (r *Repository) Get(ctx context.Context, project string, t entity.EntityType, id string) (*entity.Entity, error) {
	path := EntityPath(project, t, id)
	doc, err := r.client.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	e, err := entity.FromMap(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return e, nil
}

// List returns the entities of type t in project that match f.
func (r *Repository) List(ctx context.Context, project string, t entity.EntityType, f Filter) ([]*entity.Entity, error) {
	collection := CollectionPath(project, t)
	docs, err := r.client.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	out := make([]*entity.Entity, 0, len(docs))
	for _, doc := range docs {
		e, err := entity.FromMap(doc)
		if err != nil {
			return nil, fmt.Errorf("decode entity in %s: %w", collection, err)
		}
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Delete removes one entity document.
func (r *Repository) Delete(ctx context.Context, project string, t entity.EntityType, id string) error {
	path := EntityPath(project, t, id)
	if err := r.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	log.Debug(log.CatStore, "Deleted entity", "path", path)
	return nil
}
