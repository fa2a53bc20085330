package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/kindhub/internal/store"
)

// Client implements store.Client on the entities table. Deletes are soft:
// the row keeps its document with deleted_at set and is hidden from reads.
type Client struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Client = (*Client)(nil)

func newClient(db *sql.DB) *Client {
	return &Client{db: db, now: time.Now}
}

// Create implements store.Client. A soft-deleted path can be created again.
func (c *Client) Create(ctx context.Context, path string, doc map[string]any) error {
	m, err := toEntityModel(path, doc, c.now())
	if err != nil {
		return err
	}

	result, err := c.db.ExecContext(ctx,
		`INSERT INTO entities (path, collection, project, entity_type, kind, name, state,
			document, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(path) DO UPDATE SET
			collection = excluded.collection, project = excluded.project,
			entity_type = excluded.entity_type, kind = excluded.kind, name = excluded.name,
			state = excluded.state, document = excluded.document,
			created_at = excluded.created_at, updated_at = excluded.updated_at, deleted_at = NULL
		 WHERE entities.deleted_at IS NOT NULL`,
		m.Path, m.Collection, m.Project, m.EntityType, m.Kind, m.Name, m.State,
		m.Document, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", path, store.ErrConflict)
	}
	return nil
}

// Read implements store.Client.
func (c *Client) Read(ctx context.Context, path string) (map[string]any, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE path = ? AND deleted_at IS NULL`,
		path,
	)
	m, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.NotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return m.toDocument()
}

// Update implements store.Client.
func (c *Client) Update(ctx context.Context, path string, doc map[string]any) error {
	m, err := toEntityModel(path, doc, c.now())
	if err != nil {
		return err
	}

	result, err := c.db.ExecContext(ctx,
		`UPDATE entities SET project = ?, entity_type = ?, kind = ?, name = ?, state = ?,
			document = ?, updated_at = ?
		 WHERE path = ? AND deleted_at IS NULL`,
		m.Project, m.EntityType, m.Kind, m.Name, m.State, m.Document, m.UpdatedAt, path,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return requireRow(result, path)
}

// Delete implements store.Client.
func (c *Client) Delete(ctx context.Context, path string) error {
	now := c.now().Unix()
	result, err := c.db.ExecContext(ctx,
		`UPDATE entities SET deleted_at = ?, updated_at = ?
		 WHERE path = ? AND deleted_at IS NULL`,
		now, now, path,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireRow(result, path)
}

// List implements store.Client.
func (c *Client) List(ctx context.Context, collection string) ([]map[string]any, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE collection = ? AND deleted_at IS NULL
		 ORDER BY path`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]map[string]any, 0)
	for rows.Next() {
		m, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := m.toDocument()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// IsLocal implements store.Client.
func (c *Client) IsLocal() bool {
	return true
}

// Purge hard-deletes soft-deleted rows of a project. It returns the number
// of rows removed.
func (c *Client) Purge(ctx context.Context, project string) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM entities WHERE project = ? AND deleted_at IS NOT NULL`,
		project,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	return result.RowsAffected()
}

func requireRow(result sql.Result, path string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &store.NotFoundError{Path: path}
	}
	return nil
}
