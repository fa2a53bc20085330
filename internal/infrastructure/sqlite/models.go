package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"time"
)

// entityColumns is the list of columns to select for entity queries.
const entityColumns = `path, collection, project, entity_type, kind, name, state,
	document, created_at, updated_at, deleted_at`

// EntityModel represents a row of the entities table. The full document is
// kept as JSON; the indexed columns are copied out of it on write.
type EntityModel struct {
	Path       string
	Collection string
	Project    string
	EntityType string
	Kind       string
	Name       string
	State      string
	Document   string
	CreatedAt  int64  // Unix timestamp
	UpdatedAt  int64  // Unix timestamp
	DeletedAt  *int64 // Unix timestamp, nullable
}

// toEntityModel encodes a document stored at p.
func toEntityModel(p string, doc map[string]any, now time.Time) (*EntityModel, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", p, err)
	}

	m := &EntityModel{
		Path:       p,
		Collection: path.Dir(p),
		Project:    stringOf(doc["project"]),
		EntityType: stringOf(doc["entity_type"]),
		Kind:       stringOf(doc["kind"]),
		Name:       stringOf(doc["name"]),
		Document:   string(raw),
		CreatedAt:  now.Unix(),
		UpdatedAt:  now.Unix(),
	}
	if status, ok := doc["status"].(map[string]any); ok {
		m.State = stringOf(status["state"])
	}
	return m, nil
}

// toDocument decodes the stored JSON document. Integral numbers come back
// as int and everything else as float64, matching schema coercion.
func (m *EntityModel) toDocument() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(m.Document)))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", m.Path, err)
	}
	return normalizeNumbers(doc).(map[string]any), nil
}

// scanEntity scans a row into an EntityModel.
func scanEntity(scanner interface{ Scan(...any) error }) (*EntityModel, error) {
	var model EntityModel
	err := scanner.Scan(
		&model.Path, &model.Collection, &model.Project, &model.EntityType,
		&model.Kind, &model.Name, &model.State,
		&model.Document, &model.CreatedAt, &model.UpdatedAt, &model.DeletedAt,
	)
	return &model, err
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil && int64(int(i)) == i {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
