package entity

import (
	"fmt"
	"time"
)

// Metadata is user-editable descriptive data. It is never consulted for
// behavior.
type Metadata struct {
	Project     string
	Name        string
	Version     string
	Description string
	Labels      []string
	Created     time.Time
	Updated     time.Time
	CreatedBy   string
	UpdatedBy   string
	Embedded    bool

	// Extra carries keys outside the fields above.
	Extra map[string]any
}

// MetadataFromMap decodes metadata params. Timestamps accept time.Time or
// RFC 3339 strings; absent or null timestamps stay zero.
func MetadataFromMap(params map[string]any) (Metadata, error) {
	var m Metadata
	var err error

	for key, v := range params {
		switch key {
		case "project":
			m.Project, err = stringField(key, v)
		case "name":
			m.Name, err = stringField(key, v)
		case "version":
			m.Version, err = stringField(key, v)
		case "description":
			m.Description, err = stringField(key, v)
		case "created_by":
			m.CreatedBy, err = stringField(key, v)
		case "updated_by":
			m.UpdatedBy, err = stringField(key, v)
		case "labels":
			m.Labels, err = labelsField(v)
		case "embedded":
			if v != nil {
				b, ok := v.(bool)
				if !ok {
					err = fmt.Errorf("%w: embedded must be a bool, got %T", ErrInvalidMetadata, v)
				}
				m.Embedded = b
			}
		case "created":
			m.Created, err = timeField(key, v)
		case "updated":
			m.Updated, err = timeField(key, v)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[key] = cloneValue(v)
		}
		if err != nil {
			return Metadata{}, err
		}
	}
	return m, nil
}

// Map encodes metadata with timestamps as RFC 3339 strings.
func (m Metadata) Map() map[string]any {
	out := CloneMap(m.Extra)
	if out == nil {
		out = make(map[string]any)
	}
	out["project"] = m.Project
	out["name"] = m.Name
	if m.Version != "" {
		out["version"] = m.Version
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	if len(m.Labels) > 0 {
		out["labels"] = append([]string(nil), m.Labels...)
	}
	if !m.Created.IsZero() {
		out["created"] = m.Created.Format(time.RFC3339Nano)
	}
	if !m.Updated.IsZero() {
		out["updated"] = m.Updated.Format(time.RFC3339Nano)
	}
	if m.CreatedBy != "" {
		out["created_by"] = m.CreatedBy
	}
	if m.UpdatedBy != "" {
		out["updated_by"] = m.UpdatedBy
	}
	if m.Embedded {
		out["embedded"] = true
	}
	return out
}

func stringField(key string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidMetadata, key, v)
	}
	return s, nil
}

func labelsField(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: labels must be strings, got %T", ErrInvalidMetadata, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: labels must be a list, got %T", ErrInvalidMetadata, v)
	}
}

func timeField(key string, v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return val, nil
	case *time.Time:
		if val == nil {
			return time.Time{}, nil
		}
		return *val, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidMetadata, key, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s must be a timestamp, got %T", ErrInvalidMetadata, key, v)
	}
}
