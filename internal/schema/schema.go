// Package schema declares spec validators: named fields with HCL type
// expressions, required flags and defaults. Validation coerces values into
// the declared types with go-cty and returns only declared fields.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/entity"
)

// ErrValidation is the sentinel wrapped by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ExtraPolicy decides what happens to params that no field declares.
type ExtraPolicy int

const (
	// ExtraIgnore strips undeclared params.
	ExtraIgnore ExtraPolicy = iota
	// ExtraForbid reports undeclared params as validation issues.
	ExtraForbid
)

// Field is one declared spec field.
type Field struct {
	Name     string
	Type     cty.Type
	Required bool
	Default  any
}

// Issue describes one field that failed validation.
type Issue struct {
	Field   string
	Message string
}

// ValidationError lists every issue found in one validation pass.
type ValidationError struct {
	Schema string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + ": " + is.Message
	}
	return fmt.Sprintf("%s: schema %q: %s", ErrValidation, e.Schema, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Schema is an immutable spec validator.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
	extra  ExtraPolicy
}

// New builds a schema. Field names must be unique and non-empty, and
// defaults must satisfy their field type.
func New(name string, extra ExtraPolicy, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
		extra:  extra,
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %q: field with empty name", name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("schema %q: field %q declared twice", name, f.Name)
		}
		if f.Type == cty.NilType {
			f.Type = cty.DynamicPseudoType
		}
		if f.Default != nil {
			if _, err := coerce(f.Default, f.Type); err != nil {
				return nil, fmt.Errorf("schema %q: default for %q: %w", name, f.Name, err)
			}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for package-level schemas. It panics on error.
func MustNew(name string, extra ExtraPolicy, fields ...Field) *Schema {
	s, err := New(name, extra, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the validator name.
func (s *Schema) Name() string {
	return s.name
}

// ExtraPolicy returns how undeclared params are treated.
func (s *Schema) ExtraPolicy() ExtraPolicy {
	return s.extra
}

// Fields returns a copy of the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Declares reports whether the schema has a field called name.
func (s *Schema) Declares(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Extend returns a new schema with extra fields appended.
func (s *Schema) Extend(name string, fields ...Field) (*Schema, error) {
	return New(name, s.extra, append(s.Fields(), fields...)...)
}

// Validate checks params against the schema. Missing fields take their
// default, values are coerced into the declared type, and the result holds
// declared fields only. Null values count as missing.
func (s *Schema) Validate(params map[string]any) (map[string]any, error) {
	var issues []Issue

	if s.extra == ExtraForbid {
		for _, key := range sortedKeys(params) {
			if !s.Declares(key) {
				issues = append(issues, Issue{Field: key, Message: "unknown field"})
			}
		}
	}

	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := params[f.Name]
		if !ok || v == nil {
			switch {
			case f.Default != nil:
				v = entity.CloneValue(f.Default)
			case f.Required:
				issues = append(issues, Issue{Field: f.Name, Message: "required field is missing"})
				continue
			default:
				continue
			}
		}

		cv, err := coerce(v, f.Type)
		if err != nil {
			issues = append(issues, Issue{
				Field:   f.Name,
				Message: fmt.Sprintf("want %s: %v", TypeString(f.Type), err),
			})
			continue
		}
		out[f.Name] = cv
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Schema: s.name, Issues: issues}
	}
	return out, nil
}
