package schema

import "fmt"

// Definition is the declarative form of a schema, as written in kind
// manifests.
type Definition struct {
	Name        string            `yaml:"name"`
	ForbidExtra bool              `yaml:"forbid_extra"`
	Fields      []FieldDefinition `yaml:"fields"`
}

// FieldDefinition declares one field. Type is an HCL type expression.
type FieldDefinition struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Default  any    `yaml:"default"`
}

// Build turns the definition into a Schema.
func (d Definition) Build() (*Schema, error) {
	fields := make([]Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		ty, err := ParseType(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("schema %q field %q: %w", d.Name, fd.Name, err)
		}
		fields = append(fields, Field{
			Name:     fd.Name,
			Type:     ty,
			Required: fd.Required,
			Default:  fd.Default,
		})
	}

	extra := ExtraIgnore
	if d.ForbidExtra {
		extra = ExtraForbid
	}
	return New(d.Name, extra, fields...)
}

// Definition renders the schema back into its declarative form.
func (s *Schema) Definition() Definition {
	d := Definition{Name: s.name, ForbidExtra: s.extra == ExtraForbid}
	for _, f := range s.fields {
		d.Fields = append(d.Fields, FieldDefinition{
			Name:     f.Name,
			Type:     TypeString(f.Type),
			Required: f.Required,
			Default:  f.Default,
		})
	}
	return d
}
