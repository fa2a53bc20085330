package entity

// Spec is user-supplied entity configuration. Its field set is decided by
// the kind's schema at build time.
type Spec struct {
	Fields map[string]any
}

// NewSpec copies fields into a Spec.
func NewSpec(fields map[string]any) Spec {
	return Spec{Fields: CloneMap(fields)}
}

// Get returns a field value.
func (s Spec) Get(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// String returns a string field, or "" when absent or not a string.
func (s Spec) String(key string) string {
	v, _ := s.Fields[key].(string)
	return v
}

// Bool returns a bool field, or false when absent or not a bool.
func (s Spec) Bool(key string) bool {
	v, _ := s.Fields[key].(bool)
	return v
}

// Map returns a deep copy of the fields.
func (s Spec) Map() map[string]any {
	out := CloneMap(s.Fields)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}
