package runtime

import (
	"fmt"
	"sort"
)

// String returns the merged spec value at key as a string.
func (d *Descriptor) String(key string) string {
	s, _ := d.Spec[key].(string)
	return s
}

// Strings returns a list value as strings. Non-string items are formatted.
func (d *Descriptor) Strings(key string) []string {
	switch v := d.Spec[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprint(item)
			}
		}
		return out
	}
	return nil
}

// StringMap returns a map value with values formatted as strings.
func (d *Descriptor) StringMap(key string) map[string]string {
	var out map[string]string
	switch v := d.Spec[key].(type) {
	case map[string]string:
		out = make(map[string]string, len(v))
		for k, item := range v {
			out[k] = item
		}
	case map[string]any:
		out = make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(item)
			}
		}
	}
	return out
}

// Map returns a nested map value.
func (d *Descriptor) Map(key string) map[string]any {
	m, _ := d.Spec[key].(map[string]any)
	return m
}

// Int returns an integral number value.
func (d *Descriptor) Int(key string) (int, bool) {
	switch v := d.Spec[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Keys returns the spec keys in sorted order.
func (d *Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.Spec))
	for k := range d.Spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
