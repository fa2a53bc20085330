package runtime

import (
	"fmt"

	"github.com/zjrosen/kindhub/internal/entity"
)

// Results is the typed view of a finished run: plain values plus resolved
// references to produced artifacts, dataitems and models.
type Results struct {
	Values  map[string]any
	Outputs map[string]entity.Key
}

// Output returns the key of a named output.
func (r *Results) Output(name string) (entity.Key, bool) {
	k, ok := r.Outputs[name]
	return k, ok
}

// OutputsOf returns outputs of the given entity type.
func (r *Results) OutputsOf(t entity.EntityType) map[string]entity.Key {
	out := make(map[string]entity.Key)
	for name, k := range r.Outputs {
		if k.Type == t {
			out[name] = k
		}
	}
	return out
}

// ResultsFromStatus parses status outputs as store:// keys.
func ResultsFromStatus(status entity.Status) (*Results, error) {
	res := &Results{
		Values:  entity.CloneMap(status.Results),
		Outputs: make(map[string]entity.Key, len(status.Outputs)),
	}
	if res.Values == nil {
		res.Values = make(map[string]any)
	}

	for name, v := range status.Outputs {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: output %q is a %T, want a key string", entity.ErrInvalidKey, name, v)
		}
		k, err := entity.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		res.Outputs[name] = k
	}
	return res, nil
}
