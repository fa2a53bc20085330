package runtime

import "github.com/zjrosen/kindhub/internal/entity"

// Merge combines the three spec layers key by key. A key set in run wins
// over task, and task wins over function. Values are not merged
// recursively; the winning layer's value replaces the whole key.
func Merge(function, task, run map[string]any) map[string]any {
	out := make(map[string]any, len(function)+len(task)+len(run))
	for _, layer := range []map[string]any{function, task, run} {
		for k, v := range layer {
			out[k] = entity.CloneValue(v)
		}
	}
	return out
}

// MergeEntities applies Merge to the specs of three entities. Nil entities
// contribute nothing.
func MergeEntities(function, task, run *entity.Entity) map[string]any {
	return Merge(specOf(function), specOf(task), specOf(run))
}

func specOf(e *entity.Entity) map[string]any {
	if e == nil {
		return nil
	}
	return e.Spec.Fields
}
