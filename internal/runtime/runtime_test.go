package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
)

func withSpec(fields map[string]any) *entity.Entity {
	return &entity.Entity{Spec: entity.NewSpec(fields)}
}

// === Merge Tests ===

func TestMerge_Precedence(t *testing.T) {
	merged := MergeEntities(
		withSpec(map[string]any{"a": 1}),
		withSpec(map[string]any{"a": 2, "b": 3}),
		withSpec(map[string]any{"b": 4}),
	)
	require.Equal(t, map[string]any{"a": 2, "b": 4}, merged)
}

func TestMerge_IsShallow(t *testing.T) {
	merged := Merge(
		map[string]any{"env": map[string]any{"A": "1", "B": "2"}},
		nil,
		map[string]any{"env": map[string]any{"A": "9"}},
	)
	require.Equal(t, map[string]any{"env": map[string]any{"A": "9"}}, merged)
}

func TestMerge_NilLayers(t *testing.T) {
	require.Empty(t, Merge(nil, nil, nil))
	require.Equal(t, map[string]any{"x": 1}, MergeEntities(nil, withSpec(map[string]any{"x": 1}), nil))
}

func TestMerge_DoesNotAlias(t *testing.T) {
	fn := map[string]any{"args": []any{"a"}}
	merged := Merge(fn, nil, nil)
	merged["args"].([]any)[0] = "changed"
	require.Equal(t, "a", fn["args"].([]any)[0])
}

// TestMerge_RunOverTaskOverFunction checks precedence for arbitrary layers.
func TestMerge_RunOverTaskOverFunction(t *testing.T) {
	layer := rapid.MapOf(rapid.SampledFrom([]string{"a", "b", "c", "d", "e"}), rapid.Int())

	rapid.Check(t, func(rt *rapid.T) {
		fn := layer.Draw(rt, "function")
		task := layer.Draw(rt, "task")
		run := layer.Draw(rt, "run")

		merged := Merge(toAny(fn), toAny(task), toAny(run))

		for k, v := range merged {
			switch {
			case contains(run, k):
				require.Equal(rt, run[k], v)
			case contains(task, k):
				require.Equal(rt, task[k], v)
			default:
				require.Equal(rt, fn[k], v)
			}
		}
		require.Len(rt, merged, len(union(fn, task, run)))
	})
}

func toAny(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func contains(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

func union(ms ...map[string]int) map[string]bool {
	out := make(map[string]bool)
	for _, m := range ms {
		for k := range m {
			out[k] = true
		}
	}
	return out
}

// === Results Tests ===

func TestResultsFromStatus(t *testing.T) {
	status := entity.Status{
		State:   entity.StateCompleted,
		Results: map[string]any{"accuracy": 0.9},
		Outputs: map[string]any{
			"model":   "store://demo/model/model/clf:1",
			"dataset": "store://demo/dataitem/table/train:2",
		},
	}

	res, err := ResultsFromStatus(status)
	require.NoError(t, err)
	require.Equal(t, 0.9, res.Values["accuracy"])

	k, ok := res.Output("model")
	require.True(t, ok)
	require.Equal(t, entity.TypeModel, k.Type)
	require.Equal(t, "clf", k.Name)

	require.Len(t, res.OutputsOf(entity.TypeDataitem), 1)
	require.Empty(t, res.OutputsOf(entity.TypeArtifact))
}

func TestResultsFromStatus_BadOutput(t *testing.T) {
	_, err := ResultsFromStatus(entity.Status{Outputs: map[string]any{"x": 3}})
	require.ErrorIs(t, err, entity.ErrInvalidKey)

	_, err = ResultsFromStatus(entity.Status{Outputs: map[string]any{"x": "s3://bucket/x"}})
	require.ErrorIs(t, err, entity.ErrInvalidKey)
}

// === Base Tests ===

type stubRuntime struct {
	Base
	remote bool
}

func (s stubRuntime) Run(ctx context.Context, d *Descriptor) StatusUpdate {
	return Completed("ok")
}

func (s stubRuntime) RemoteOnly() bool { return s.remote }

func TestBase_Build(t *testing.T) {
	fam := kind.MustFamily("demo", "demo+run", kind.ActionFor("demo", "job"))
	base, err := NewBase(fam, "proj")
	require.NoError(t, err)

	run := &entity.Entity{
		ID: "run-1", Project: "proj", Name: "fn", Kind: "demo+run",
		Spec: entity.NewSpec(map[string]any{"local_execution": true, "x": "run"}),
	}
	task := &entity.Entity{Kind: "demo+job", Spec: entity.NewSpec(map[string]any{"x": "task", "y": "task"})}
	fn := &entity.Entity{Kind: "demo", Spec: entity.NewSpec(map[string]any{"y": "fn", "z": "fn"})}

	d, err := base.Build(fn, task, run)
	require.NoError(t, err)
	require.Equal(t, "run-1", d.RunID)
	require.Equal(t, "job", d.Action)
	require.Equal(t, "demo+job", d.TaskKind)
	require.True(t, d.LocalExecution)
	require.Equal(t, map[string]any{"local_execution": true, "x": "run", "y": "task", "z": "fn"}, d.Spec)

	_, err = base.Build(fn, task, nil)
	require.Error(t, err)
}

func TestNewBase_RequiresFamily(t *testing.T) {
	_, err := NewBase(nil, "p")
	require.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	fam := kind.MustFamily("demo", "demo+run", kind.ActionFor("demo", "job"), kind.ActionFor("demo", "build"))
	rt := stubRuntime{Base: Base{Family: fam}, remote: true}

	require.True(t, IsRemoteOnly(rt))
	require.True(t, Allows(rt, "build"))
	require.False(t, Allows(rt, "deploy"))
	require.False(t, IsRemoteOnly(stubRuntime{Base: Base{Family: fam}}))
}

func TestStatusHelpers(t *testing.T) {
	require.Equal(t, StatusUpdate{State: "COMPLETED", Message: "done"}, Completed("done"))
	require.Equal(t, StatusUpdate{State: "ERROR", Message: "exit 2"}, Failure("exit %d", 2))
}

func TestRunSchema_DeclaresDispatchFields(t *testing.T) {
	s := RunSchema("demo+run")
	require.True(t, s.Declares(SpecTask))
	require.True(t, s.Declares(SpecLocalExecution))

	out, err := s.Validate(map[string]any{SpecTask: "demo+job://p/fn:1"})
	require.NoError(t, err)
	require.Equal(t, false, out[SpecLocalExecution])
}

// === Descriptor Accessor Tests ===

func TestDescriptor_Accessors(t *testing.T) {
	d := &Descriptor{Spec: map[string]any{
		"command": "echo",
		"args":    []any{"a", 2},
		"env":     map[string]any{"MODE": "fast", "LEVEL": 3},
		"params":  map[string]any{"x": 1},
		"retries": 2,
		"ratio":   2.5,
		"whole":   4.0,
	}}

	require.Equal(t, "echo", d.String("command"))
	require.Empty(t, d.String("missing"))
	require.Equal(t, []string{"a", "2"}, d.Strings("args"))
	require.Nil(t, d.Strings("command"))
	require.Equal(t, map[string]string{"MODE": "fast", "LEVEL": "3"}, d.StringMap("env"))
	require.Nil(t, d.StringMap("args"))
	require.Equal(t, map[string]any{"x": 1}, d.Map("params"))

	n, ok := d.Int("retries")
	require.True(t, ok)
	require.Equal(t, 2, n)

	_, ok = d.Int("ratio")
	require.False(t, ok)

	n, ok = d.Int("whole")
	require.True(t, ok)
	require.Equal(t, 4, n)

	require.Equal(t, []string{"args", "command", "env", "params", "ratio", "retries", "whole"}, d.Keys())
}
