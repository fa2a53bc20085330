package builder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

type stubRuntime struct {
	runtime.Base
}

func (stubRuntime) Run(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
	return runtime.Completed("done")
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func testView(t *testing.T, factoryCalls *atomic.Int32) *registry.View {
	t.Helper()

	r := registry.NewRegistry()
	require.NoError(t, r.Register(registry.Entry{
		Kind:       "demo",
		EntityType: entity.TypeArtifact,
		Schema: schema.MustNew("demo", schema.ExtraIgnore,
			schema.Field{Name: "path", Type: cty.String, Required: true},
			schema.Field{Name: "retries", Type: cty.Number, Default: 3},
		),
	}))
	require.NoError(t, r.Register(registry.Entry{Kind: "project", EntityType: entity.TypeProject}))
	require.NoError(t, r.RegisterFamily(registry.FamilyRegistration{
		Family: kind.MustFamily("container", "container+run",
			kind.ActionFor("container", "job"),
			kind.ActionFor("container", "build"),
		),
		ExecutableType: entity.TypeFunction,
		Locator:        "kindhub/container",
		NewRuntime: func(f *kind.Family, project string) (runtime.Runtime, error) {
			if factoryCalls != nil {
				factoryCalls.Add(1)
			}
			if project == "broken" {
				return nil, errors.New("no backend")
			}
			base, err := runtime.NewBase(f, project)
			if err != nil {
				return nil, err
			}
			return stubRuntime{Base: base}, nil
		},
		RunSchema: runtime.RunSchema("container-run"),
	}))
	return r.Freeze()
}

func newBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	return New(testView(t, nil), append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

// === BuildSpec ===

func TestBuildSpec_Validates(t *testing.T) {
	b := newBuilder(t)

	spec, err := b.BuildSpec("demo", true, map[string]any{"path": "/x", "extra": true})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"path": "/x", "retries": 3}, spec.Fields)
}

func TestBuildSpec_MissingRequired(t *testing.T) {
	b := newBuilder(t)

	_, err := b.BuildSpec("demo", true, map[string]any{})
	require.ErrorIs(t, err, schema.ErrValidation)

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "path", verr.Issues[0].Field)
}

func TestBuildSpec_WithoutValidation(t *testing.T) {
	b := newBuilder(t)

	params := map[string]any{"anything": []any{1, 2}}
	spec, err := b.BuildSpec("demo", false, params)
	require.NoError(t, err)
	require.Equal(t, params, spec.Fields)

	params["anything"] = "mutated"
	require.Equal(t, []any{1, 2}, spec.Fields["anything"])
}

func TestBuildSpec_NoSchemaCopiesParams(t *testing.T) {
	b := newBuilder(t)

	spec, err := b.BuildSpec("project", true, map[string]any{"source": "git://repo"})
	require.NoError(t, err)
	require.Equal(t, "git://repo", spec.String("source"))
}

func TestBuilders_UnknownKind(t *testing.T) {
	b := newBuilder(t)

	_, err := b.BuildSpec("nope", true, nil)
	require.ErrorIs(t, err, registry.ErrUnknownKind)
	_, err = b.BuildStatus("nope", nil)
	require.ErrorIs(t, err, registry.ErrUnknownKind)
	_, err = b.BuildMetadata("nope", nil)
	require.ErrorIs(t, err, registry.ErrUnknownKind)
	_, _, err = b.BuildRuntime("nope", "p")
	require.ErrorIs(t, err, registry.ErrUnknownKind)
	_, err = b.BuildEntity("nope", EntityParams{Name: "n", Project: "p"})
	require.ErrorIs(t, err, registry.ErrUnknownKind)
}

// === BuildStatus / BuildMetadata ===

func TestBuildStatus(t *testing.T) {
	b := newBuilder(t)

	st, err := b.BuildStatus("demo", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, entity.StateCreated, st.State)

	st, err = b.BuildStatus("demo", map[string]any{"state": "RUNNING"})
	require.NoError(t, err)
	require.Equal(t, entity.StateRunning, st.State)

	_, err = b.BuildStatus("demo", map[string]any{"state": "BOGUS"})
	require.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestBuildMetadata_Timestamps(t *testing.T) {
	b := newBuilder(t)

	m, err := b.BuildMetadata("demo", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, fixedNow, m.Created)
	require.Equal(t, m.Created, m.Updated)

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err = b.BuildMetadata("demo", map[string]any{"created": created})
	require.NoError(t, err)
	require.Equal(t, created, m.Created)
	require.Equal(t, created, m.Updated)

	m, err = b.BuildMetadata("demo", map[string]any{"created": "2025-01-02T03:04:05Z", "updated": "2025-02-01T00:00:00Z"})
	require.NoError(t, err)
	require.Equal(t, created, m.Created)
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), m.Updated)
}

func TestBuildMetadata_InvalidTimestamp(t *testing.T) {
	b := newBuilder(t)

	_, err := b.BuildMetadata("demo", map[string]any{"created": "yesterday"})
	require.ErrorIs(t, err, entity.ErrInvalidMetadata)
}

// === BuildRuntime ===

func TestBuildRuntime(t *testing.T) {
	b := newBuilder(t)

	rt, family, err := b.BuildRuntime("container+job", "ml")
	require.NoError(t, err)
	require.Equal(t, kind.Composite("container+run"), family.RunKind())
	require.Equal(t, []string{"job", "build"}, rt.AllowedActions())
}

func TestBuildRuntime_NoRuntime(t *testing.T) {
	b := newBuilder(t)

	_, _, err := b.BuildRuntime("demo", "ml")
	require.ErrorIs(t, err, ErrNoRuntime)
}

func TestBuildRuntime_FactoryError(t *testing.T) {
	b := newBuilder(t)

	_, _, err := b.BuildRuntime("container", "broken")
	require.ErrorContains(t, err, "no backend")
}

func TestBuildRuntime_Cached(t *testing.T) {
	var calls atomic.Int32
	b := New(testView(t, &calls), WithRuntimeCache(NewRuntimeCache(time.Minute, time.Minute)))

	first, _, err := b.BuildRuntime("container", "ml")
	require.NoError(t, err)
	second, _, err := b.BuildRuntime("container+job", "ml")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), calls.Load())

	_, _, err = b.BuildRuntime("container", "other")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

// === BuildEntity ===

func TestBuildEntity(t *testing.T) {
	b := newBuilder(t)

	e, err := b.BuildEntity("demo", EntityParams{
		Project:  "ml",
		Name:     "dataset",
		Metadata: map[string]any{"labels": []any{"raw"}},
		Spec:     map[string]any{"path": "/data"},
	})
	require.NoError(t, err)

	require.NoError(t, entity.ValidateID(e.ID))
	require.Equal(t, entity.TypeArtifact, e.Type)
	require.Equal(t, "demo", e.Kind)
	require.Equal(t, "ml", e.Metadata.Project)
	require.Equal(t, "dataset", e.Metadata.Name)
	require.Equal(t, []string{"raw"}, e.Metadata.Labels)
	require.Equal(t, fixedNow, e.Metadata.Created)
	require.Equal(t, "/data", e.Spec.String("path"))
	require.Equal(t, entity.StateCreated, e.Status.State)
}

func TestBuildEntity_NameFromMetadata(t *testing.T) {
	b := newBuilder(t)

	e, err := b.BuildEntity("project", EntityParams{Metadata: map[string]any{"name": "ml"}})
	require.NoError(t, err)
	require.Equal(t, "ml", e.Name)
	require.Equal(t, "ml", e.Project)
}

func TestBuildEntity_KeepsSuppliedID(t *testing.T) {
	b := newBuilder(t)
	id := entity.NewID()

	e, err := b.BuildEntity("project", EntityParams{Name: "ml", ID: id})
	require.NoError(t, err)
	require.Equal(t, id, e.ID)
}

func TestBuildEntity_AllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		params  EntityParams
		wantErr error
	}{
		{"invalid id", EntityParams{Project: "ml", Name: "d", ID: "not-a-uuid", Spec: map[string]any{"path": "/x"}}, entity.ErrInvalidID},
		{"invalid spec", EntityParams{Project: "ml", Name: "d"}, schema.ErrValidation},
		{"invalid state", EntityParams{Project: "ml", Name: "d", Spec: map[string]any{"path": "/x"}, Status: map[string]any{"state": "BOGUS"}}, entity.ErrInvalidState},
		{"missing name", EntityParams{Project: "ml", Spec: map[string]any{"path": "/x"}}, ErrInvalidParams},
		{"missing project", EntityParams{Name: "d", Spec: map[string]any{"path": "/x"}}, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := newBuilder(t).BuildEntity("demo", tt.params)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, e)
		})
	}
}

func TestBuildEntity_SkipValidation(t *testing.T) {
	b := newBuilder(t)

	e, err := b.BuildEntity("demo", EntityParams{Project: "ml", Name: "d", SkipValidation: true})
	require.NoError(t, err)
	require.Empty(t, e.Spec.Fields)
}

func TestBuilder_ConcurrentUse(t *testing.T) {
	b := New(testView(t, nil), WithRuntimeCache(NewRuntimeCache(0, 0)))

	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := b.BuildEntity("demo", EntityParams{Project: "ml", Name: "d", Spec: map[string]any{"path": "/x"}})
			if err == nil {
				ids[i] = e.ID
			}
			_, _, _ = b.BuildRuntime("container", "ml")
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}
