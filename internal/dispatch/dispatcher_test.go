package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/kindhub/internal/builder"
	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/events"
	"github.com/zjrosen/kindhub/internal/flags"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
	"github.com/zjrosen/kindhub/internal/store"
)

var containerFamily = kind.MustFamily("container", "container+run",
	kind.ActionFor("container", "job"),
	kind.ActionFor("container", "build"),
	kind.ActionFor("container", "deploy"),
)

// fakeRuntime runs whatever the test plugs into it.
type fakeRuntime struct {
	runtime.Base
	allowed  []string
	remote   bool
	buildErr error
	panicky  bool
	run      func(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate

	mu   sync.Mutex
	last *runtime.Descriptor
}

func (f *fakeRuntime) AllowedActions() []string {
	if f.allowed != nil {
		return f.allowed
	}
	return f.Base.AllowedActions()
}

func (f *fakeRuntime) Build(function, task, run *entity.Entity) (*runtime.Descriptor, error) {
	if f.panicky {
		panic("bad merge")
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return f.Base.Build(function, task, run)
}

func (f *fakeRuntime) Run(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	f.mu.Lock()
	f.last = d
	f.mu.Unlock()
	if f.run == nil {
		return runtime.Completed("done")
	}
	return f.run(ctx, d)
}

func (f *fakeRuntime) RemoteOnly() bool {
	return f.remote
}

func (f *fakeRuntime) descriptor() *runtime.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event[RunEvent]
}

func (r *recorder) Publish(t events.EventType, payload RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event[RunEvent]{Type: t, Payload: payload})
}

func (r *recorder) states() []entity.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.State
	for _, e := range r.events {
		if e.Type == events.EventRunTransitioned {
			out = append(out, e.Payload.To)
		}
	}
	return out
}

func (r *recorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestBuilder(t *testing.T, rt *fakeRuntime) *builder.Builder {
	t.Helper()

	r := registry.NewRegistry()
	require.NoError(t, r.RegisterFamily(registry.FamilyRegistration{
		Family:         containerFamily,
		ExecutableType: entity.TypeFunction,
		Locator:        "kindhub/test",
		NewRuntime: func(f *kind.Family, project string) (runtime.Runtime, error) {
			base, err := runtime.NewBase(f, project)
			if err != nil {
				return nil, err
			}
			rt.Base = base
			return rt, nil
		},
		RunSchema: runtime.RunSchema("container-run",
			schema.Field{Name: "image", Type: cty.String},
			schema.Field{Name: "replicas", Type: cty.Number, Default: 1},
		),
	}))
	return builder.New(r.Freeze())
}

func newFunction(t *testing.T, b *builder.Builder) *entity.Entity {
	t.Helper()
	fn, err := b.BuildEntity("container", builder.EntityParams{
		Project: "demo",
		Name:    "train",
		Spec:    map[string]any{"image": "python:3.12", "command": "python"},
	})
	require.NoError(t, err)
	return fn
}

// === Run: happy path ===

func TestRun_Completes(t *testing.T) {
	rt := &fakeRuntime{}
	b := newTestBuilder(t, rt)
	rec := &recorder{}
	d := New(b, WithEvents(rec))
	fn := newFunction(t, b)

	run, err := d.Run(context.Background(), Request{
		Executable: fn,
		Action:     "job",
		Params:     map[string]any{"image": "python:3.13"},
	})
	require.NoError(t, err)
	require.NotNil(t, run)

	require.Equal(t, "container+run", run.Kind)
	require.Equal(t, entity.TypeRun, run.Type)
	require.Equal(t, entity.StateCompleted, run.Status.State)
	require.Equal(t, "done", run.Status.Message)
	require.Equal(t, "container+job://demo/train:"+fn.ID, run.Spec.String(runtime.SpecTask))
	require.False(t, run.Spec.Bool(runtime.SpecLocalExecution))
	require.Equal(t, 1, run.Spec.Fields["replicas"], "run schema defaults apply")

	require.Equal(t,
		[]entity.State{entity.StatePending, entity.StateRunning, entity.StateCompleted},
		rec.states())
	require.Equal(t, 1, rec.count(events.EventRunCreated))
	require.Equal(t, 1, rec.count(events.EventRunFinished))
}

func TestRun_MergesRunOverTaskOverFunction(t *testing.T) {
	rt := &fakeRuntime{}
	b := newTestBuilder(t, rt)
	d := New(b)
	fn := newFunction(t, b)

	task, err := d.NewTask(context.Background(), fn, "job", map[string]any{"command": "bash"})
	require.NoError(t, err)
	require.Equal(t, "container+job", task.Kind)
	require.Equal(t, "container://demo/train:"+fn.ID, task.Spec.String(runtime.SpecFunction))

	_, err = d.Run(context.Background(), Request{
		Executable: fn,
		Task:       task,
		Params:     map[string]any{"image": "python:3.13"},
	})
	require.NoError(t, err)

	desc := rt.descriptor()
	require.NotNil(t, desc)
	require.Equal(t, "python:3.13", desc.Spec["image"], "run overrides function")
	require.Equal(t, "bash", desc.Spec["command"], "task overrides function")
	require.Equal(t, "job", desc.Action)
	require.Equal(t, "container+job", desc.TaskKind)
}

func TestRun_LocalExecution(t *testing.T) {
	rt := &fakeRuntime{}
	b := newTestBuilder(t, rt)
	d := New(b)

	run, err := d.Run(context.Background(), Request{
		Executable:     newFunction(t, b),
		Action:         "build",
		LocalExecution: true,
	})
	require.NoError(t, err)
	require.True(t, run.Spec.Bool(runtime.SpecLocalExecution))
	require.True(t, rt.descriptor().LocalExecution)
}

// === Run: refusals ===

func TestRun_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		rt      *fakeRuntime
		req     func(fn *entity.Entity) Request
		wantErr error
	}{
		{
			name: "local execution on remote only runtime",
			rt:   &fakeRuntime{remote: true},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "job", LocalExecution: true}
			},
			wantErr: ErrBackend,
		},
		{
			name: "action not allowed by runtime",
			rt:   &fakeRuntime{allowed: []string{"job", "build"}},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "deploy"}
			},
			wantErr: ErrEntity,
		},
		{
			name: "action outside family",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "serve"}
			},
			wantErr: kind.ErrUnknownAction,
		},
		{
			name:    "missing executable",
			rt:      &fakeRuntime{},
			req:     func(*entity.Entity) Request { return Request{Action: "job"} },
			wantErr: ErrEntity,
		},
		{
			name: "no task and no action",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn}
			},
			wantErr: ErrEntity,
		},
		{
			name: "executable is not runnable",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				art := *fn
				art.Type = entity.TypeArtifact
				return Request{Executable: &art, Action: "job"}
			},
			wantErr: ErrEntity,
		},
		{
			name: "task from another family",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Task: &entity.Entity{Kind: "kfp+pipeline", Type: entity.TypeTask}}
			},
			wantErr: ErrEntity,
		},
		{
			name: "action contradicts task kind",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "build", Task: &entity.Entity{Kind: "container+job", Type: entity.TypeTask}}
			},
			wantErr: ErrEntity,
		},
		{
			name: "invalid run params",
			rt:   &fakeRuntime{},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "job", Params: map[string]any{"replicas": "many"}}
			},
			wantErr: schema.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, tt.rt)
			rec := &recorder{}
			d := New(b, WithEvents(rec))

			run, err := d.Run(context.Background(), tt.req(newFunction(t, b)))
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, run)
			require.Nil(t, tt.rt.descriptor(), "runtime must not run")
			require.Zero(t, rec.count(events.EventRunCreated))
		})
	}
}

func TestRun_UnknownExecutableKind(t *testing.T) {
	b := newTestBuilder(t, &fakeRuntime{})
	d := New(b)

	fn := newFunction(t, b)
	fn.Kind = "dbt"
	_, err := d.Run(context.Background(), Request{Executable: fn, Action: "job"})
	require.ErrorIs(t, err, registry.ErrUnknownKind)
}

// === Run: failure isolation ===

func TestRun_FailuresBecomeError(t *testing.T) {
	tests := []struct {
		name        string
		rt          *fakeRuntime
		wantMessage string
	}{
		{
			name: "runtime panics",
			rt: &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
				panic("boom")
			}},
			wantMessage: "runtime panic: boom",
		},
		{
			name:        "build panics",
			rt:          &fakeRuntime{panicky: true},
			wantMessage: "build failed: runtime panic: bad merge",
		},
		{
			name:        "build fails",
			rt:          &fakeRuntime{buildErr: errors.New("no image")},
			wantMessage: "build failed: no image",
		},
		{
			name: "runtime reports failure",
			rt: &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
				return runtime.Failure("exit code %d", 2)
			}},
			wantMessage: "exit code 2",
		},
		{
			name: "empty state",
			rt: &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
				return runtime.StatusUpdate{Message: "forgot"}
			}},
			wantMessage: "runtime returned no state",
		},
		{
			name: "illegal transition",
			rt: &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
				return runtime.StatusUpdate{State: string(entity.StateCreated)}
			}},
			wantMessage: "invalid state transition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, tt.rt)
			rec := &recorder{}
			d := New(b, WithEvents(rec))

			var run *entity.Entity
			require.NotPanics(t, func() {
				var err error
				run, err = d.Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
				require.NoError(t, err)
			})
			require.Equal(t, entity.StateError, run.Status.State)
			require.NotEmpty(t, run.Status.Message)
			require.Contains(t, run.Status.Message, tt.wantMessage)
			require.Equal(t, 1, rec.count(events.EventRunFinished))
		})
	}
}

func TestRun_BackendStates(t *testing.T) {
	tests := []struct {
		reported string
		want     entity.State
	}{
		{"completed", entity.StateCompleted},
		{"RUNNING", entity.StateRunning},
		{"Succeeded", entity.StateUnknown},
		{"ready", entity.StateReady},
	}

	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			rt := &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
				return runtime.StatusUpdate{State: tt.reported}
			}}
			b := newTestBuilder(t, rt)

			run, err := New(b).Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
			require.NoError(t, err)
			require.Equal(t, tt.want, run.Status.State)
		})
	}
}

// === Transition and Results ===

func TestTransition(t *testing.T) {
	rt := &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
		return runtime.StatusUpdate{State: "RUNNING", Message: "serving"}
	}}
	b := newTestBuilder(t, rt)
	rec := &recorder{}
	d := New(b, WithEvents(rec))

	run, err := d.Run(context.Background(), Request{Executable: newFunction(t, b), Action: "deploy"})
	require.NoError(t, err)
	require.Equal(t, entity.StateRunning, run.Status.State)

	require.NoError(t, d.Transition(context.Background(), run, entity.StateStop, "user stop"))
	require.Equal(t, entity.StateStop, run.Status.State)

	require.NoError(t, d.Transition(context.Background(), run, entity.StateCancelled, ""))
	require.NoError(t, d.Transition(context.Background(), run, entity.StateDeleted, ""))

	err = d.Transition(context.Background(), run, entity.StateRunning, "")
	require.ErrorIs(t, err, entity.ErrInvalidTransition, "DELETED is final")

	err = d.Transition(context.Background(), run, entity.State("BOGUS"), "")
	require.ErrorIs(t, err, entity.ErrInvalidState)

	err = d.Transition(context.Background(), newFunction(t, b), entity.StateStop, "")
	require.ErrorIs(t, err, ErrEntity)
}

func TestResults(t *testing.T) {
	rt := &fakeRuntime{run: func(_ context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
		return runtime.StatusUpdate{
			State:   "COMPLETED",
			Results: map[string]any{"accuracy": 0.93},
			Outputs: map[string]any{
				"model": "store://demo/model/sklearn/clf:5f0c9a3e-3b8e-4c55-8a0f-2f1f4a6f0d71",
			},
		}
	}}
	b := newTestBuilder(t, rt)
	d := New(b)

	run, err := d.Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
	require.NoError(t, err)

	res, err := d.Results(run)
	require.NoError(t, err)
	require.Equal(t, 0.93, res.Values["accuracy"])

	key, ok := res.Output("model")
	require.True(t, ok)
	require.Equal(t, entity.TypeModel, key.Type)
	require.Equal(t, "clf", key.Name)

	_, err = d.Results(nil)
	require.ErrorIs(t, err, ErrEntity)
}

// === Persistence, events, tracing ===

func TestRun_PersistsBehindFlag(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{"enabled", true},
		{"disabled", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{}
			b := newTestBuilder(t, rt)
			repo := store.NewRepository(store.NewMemoryClient())
			d := New(b,
				WithRepository(repo),
				WithFlags(flags.New(map[string]bool{flags.FlagRunPersistence: tt.enabled})),
			)

			run, err := d.Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
			require.NoError(t, err)

			got, err := repo.Get(context.Background(), "demo", entity.TypeRun, run.ID)
			if !tt.enabled {
				require.ErrorIs(t, err, store.ErrNotFound)
				return
			}
			require.NoError(t, err)
			require.Equal(t, entity.StateCompleted, got.Status.State)

			tasks, err := repo.List(context.Background(), "demo", entity.TypeTask, store.Filter{Kind: "container+job"})
			require.NoError(t, err)
			require.Len(t, tasks, 1)
		})
	}
}

func TestRun_RefusedDispatchSavesNothing(t *testing.T) {
	tests := []struct {
		name    string
		rt      *fakeRuntime
		req     func(fn *entity.Entity) Request
		wantErr error
	}{
		{
			name: "remote only",
			rt:   &fakeRuntime{remote: true},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "job", LocalExecution: true}
			},
			wantErr: ErrBackend,
		},
		{
			name: "action not allowed",
			rt:   &fakeRuntime{allowed: []string{"job"}},
			req: func(fn *entity.Entity) Request {
				return Request{Executable: fn, Action: "deploy"}
			},
			wantErr: ErrEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, tt.rt)
			repo := store.NewRepository(store.NewMemoryClient())
			d := New(b,
				WithRepository(repo),
				WithFlags(flags.New(map[string]bool{flags.FlagRunPersistence: true})),
			)

			_, err := d.Run(context.Background(), tt.req(newFunction(t, b)))
			require.ErrorIs(t, err, tt.wantErr)

			for _, typ := range []entity.EntityType{entity.TypeTask, entity.TypeRun} {
				saved, err := repo.List(context.Background(), "demo", typ, store.Filter{})
				require.NoError(t, err)
				require.Empty(t, saved, "%s saved by a refused dispatch", typ)
			}
		})
	}
}

func TestRun_PublishesOnBroker(t *testing.T) {
	broker := events.NewBroker[RunEvent]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := broker.Subscribe(ctx, events.EventRunFinished)

	b := newTestBuilder(t, &fakeRuntime{})
	run, err := New(b, WithEvents(broker)).Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
	require.NoError(t, err)

	select {
	case ev := <-finished:
		require.Equal(t, run.ID, ev.Payload.RunID)
		require.Equal(t, entity.StateRunning, ev.Payload.From)
		require.Equal(t, entity.StateCompleted, ev.Payload.To)
		require.Equal(t, "job", ev.Payload.Action)
	case <-time.After(time.Second):
		t.Fatal("no run.finished event")
	}
}

func TestRun_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rt := &fakeRuntime{run: func(context.Context, *runtime.Descriptor) runtime.StatusUpdate {
		panic("boom")
	}}
	b := newTestBuilder(t, rt)
	_, err := New(b, WithTracer(tp.Tracer("test"))).Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	require.True(t, names["dispatch.run"])
	require.True(t, names["runtime.build"])
	require.True(t, names["runtime.run"])
}

func TestRun_BuildPanicEndsBuildSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	b := newTestBuilder(t, &fakeRuntime{panicky: true})
	run, err := New(b, WithTracer(tp.Tracer("test"))).Run(context.Background(), Request{Executable: newFunction(t, b), Action: "job"})
	require.NoError(t, err)
	require.Equal(t, entity.StateError, run.Status.State)

	var build *tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		if s.Name == "runtime.build" {
			build = &s
		}
	}
	require.NotNil(t, build, "build span was not ended")
	require.Equal(t, codes.Error, build.Status.Code)
}
