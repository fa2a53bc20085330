package dispatch

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/kindhub/internal/builder"
	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/events"
	"github.com/zjrosen/kindhub/internal/flags"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/store"
	"github.com/zjrosen/kindhub/internal/tracing"
)

// EntityBuilder is the part of the builder the dispatcher needs.
type EntityBuilder interface {
	BuildRuntime(k, project string) (runtime.Runtime, *kind.Family, error)
	BuildEntity(k string, p builder.EntityParams) (*entity.Entity, error)
}

var _ EntityBuilder = (*builder.Builder)(nil)

// Dispatcher orchestrates task runs. It is safe for concurrent use; each
// run entity is owned by the Run call that created it.
type Dispatcher struct {
	builder EntityBuilder
	repo    *store.Repository
	events  events.Publisher[RunEvent]
	tracer  trace.Tracer
	flags   *flags.Registry
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRepository persists tasks and runs when the run-persistence flag is on.
func WithRepository(repo *store.Repository) Option {
	return func(d *Dispatcher) {
		d.repo = repo
	}
}

// WithEvents publishes run lifecycle events.
func WithEvents(p events.Publisher[RunEvent]) Option {
	return func(d *Dispatcher) {
		d.events = p
	}
}

// WithTracer records dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithFlags sets the feature flags.
func WithFlags(f *flags.Registry) Option {
	return func(d *Dispatcher) {
		d.flags = f
	}
}

// New creates a Dispatcher over b.
func New(b EntityBuilder, opts ...Option) *Dispatcher {
	d := &Dispatcher{builder: b}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Request asks for one execution of a task.
type Request struct {
	// Executable is the function or workflow being run.
	Executable *entity.Entity
	// Task is the task of the executable; nil creates one for Action.
	Task *entity.Entity
	// Action defaults to the action of Task's kind.
	Action string
	// Params are the run spec parameters.
	Params         map[string]any
	LocalExecution bool
}

// NewTask creates the task of executable for action. The task kind comes
// from the executable's family.
func (d *Dispatcher) NewTask(ctx context.Context, executable *entity.Entity, action string, params map[string]any) (*entity.Entity, error) {
	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanDispatchTask,
		attribute.String(tracing.AttrExecutableKind, executableKind(executable)),
		attribute.String(tracing.AttrAction, action),
	)
	task, err := d.buildTask(executable, action, params)
	if err == nil {
		d.saveTask(ctx, task, executable)
	}
	tracing.End(span, err)
	return task, err
}

func (d *Dispatcher) saveTask(ctx context.Context, task, executable *entity.Entity) {
	d.persist(ctx, task)
	log.Debug(log.CatDispatch, "Created task", "kind", task.Kind, "id", task.ID, "executable", executable.ID)
}

// buildTask builds an unsaved task of executable for action.
func (d *Dispatcher) buildTask(executable *entity.Entity, action string, params map[string]any) (*entity.Entity, error) {
	if err := checkExecutable(executable); err != nil {
		return nil, err
	}
	_, family, err := d.builder.BuildRuntime(executable.Kind, executable.Project)
	if err != nil {
		return nil, err
	}
	taskKind, err := family.TaskKindFromAction(action)
	if err != nil {
		return nil, err
	}

	spec := maps.Clone(params)
	if spec == nil {
		spec = make(map[string]any)
	}
	ref := entity.ExecutableRef(executable.Kind, executable.Project, executable.Name, executable.ID)
	if executable.Type == entity.TypeWorkflow {
		spec[runtime.SpecWorkflow] = ref
	} else {
		spec[runtime.SpecFunction] = ref
	}

	task, err := d.builder.BuildEntity(string(taskKind), builder.EntityParams{
		Project: executable.Project,
		Name:    executable.Name,
		Spec:    spec,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Run executes a task. Resolution and validation problems are returned as
// errors before anything runs. Once execution starts the returned run is
// always non-nil and failures are recorded in its status with state ERROR.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*entity.Entity, error) {
	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanDispatchRun,
		attribute.String(tracing.AttrExecutableKind, executableKind(req.Executable)),
		attribute.String(tracing.AttrAction, req.Action),
		attribute.Bool(tracing.AttrLocalExecution, req.LocalExecution),
	)

	run, err := d.run(ctx, span, req)
	if run != nil {
		span.SetAttributes(
			attribute.String(tracing.AttrRunID, run.ID),
			attribute.String(tracing.AttrState, string(run.Status.State)),
		)
		if run.Status.State == entity.StateError {
			tracing.Fail(span, run.Status.Message)
		}
	}
	tracing.End(span, err)
	return run, err
}

func (d *Dispatcher) run(ctx context.Context, span trace.Span, req Request) (*entity.Entity, error) {
	exe := req.Executable
	if err := checkExecutable(exe); err != nil {
		return nil, err
	}

	rt, family, err := d.builder.BuildRuntime(exe.Kind, exe.Project)
	if err != nil {
		return nil, err
	}
	runKind := family.RunKind()

	action, task, created, err := d.resolveTask(req, family)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String(tracing.AttrProject, exe.Project),
		attribute.String(tracing.AttrExecutableID, exe.ID),
		attribute.String(tracing.AttrTaskKind, task.Kind),
		attribute.String(tracing.AttrRunKind, string(runKind)),
	)

	spec := maps.Clone(req.Params)
	if spec == nil {
		spec = make(map[string]any)
	}
	spec[runtime.SpecTask] = entity.ExecutableRef(task.Kind, exe.Project, exe.Name, exe.ID)
	spec[runtime.SpecLocalExecution] = req.LocalExecution

	run, err := d.builder.BuildEntity(string(runKind), builder.EntityParams{
		Project: exe.Project,
		Name:    exe.Name,
		Spec:    spec,
	})
	if err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventRunBuilt, trace.WithAttributes(attribute.String(tracing.AttrRunID, run.ID)))

	if req.LocalExecution && runtime.IsRemoteOnly(rt) {
		return nil, fmt.Errorf("%w: kind %q only supports remote execution", ErrBackend, exe.Kind)
	}
	if !runtime.Allows(rt, action) {
		return nil, fmt.Errorf("%w: action %q is not allowed by the runtime of %q (allowed: %v)",
			ErrEntity, action, exe.Kind, rt.AllowedActions())
	}

	if created {
		d.saveTask(ctx, task, exe)
	}
	d.persist(ctx, run)
	d.publish(events.EventRunCreated, run, action, "")
	log.Info(log.CatDispatch, "Run created", "run", run.ID, "kind", run.Kind, "action", action, "local", req.LocalExecution)

	for _, next := range []entity.State{entity.StatePending, entity.StateRunning} {
		if err := d.advance(ctx, span, run, action, next, ""); err != nil {
			d.fail(ctx, span, run, action, err.Error())
			return run, nil
		}
	}

	update := d.execute(ctx, rt, exe, task, run)
	d.apply(ctx, span, run, action, update)
	return run, nil
}

// resolveTask returns the action and the task entity of req. A request
// without a task gets a new, unsaved one and created is true.
func (d *Dispatcher) resolveTask(req Request, family *kind.Family) (action string, task *entity.Entity, created bool, err error) {
	if req.Task == nil {
		if req.Action == "" {
			return "", nil, false, fmt.Errorf("%w: a task or an action is required", ErrEntity)
		}
		task, err := d.buildTask(req.Executable, req.Action, nil)
		if err != nil {
			return "", nil, false, err
		}
		return req.Action, task, true, nil
	}

	if req.Task.Type != entity.TypeTask {
		return "", nil, false, fmt.Errorf("%w: %s %q is not a task", ErrEntity, req.Task.Type, req.Task.Kind)
	}
	taskKind, err := kind.Parse(req.Task.Kind)
	if err != nil {
		return "", nil, false, fmt.Errorf("%w: %w", ErrEntity, err)
	}
	if taskKind.Base() != family.ExecutableKind().Base() {
		return "", nil, false, fmt.Errorf("%w: task kind %q does not belong to family %q",
			ErrEntity, taskKind, family.ExecutableKind())
	}

	action = req.Action
	if action == "" {
		action = taskKind.Action()
	}
	if action != taskKind.Action() {
		return "", nil, false, fmt.Errorf("%w: action %q does not match task kind %q", ErrEntity, action, taskKind)
	}
	return action, req.Task, false, nil
}

// execute builds and runs the descriptor, turning errors and panics into
// ERROR updates.
func (d *Dispatcher) execute(ctx context.Context, rt runtime.Runtime, exe, task, run *entity.Entity) (update runtime.StatusUpdate) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatRuntime, "Runtime panicked", "run", run.ID, "kind", run.Kind, "panic", r)
			trace.SpanFromContext(ctx).AddEvent(tracing.EventRunRecovered)
			update = runtime.Failure("runtime panic: %v", r)
		}
	}()

	desc, err := d.build(ctx, rt, exe, task, run)
	if err != nil {
		return runtime.Failure("build failed: %v", err)
	}
	log.Debug(log.CatDispatch, "Built run descriptor", "run", run.ID, "keys", desc.Keys())

	runCtx, runSpan := tracing.Start(ctx, d.tracer, tracing.SpanRuntimeRun,
		attribute.String(tracing.AttrRunID, run.ID))
	defer runSpan.End()
	update = rt.Run(runCtx, desc)
	runSpan.SetAttributes(attribute.String(tracing.AttrState, update.State))
	return update
}

// build merges the three specs into a descriptor inside its own span.
func (d *Dispatcher) build(ctx context.Context, rt runtime.Runtime, exe, task, run *entity.Entity) (desc *runtime.Descriptor, err error) {
	_, span := tracing.Start(ctx, d.tracer, tracing.SpanRuntimeBuild,
		attribute.String(tracing.AttrRunID, run.ID))
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatRuntime, "Runtime build panicked", "run", run.ID, "kind", run.Kind, "panic", r)
			desc, err = nil, fmt.Errorf("runtime panic: %v", r)
		}
		tracing.End(span, err)
	}()

	desc, err = rt.Build(exe, task, run)
	if err == nil && desc == nil {
		err = fmt.Errorf("runtime returned no descriptor")
	}
	return desc, err
}

// apply writes a runtime update into the run status.
func (d *Dispatcher) apply(ctx context.Context, span trace.Span, run *entity.Entity, action string, update runtime.StatusUpdate) {
	if update.State == "" {
		d.fail(ctx, span, run, action, "runtime returned no state")
		return
	}

	state := entity.ParseBackendState(update.State)
	if state == entity.StateUnknown && !strings.EqualFold(update.State, string(entity.StateUnknown)) {
		log.Warn(log.CatDispatch, "Unmapped backend state", "run", run.ID, "state", update.State)
	}

	if update.Results != nil {
		run.Status.Results = entity.CloneMap(update.Results)
	}
	if update.Outputs != nil {
		run.Status.Outputs = entity.CloneMap(update.Outputs)
	}

	if err := d.advance(ctx, span, run, action, state, update.Message); err != nil {
		d.fail(ctx, span, run, action, err.Error())
	}
}

// advance moves run to state and records the change.
func (d *Dispatcher) advance(ctx context.Context, span trace.Span, run *entity.Entity, action string, state entity.State, message string) error {
	from := run.Status.State
	if err := run.Status.TransitionTo(state, message); err != nil {
		return err
	}
	tracing.Transition(span, string(from), string(state))
	d.persist(ctx, run)
	d.publish(events.EventRunTransitioned, run, action, from)
	if state.IsTerminal() && from != state {
		d.publish(events.EventRunFinished, run, action, from)
	}
	log.Debug(log.CatDispatch, "Run transitioned", "run", run.ID, "from", from, "to", state)
	return nil
}

// fail forces run into ERROR. A run already in a terminal state keeps its
// state and only gets the message.
func (d *Dispatcher) fail(ctx context.Context, span trace.Span, run *entity.Entity, action, message string) {
	if message == "" {
		message = "run failed"
	}
	log.Warn(log.CatDispatch, "Run failed", "run", run.ID, "kind", run.Kind, "error", message)
	if err := d.advance(ctx, span, run, action, entity.StateError, message); err != nil {
		run.Status.Message = message
		d.persist(ctx, run)
	}
}

// Transition requests a state change on a run, e.g. STOP, CANCELLED or
// DELETED. Runtimes honor these out of band.
func (d *Dispatcher) Transition(ctx context.Context, run *entity.Entity, state entity.State, message string) error {
	if run == nil || run.Type != entity.TypeRun {
		return fmt.Errorf("%w: transition requires a run", ErrEntity)
	}
	ctx, span := tracing.Start(ctx, d.tracer, tracing.SpanTransition,
		attribute.String(tracing.AttrRunID, run.ID),
		attribute.String(tracing.AttrState, string(state)),
	)
	err := d.advance(ctx, span, run, "", state, message)
	tracing.End(span, err)
	return err
}

// Results projects the status of run through its family runtime.
func (d *Dispatcher) Results(run *entity.Entity) (*runtime.Results, error) {
	if run == nil || run.Type != entity.TypeRun {
		return nil, fmt.Errorf("%w: results require a run", ErrEntity)
	}
	rt, _, err := d.builder.BuildRuntime(run.Kind, run.Project)
	if err != nil {
		return nil, err
	}
	return rt.Results(run.Status)
}

func (d *Dispatcher) persist(ctx context.Context, e *entity.Entity) {
	if d.repo == nil || !d.flags.Enabled(flags.FlagRunPersistence) {
		return
	}
	if err := d.repo.Save(ctx, e); err != nil {
		log.ErrorErr(log.CatDispatch, "Failed to persist entity", err, "kind", e.Kind, "id", e.ID)
	}
}

func checkExecutable(e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: an executable is required", ErrEntity)
	}
	if !e.Type.IsExecutable() {
		return fmt.Errorf("%w: %s %q cannot be run", ErrEntity, e.Type, e.Name)
	}
	return nil
}

func executableKind(e *entity.Entity) string {
	if e == nil {
		return ""
	}
	return e.Kind
}
