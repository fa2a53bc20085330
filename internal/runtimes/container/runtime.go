package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/runtime"
)

// Backend submits runs to a remote container platform.
type Backend interface {
	Submit(ctx context.Context, d *runtime.Descriptor) (runtime.StatusUpdate, error)
}

// Runtime executes container runs. Jobs can run locally through the
// Executor; every action can be submitted to the Backend.
type Runtime struct {
	runtime.Base
	executor Executor
	backend  Backend
}

var _ runtime.Runtime = (*Runtime)(nil)

// Option configures the runtimes built by a factory.
type Option func(*Runtime)

// WithExecutor replaces the local process executor.
func WithExecutor(e Executor) Option {
	return func(r *Runtime) {
		r.executor = e
	}
}

// WithBackend sets the remote backend.
func WithBackend(b Backend) Option {
	return func(r *Runtime) {
		r.backend = b
	}
}

// NewFactory returns a runtime factory applying opts to every runtime.
func NewFactory(opts ...Option) runtime.Factory {
	return func(family *kind.Family, project string) (runtime.Runtime, error) {
		base, err := runtime.NewBase(family, project)
		if err != nil {
			return nil, err
		}
		r := &Runtime{Base: base, executor: ProcessExecutor{}}
		for _, opt := range opts {
			opt(r)
		}
		return r, nil
	}
}

// Run implements runtime.Runtime.
func (r *Runtime) Run(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	switch d.Action {
	case ActionJob:
		if d.LocalExecution {
			return r.runLocal(ctx, d)
		}
		return r.submit(ctx, d)
	case ActionBuild, ActionServe:
		if d.LocalExecution {
			return runtime.Failure("action %q cannot run locally", d.Action)
		}
		return r.submit(ctx, d)
	default:
		return runtime.Failure("unsupported action %q", d.Action)
	}
}

func (r *Runtime) submit(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	if r.backend == nil {
		return runtime.Failure("no container backend configured for %s runs", d.Action)
	}
	update, err := r.backend.Submit(ctx, d)
	if err != nil {
		return runtime.Failure("submit %s run: %v", d.Action, err)
	}
	log.Debug(log.CatRuntime, "Submitted container run", "run", d.RunID, "action", d.Action, "state", update.State)
	return update
}

// runLocal runs the command, retrying up to backoff_limit times.
func (r *Runtime) runLocal(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	cmd := Command{
		Path: d.String("command"),
		Args: d.Strings("args"),
		Env:  d.StringMap("env"),
		Dir:  d.String("workdir"),
	}
	if cmd.Path == "" {
		return runtime.Failure("local job needs a command")
	}

	if secs, ok := d.Int("timeout"); ok && secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	retries, _ := d.Int("backoff_limit")
	retries = max(retries, 0)
	var (
		res      Result
		err      error
		attempts int
	)
	for attempts = 1; attempts <= retries+1; attempts++ {
		res, err = r.executor.Execute(ctx, cmd)
		if err == nil && res.ExitCode == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		log.Debug(log.CatRuntime, "Local job attempt failed", "run", d.RunID, "attempt", attempts, "exit_code", res.ExitCode)
	}
	if attempts > retries+1 {
		attempts = retries + 1
	}

	results := map[string]any{
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
		"attempts":  attempts,
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return runtime.StatusUpdate{State: string(entity.StateError), Message: "job timed out", Results: results}
	case errors.Is(err, context.Canceled):
		return runtime.StatusUpdate{State: string(entity.StateCancelled), Message: "job cancelled", Results: results}
	case err != nil:
		return runtime.StatusUpdate{State: string(entity.StateError), Message: err.Error(), Results: results}
	case res.ExitCode != 0:
		return runtime.StatusUpdate{State: string(entity.StateError), Message: fmt.Sprintf("exit code %d", res.ExitCode), Results: results}
	}
	return runtime.StatusUpdate{State: string(entity.StateCompleted), Message: "exit code 0", Results: results}
}
