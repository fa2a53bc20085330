package kfp

import (
	"context"
	"maps"
	"time"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/runtime"
)

// DefaultPollInterval is how often a submitted run is polled.
const DefaultPollInterval = 5 * time.Second

// Runtime submits workflows to a pipeline engine and waits for them.
type Runtime struct {
	runtime.Base
	client       Client
	pollInterval time.Duration
}

var (
	_ runtime.Runtime    = (*Runtime)(nil)
	_ runtime.RemoteOnly = (*Runtime)(nil)
)

// Option configures the runtimes built by a factory.
type Option func(*Runtime)

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// NewFactory returns a runtime factory bound to client.
func NewFactory(client Client, opts ...Option) runtime.Factory {
	return func(family *kind.Family, project string) (runtime.Runtime, error) {
		base, err := runtime.NewBase(family, project)
		if err != nil {
			return nil, err
		}
		r := &Runtime{Base: base, client: client, pollInterval: DefaultPollInterval}
		for _, opt := range opts {
			opt(r)
		}
		return r, nil
	}
}

// RemoteOnly implements runtime.RemoteOnly.
func (r *Runtime) RemoteOnly() bool {
	return true
}

// Run submits the run and polls until the engine reports a terminal or
// stopped state, or ctx ends.
func (r *Runtime) Run(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	if r.client == nil {
		return runtime.Failure("no pipeline client configured")
	}

	sub := Submission{
		RunID:      d.RunID,
		Project:    d.Project,
		Name:       d.Name,
		Action:     d.Action,
		Experiment: d.String("experiment"),
		Source:     d.String("source"),
		Handler:    d.String("handler"),
		Image:      d.String("image"),
		Schedule:   d.String("schedule"),
		Parameters: maps.Clone(d.Map("parameters")),
	}
	engineID, err := r.client.Submit(ctx, sub)
	if err != nil {
		return runtime.Failure("submit pipeline: %v", err)
	}
	log.Info(log.CatRuntime, "Submitted pipeline", "run", d.RunID, "engine_run", engineID, "action", d.Action)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		rs, err := r.client.Get(ctx, engineID)
		if err != nil {
			return runtime.Failure("poll pipeline %s: %v", engineID, err)
		}

		state := MapState(rs.State)
		if state.IsTerminal() || state == entity.StateStop {
			return update(engineID, state, rs)
		}

		select {
		case <-ctx.Done():
			return runtime.StatusUpdate{
				State:   string(entity.StateUnknown),
				Message: "stopped waiting for pipeline: " + ctx.Err().Error(),
				Results: map[string]any{"engine_run_id": engineID, "engine_state": rs.State},
			}
		case <-ticker.C:
		}
	}
}

func update(engineID string, state entity.State, rs RunState) runtime.StatusUpdate {
	u := runtime.StatusUpdate{
		State:   string(state),
		Message: rs.Message,
		Results: map[string]any{"engine_run_id": engineID, "engine_state": rs.State},
	}
	if len(rs.Outputs) > 0 {
		u.Outputs = make(map[string]any, len(rs.Outputs))
		for name, key := range rs.Outputs {
			u.Outputs[name] = key
		}
	}
	return u
}
