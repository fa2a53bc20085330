package native

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

// Runtime calls Go handlers. Native functions always execute in-process,
// whatever the requested execution mode.
type Runtime struct {
	runtime.Base
	handlers *Handlers
}

var _ runtime.Runtime = (*Runtime)(nil)

// NewFactory returns a runtime factory resolving handlers from h.
func NewFactory(h *Handlers) runtime.Factory {
	return func(family *kind.Family, project string) (runtime.Runtime, error) {
		if h == nil {
			return nil, fmt.Errorf("native runtime requires a handler set")
		}
		base, err := runtime.NewBase(family, project)
		if err != nil {
			return nil, err
		}
		return &Runtime{Base: base, handlers: h}, nil
	}
}

// Run implements runtime.Runtime.
func (r *Runtime) Run(ctx context.Context, d *runtime.Descriptor) runtime.StatusUpdate {
	fn, err := r.handlers.Lookup(d.String("handler"))
	if err != nil {
		return runtime.Failure("%v", err)
	}

	if secs, ok := d.Int("timeout"); ok && secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx, Input{
		Project:    d.Project,
		RunID:      d.RunID,
		Inputs:     d.Map("inputs"),
		Parameters: d.Map("parameters"),
	})
	log.Debug(log.CatRuntime, "Native handler returned", "run", d.RunID, "handler", d.String("handler"), "duration", time.Since(start), "error", err)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return runtime.Failure("handler timed out")
	case errors.Is(err, context.Canceled):
		return runtime.StatusUpdate{State: string(entity.StateCancelled), Message: "handler cancelled"}
	case err != nil:
		return runtime.Failure("handler failed: %v", err)
	}

	u := runtime.StatusUpdate{
		State:   string(entity.StateCompleted),
		Message: out.Message,
		Results: out.Values,
	}
	if len(out.Outputs) > 0 {
		u.Outputs = make(map[string]any, len(out.Outputs))
		for name, key := range out.Outputs {
			u.Outputs[name] = key
		}
	}
	return u
}
