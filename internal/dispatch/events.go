package dispatch

import (
	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/events"
)

// RunEvent describes a run lifecycle change.
type RunEvent struct {
	RunID   string
	Project string
	Kind    string
	Action  string
	From    entity.State
	To      entity.State
	Message string
}

func (d *Dispatcher) publish(t events.EventType, run *entity.Entity, action string, from entity.State) {
	if d.events == nil {
		return
	}
	d.events.Publish(t, RunEvent{
		RunID:   run.ID,
		Project: run.Project,
		Kind:    run.Kind,
		Action:  action,
		From:    from,
		To:      run.Status.State,
		Message: run.Status.Message,
	})
}
