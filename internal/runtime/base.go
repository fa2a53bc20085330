package runtime

import (
	"fmt"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
)

// Base carries what every bundled runtime shares: its family table and
// project. Families embed it and add Run.
type Base struct {
	Family  *kind.Family
	Project string
}

// NewBase validates the factory arguments.
func NewBase(family *kind.Family, project string) (Base, error) {
	if family == nil {
		return Base{}, fmt.Errorf("runtime requires a family table")
	}
	return Base{Family: family, Project: project}, nil
}

// AllowedActions returns the family's declared actions.
func (b Base) AllowedActions() []string {
	return b.Family.Actions()
}

// Build merges specs with run > task > function precedence and fills the
// descriptor identity from the run and task.
func (b Base) Build(function, task, run *entity.Entity) (*Descriptor, error) {
	if run == nil {
		return nil, fmt.Errorf("build requires a run")
	}
	d := &Descriptor{
		RunID:          run.ID,
		Project:        run.Project,
		Name:           run.Name,
		RunKind:        run.Kind,
		LocalExecution: run.Spec.Bool("local_execution"),
		Spec:           MergeEntities(function, task, run),
	}
	if task != nil {
		d.TaskKind = task.Kind
		d.Action = kind.Composite(task.Kind).Action()
	}
	return d, nil
}

// Results parses the status outputs.
func (b Base) Results(status entity.Status) (*Results, error) {
	return ResultsFromStatus(status)
}
