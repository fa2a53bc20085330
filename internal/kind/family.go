package kind

import (
	"fmt"
	"slices"
)

// ActionKind pairs an action name with the task kind that implements it.
type ActionKind struct {
	Action   string
	TaskKind Composite
}

// ActionFor returns the conventional pairing for a family: action maps to
// executable+action.
func ActionFor(executable, action string) ActionKind {
	return ActionKind{Action: action, TaskKind: Join(executable, action)}
}

// Family is the kind table of one execution family. It resolves an action
// to its task kind and exposes the single run kind of the family.
//
// A Family is immutable once built and safe for concurrent use.
type Family struct {
	executable Composite
	run        Composite
	actions    []ActionKind
}

// NewFamily validates and builds a family table. The executable kind must be
// a bare kind; the run kind and every task kind must share its base.
func NewFamily(executable, run string, actions ...ActionKind) (*Family, error) {
	exe, err := Parse(executable)
	if err != nil {
		return nil, fmt.Errorf("executable kind: %w", err)
	}
	if exe.IsComposite() {
		return nil, fmt.Errorf("%w: executable kind %q must not carry an action", ErrInvalidKind, executable)
	}

	runKind, err := Parse(run)
	if err != nil {
		return nil, fmt.Errorf("run kind: %w", err)
	}
	if runKind.Base() != exe.Base() {
		return nil, fmt.Errorf("%w: run kind %q is outside family %q", ErrInvalidKind, run, executable)
	}

	seen := make(map[string]bool, len(actions))
	table := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		if a.Action == "" {
			return nil, fmt.Errorf("%w: empty action in family %q", ErrInvalidKind, executable)
		}
		if seen[a.Action] {
			return nil, fmt.Errorf("%w: action %q declared twice in family %q", ErrInvalidKind, a.Action, executable)
		}
		seen[a.Action] = true

		taskKind, err := Parse(string(a.TaskKind))
		if err != nil {
			return nil, fmt.Errorf("task kind for action %q: %w", a.Action, err)
		}
		if taskKind.Base() != exe.Base() {
			return nil, fmt.Errorf("%w: task kind %q is outside family %q", ErrInvalidKind, taskKind, executable)
		}
		if !taskKind.IsComposite() || taskKind == runKind {
			return nil, fmt.Errorf("%w: task kind %q must be a composite kind distinct from the run kind", ErrInvalidKind, taskKind)
		}
		table = append(table, ActionKind{Action: a.Action, TaskKind: taskKind})
	}

	return &Family{executable: exe, run: runKind, actions: table}, nil
}

// MustFamily is NewFamily for package-level family tables. It panics on error.
func MustFamily(executable, run string, actions ...ActionKind) *Family {
	f, err := NewFamily(executable, run, actions...)
	if err != nil {
		panic(err)
	}
	return f
}

// ExecutableKind returns the kind of the Function or Workflow of the family.
func (f *Family) ExecutableKind() Composite {
	return f.executable
}

// RunKind returns the family's single run kind.
func (f *Family) RunKind() Composite {
	return f.run
}

// TaskKindFromAction resolves an action to its task kind.
func (f *Family) TaskKindFromAction(action string) (Composite, error) {
	for _, a := range f.actions {
		if a.Action == action {
			return a.TaskKind, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not an action of family %q", ErrUnknownAction, action, f.executable)
}

// Actions returns the declared action names in declaration order.
func (f *Family) Actions() []string {
	out := make([]string, len(f.actions))
	for i, a := range f.actions {
		out[i] = a.Action
	}
	return out
}

// ActionKinds returns a copy of the action table.
func (f *Family) ActionKinds() []ActionKind {
	return slices.Clone(f.actions)
}

// Kinds returns every kind of the family: executable, task kinds, run kind.
func (f *Family) Kinds() []Composite {
	out := make([]Composite, 0, len(f.actions)+2)
	out = append(out, f.executable)
	for _, a := range f.actions {
		out = append(out, a.TaskKind)
	}
	return append(out, f.run)
}
