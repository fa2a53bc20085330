// Package runtime defines the contract every execution family implements,
// together with the spec merge and result projection shared by them.
package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
)

// Runtime executes runs of one family. A Runtime may be cached and reused
// across runs of the same project, so implementations keep no per-run state.
type Runtime interface {
	// AllowedActions returns the verbs this runtime supports.
	AllowedActions() []string

	// Build merges the function, task and run specs into a run descriptor.
	Build(function, task, run *entity.Entity) (*Descriptor, error)

	// Run executes the descriptor. Failures are reported through the
	// returned update with state ERROR; Run never signals them otherwise.
	Run(ctx context.Context, d *Descriptor) StatusUpdate

	// Results projects a run status into a typed result view.
	Results(status entity.Status) (*Results, error)
}

// Factory constructs a runtime bound to a family table and project.
type Factory func(family *kind.Family, project string) (Runtime, error)

// RemoteOnly is implemented by runtimes that cannot execute in-process.
type RemoteOnly interface {
	RemoteOnly() bool
}

// IsRemoteOnly reports whether rt refuses local execution.
func IsRemoteOnly(rt Runtime) bool {
	r, ok := rt.(RemoteOnly)
	return ok && r.RemoteOnly()
}

// Allows reports whether action is one of rt's allowed actions.
func Allows(rt Runtime, action string) bool {
	return slices.Contains(rt.AllowedActions(), action)
}

// Descriptor is what Build hands to Run: the merged spec plus the identity
// of the run being executed.
type Descriptor struct {
	RunID          string
	Project        string
	Name           string
	RunKind        string
	TaskKind       string
	Action         string
	LocalExecution bool
	Spec           map[string]any
}

// StatusUpdate is a runtime's report about a run. State is kept as the raw
// string so that unknown values can be detected by the caller.
type StatusUpdate struct {
	State   string
	Message string
	Results map[string]any
	Outputs map[string]any
}

// Completed returns a COMPLETED update.
func Completed(message string) StatusUpdate {
	return StatusUpdate{State: string(entity.StateCompleted), Message: message}
}

// Failure returns an ERROR update with a formatted message.
func Failure(format string, args ...any) StatusUpdate {
	return StatusUpdate{State: string(entity.StateError), Message: fmt.Sprintf(format, args...)}
}
