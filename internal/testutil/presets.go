package testutil

import (
	"time"

	"github.com/zjrosen/kindhub/internal/entity"
)

// Fixed ids of the standard dataset.
const (
	TrainFunctionID = "0b6c3e59-6f0a-4a55-9d52-8d1c2b7f3e01"
	TrainTaskID     = "1c7d4f6a-7a1b-4b66-8e63-9e2d3c8a4f02"
	CompletedRunID  = "2d8e5a7b-8b2c-4c77-9f74-af3e4d9b5a03"
	FailedRunID     = "3e9f6b8c-9c3d-4d88-8a85-b04f5eac6b04"
	RunningRunID    = "4fa07c9d-ad4e-4e99-9b96-c15a6fbd7c05"
)

// WithStandardTestData adds a container function with its job task and
// three runs in COMPLETED, ERROR and RUNNING state.
func (b *Builder) WithStandardTestData() *Builder {
	lastWeek := seedTime.Add(-7 * 24 * time.Hour)
	yesterday := seedTime.Add(-24 * time.Hour)
	fnRef := entity.ExecutableRef("container", DefaultProject, "train", TrainFunctionID)
	taskRef := entity.ExecutableRef("container+job", DefaultProject, "train", TrainFunctionID)

	return b.
		WithProject(DefaultProject).
		WithFunction("container", "train",
			ID(TrainFunctionID), Labels("ml"), CreatedAt(lastWeek),
			Spec(map[string]any{"image": "python:3.12", "command": "python"})).
		WithTask("container+job", "train",
			ID(TrainTaskID), CreatedAt(lastWeek),
			Spec(map[string]any{"function": fnRef})).
		WithRun("container+run", "train",
			ID(CompletedRunID), State(entity.StateCompleted), Message("exit code 0"),
			CreatedAt(lastWeek), UpdatedAt(yesterday),
			Spec(map[string]any{"task": taskRef, "local_execution": true})).
		WithRun("container+run", "train",
			ID(FailedRunID), State(entity.StateError), Message("exit code 1"),
			CreatedAt(yesterday),
			Spec(map[string]any{"task": taskRef, "local_execution": true})).
		WithRun("container+run", "train",
			ID(RunningRunID), State(entity.StateRunning),
			Spec(map[string]any{"task": taskRef, "local_execution": false}))
}
