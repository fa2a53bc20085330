package kfp

import (
	"context"
	"strings"

	"github.com/zjrosen/kindhub/internal/entity"
)

// Submission is a pipeline run handed to the engine.
type Submission struct {
	RunID      string
	Project    string
	Name       string
	Action     string
	Experiment string
	Source     string
	Handler    string
	Image      string
	Schedule   string
	Parameters map[string]any
}

// RunState is what the engine reports about a submitted run.
type RunState struct {
	State   string
	Message string
	Outputs map[string]string
}

// Client talks to a pipeline engine.
type Client interface {
	// Submit starts a run and returns the engine's run id.
	Submit(ctx context.Context, s Submission) (string, error)

	// Get returns the current state of an engine run.
	Get(ctx context.Context, engineRunID string) (RunState, error)
}

// engineStates maps engine state names to run states. Unlisted names go
// through entity.ParseBackendState.
var engineStates = map[string]entity.State{
	"SUCCEEDED": entity.StateCompleted,
	"SUCCESS":   entity.StateCompleted,
	"FAILED":    entity.StateError,
	"FAILURE":   entity.StateError,
	"ERROR":     entity.StateError,
	"SKIPPED":   entity.StateCompleted,
	"CANCELED":  entity.StateCancelled,
	"CANCELING": entity.StateStop,
	"PAUSED":    entity.StateStop,
	"QUEUED":    entity.StatePending,
	"SCHEDULED": entity.StatePending,
}

// MapState converts an engine state name to a run state.
func MapState(engineState string) entity.State {
	if st, ok := engineStates[strings.ToUpper(strings.TrimSpace(engineState))]; ok {
		return st
	}
	return entity.ParseBackendState(engineState)
}
