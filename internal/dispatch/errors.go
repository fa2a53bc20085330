// Package dispatch runs tasks: it builds the run entity of a family, checks
// the execution mode and action against the runtime, drives the run through
// its lifecycle and captures every runtime failure into the run status.
package dispatch

import "errors"

// Dispatch errors
var (
	// ErrBackend reports an execution mode the runtime cannot serve, such as
	// local execution of a remote-only workflow.
	ErrBackend = errors.New("backend error")

	// ErrEntity reports a malformed cross-entity reference or an action the
	// runtime does not allow.
	ErrEntity = errors.New("entity error")
)
