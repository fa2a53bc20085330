package entity

import (
	"fmt"
	"slices"
	"strings"
)

// State is the lifecycle state of a run or service-style executable.
//
//	CREATED -> PENDING -> RUNNING -> COMPLETED | ERROR | STOP | CANCELLED
//
// BUILT, READY and IDLE belong to long-running services. UNKNOWN is the
// fallback for backend states that do not map onto this enumeration.
type State string

const (
	StateCreated   State = "CREATED"
	StatePending   State = "PENDING"
	StateBuilt     State = "BUILT"
	StateRunning   State = "RUNNING"
	StateReady     State = "READY"
	StateIdle      State = "IDLE"
	StateCompleted State = "COMPLETED"
	StateError     State = "ERROR"
	StateStop      State = "STOP"
	StateCancelled State = "CANCELLED"
	StateDeleted   State = "DELETED"
	StateUnknown   State = "UNKNOWN"
)

// validTransitions defines the allowed state transitions.
// Terminal states only retire to DELETED. UNKNOWN may reconcile to anything.
var validTransitions = map[State]map[State]bool{
	StateCreated: {
		StatePending: true, StateBuilt: true, StateRunning: true, StateReady: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StatePending: {
		StateBuilt: true, StateRunning: true, StateReady: true, StateCompleted: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateBuilt: {
		StatePending: true, StateRunning: true, StateReady: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateRunning: {
		StateReady: true, StateIdle: true, StateCompleted: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateReady: {
		StateRunning: true, StateIdle: true, StateCompleted: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateIdle: {
		StateRunning: true, StateReady: true, StateCompleted: true,
		StateError: true, StateStop: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateStop: {
		StatePending: true, StateRunning: true, StateReady: true,
		StateError: true, StateCancelled: true, StateDeleted: true, StateUnknown: true,
	},
	StateUnknown: {
		StateCreated: true, StatePending: true, StateBuilt: true, StateRunning: true,
		StateReady: true, StateIdle: true, StateCompleted: true, StateError: true,
		StateStop: true, StateCancelled: true, StateDeleted: true,
	},
	StateCompleted: {StateDeleted: true},
	StateError:     {StateDeleted: true},
	StateCancelled: {StateDeleted: true},
	StateDeleted:   {},
}

var states = []State{
	StateCreated, StatePending, StateBuilt, StateRunning, StateReady, StateIdle,
	StateCompleted, StateError, StateStop, StateCancelled, StateDeleted, StateUnknown,
}

// States returns every member of the enumeration.
func States() []State {
	return slices.Clone(states)
}

// ParseState converts s into a State. Non-members fail with ErrInvalidState.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

// ParseBackendState maps a state reported by an external backend. Matching
// is case-insensitive; unmapped strings become UNKNOWN.
func ParseBackendState(s string) State {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return StateUnknown
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if this is a recognized State value.
func (s State) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal returns true for COMPLETED, ERROR, CANCELLED and DELETED.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled || s == StateDeleted
}

// CanTransitionTo reports whether moving to target is legal. Assigning the
// current state again is always legal.
func (s State) CanTransitionTo(target State) bool {
	if s == target {
		return s.IsValid()
	}
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	return allowed[target]
}

// ValidTargets returns the states reachable from s in enumeration order.
func (s State) ValidTargets() []State {
	allowed, ok := validTransitions[s]
	if !ok {
		return nil
	}
	targets := make([]State, 0, len(allowed))
	for _, st := range states {
		if allowed[st] {
			targets = append(targets, st)
		}
	}
	return targets
}
