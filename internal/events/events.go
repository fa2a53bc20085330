// Package events is the in-process publish/subscribe used for log streaming
// and run lifecycle notifications.
package events

import (
	"context"
	"time"
)

// EventType names what happened.
type EventType string

const (
	// EventLog carries a formatted log line.
	EventLog EventType = "log"
	// EventRunCreated is published when a run entity has been built.
	EventRunCreated EventType = "run.created"
	// EventRunTransitioned is published for every run state change.
	EventRunTransitioned EventType = "run.transitioned"
	// EventRunFinished is published once a run reaches a terminal state.
	EventRunFinished EventType = "run.finished"
)

// Event is a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher publishes events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
