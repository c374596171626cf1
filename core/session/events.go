package session

import "github.com/kilianp07/chargetrack/core/model"

// EventKind identifies a session lifecycle transition.
type EventKind string

const (
	// EventStarted is published when a new session enters tracking.
	EventStarted EventKind = "started"
	// EventCompleted is published exactly once per finalized,
	// non-discarded session.
	EventCompleted EventKind = "completed"
)

// Event carries a session lifecycle transition. The embedded session is a
// copy; consumers may retain it.
type Event struct {
	Kind    EventKind
	Session model.Session
}
