// Package collab defines the narrow interfaces through which the
// workflow core talks to its external collaborators: interview
// scheduling, submission storage, and notification delivery. The host
// service provides real implementations; the core ships no-op and
// logging stand-ins.
package collab

import (
	"context"
	"fmt"

	"hireflow/internal/graph"
	"hireflow/internal/logging"
)

// EventKind tags a notification event.
type EventKind string

const (
	EventAssigned      EventKind = "assigned"
	EventNodeCompleted EventKind = "node_completed"
	EventTerminal      EventKind = "terminal"
)

// Event is the payload handed to the Notifier. Content rendering is the
// collaborator's concern; the core only names what happened.
type Event struct {
	Kind        EventKind
	CandidateID int64
	ProcessID   int64
	NodeID      int64
	Detail      string
}

// InterviewScheduler creates the human-facing interview record when an
// interview node becomes active. The core keeps only the reference id.
type InterviewScheduler interface {
	ScheduleInterview(ctx context.Context, candidateID int64, node *graph.Node) (ref string, err error)
}

// SubmissionStore persists task submission payloads. The core keeps
// only the reference.
type SubmissionStore interface {
	SavePayload(ctx context.Context, executionID int64, payload []byte) (ref string, err error)
}

// Notifier delivers assignment/completion/terminal notifications.
// Calls are fire-and-forget from the engine's point of view: a failed
// notification never rolls back a state transition.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Collaborators bundles the three interfaces. Nil fields behave as Noop.
type Collaborators struct {
	Scheduler   InterviewScheduler
	Submissions SubmissionStore
	Notifier    Notifier
}

// Noop implements all three interfaces with do-nothing stubs.
type Noop struct{}

func (Noop) ScheduleInterview(_ context.Context, candidateID int64, node *graph.Node) (string, error) {
	return fmt.Sprintf("interview-%d-%d", candidateID, node.ID), nil
}

func (Noop) SavePayload(_ context.Context, executionID int64, _ []byte) (string, error) {
	return fmt.Sprintf("submission-%d", executionID), nil
}

func (Noop) Notify(context.Context, Event) error { return nil }

// Normalize fills nil fields with Noop so the engine can call through
// without nil checks.
func (c Collaborators) Normalize() Collaborators {
	if c.Scheduler == nil {
		c.Scheduler = Noop{}
	}
	if c.Submissions == nil {
		c.Submissions = Noop{}
	}
	if c.Notifier == nil {
		c.Notifier = LogNotifier{}
	}
	return c
}

// LogNotifier logs events instead of delivering them. The default
// Notifier for the CLI, where no mail backend exists.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) error {
	logging.New("notify").Info("event",
		"kind", string(ev.Kind),
		"candidate_id", ev.CandidateID,
		"process_id", ev.ProcessID,
		"node_id", ev.NodeID,
		"detail", ev.Detail,
	)
	return nil
}
