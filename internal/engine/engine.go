// Package engine executes candidates through hiring process graphs:
// assignment, node-by-node advancement driven by completion results,
// explicit status overrides, and the derived timeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hireflow/internal/collab"
	"hireflow/internal/graph"
	"hireflow/internal/logging"
	"hireflow/internal/process"
	"hireflow/internal/store"
)

// ErrDuplicateAssignment is returned when a non-terminal run already
// exists for the (candidate, process) pair.
var ErrDuplicateAssignment = errors.New("candidate already has a live run in this process")

// ErrAlreadyCompleted is returned when completing a node execution twice.
var ErrAlreadyCompleted = errors.New("node execution already completed")

// ErrAlreadyTerminal is returned when mutating a run that has reached
// completed, failed, or withdrawn.
var ErrAlreadyTerminal = errors.New("candidate process is terminal")

// ErrWrongNodeType is returned by Submit on non-task nodes.
var ErrWrongNodeType = errors.New("operation not valid for this node type")

// ErrMissingFinalResult is returned when overriding a run to completed
// without a final result.
var ErrMissingFinalResult = errors.New("final result is required for completion")

// ErrRoutingDeadEnd is returned when a completed node has outgoing
// connections but none applies. Only reachable on graphs activated with
// force; the run stays in progress at the last completed node until
// manually resolved.
var ErrRoutingDeadEnd = errors.New("no outgoing connection applies")

// Engine drives candidate runs. External collaborators are invoked at
// specific transitions; authorization happens in the host before calls
// reach the engine.
type Engine struct {
	st     store.Store
	collab collab.Collaborators
	log    *slog.Logger
	clock  func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New wires an execution engine to a store and collaborator set.
func New(st store.Store, c collab.Collaborators, opts ...Option) *Engine {
	e := &Engine{
		st:     st,
		collab: c.Normalize(),
		log:    logging.New("engine"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() string {
	return e.clock().UTC().Format(time.RFC3339)
}

// Assign creates a run for a candidate in an active process, pinning
// the process version. With startImmediately the run also transitions
// to in_progress and the entry node execution is created.
func (e *Engine) Assign(ctx context.Context, candidateID, processID, recruiterID int64, startImmediately bool) (*store.CandidateProcess, error) {
	p, err := e.st.GetProcess(processID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: process %d", process.ErrNotFound, processID)
	}
	if p.Status != graph.ProcessActive {
		return nil, fmt.Errorf("%w: process %d is %s, not active", process.ErrConflict, processID, p.Status)
	}
	run := &store.CandidateProcess{
		CandidateID:    candidateID,
		ProcessID:      processID,
		ProcessVersion: p.Version,
		RecruiterID:    recruiterID,
		Status:         store.RunNotStarted,
		AssignedAt:     e.now(),
	}
	id, err := e.st.CreateCandidateProcess(run)
	if errors.Is(err, store.ErrLivePairExists) {
		return nil, fmt.Errorf("%w: candidate %d in process %d", ErrDuplicateAssignment, candidateID, processID)
	}
	if err != nil {
		return nil, err
	}
	run.ID = id

	e.notify(ctx, collab.Event{
		Kind: collab.EventAssigned, CandidateID: candidateID, ProcessID: processID,
		Detail: fmt.Sprintf("assigned to %s", p.Name),
	})

	if startImmediately {
		return e.Start(ctx, id)
	}
	return run, nil
}

// Start transitions a run from not_started to in_progress and opens
// the entry node execution. A node execution begins as soon as its node
// is the active one, so it is created in_progress directly.
func (e *Engine) Start(ctx context.Context, runID int64) (*store.CandidateProcess, error) {
	run, err := e.getRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Status != store.RunNotStarted {
		return nil, fmt.Errorf("%w: run %d is %s", process.ErrConflict, runID, run.Status)
	}
	p, err := e.st.GetProcess(run.ProcessID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: process %d", process.ErrNotFound, run.ProcessID)
	}
	if p.Status == graph.ProcessArchived {
		return nil, fmt.Errorf("%w: process %d is archived", process.ErrConflict, run.ProcessID)
	}
	g, err := process.LoadGraphAt(e.st, run.ProcessID, run.ProcessVersion)
	if err != nil {
		return nil, err
	}
	entry, ok := g.Entry()
	if !ok {
		return nil, fmt.Errorf("%w: process %d has no single entry node", ErrRoutingDeadEnd, run.ProcessID)
	}

	now := e.now()
	err = e.st.Tx(func(st store.Store) error {
		run.Status = store.RunInProgress
		run.StartedAt = now
		run.CurrentNodeID = entry.ID
		if err := st.UpdateCandidateProcess(run); err != nil {
			return err
		}
		_, err := st.CreateExecution(&store.NodeExecution{
			CandidateProcessID: runID,
			NodeID:             entry.ID,
			Status:             store.ExecInProgress,
			StartedAt:          now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.scheduleIfInterview(ctx, run, entry)
	e.log.Info("run started", "run_id", runID, "entry_node", entry.ID)
	return run, nil
}

// getRun loads a run or fails with process.ErrNotFound.
func (e *Engine) getRun(runID int64) (*store.CandidateProcess, error) {
	run, err := e.st.GetCandidateProcess(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: candidate process %d", process.ErrNotFound, runID)
	}
	return run, nil
}

// scheduleIfInterview asks the scheduling collaborator for an interview
// record when an interview node becomes active, and stores the
// reference on the open execution. Best effort: a scheduling failure is
// logged, never propagated.
func (e *Engine) scheduleIfInterview(ctx context.Context, run *store.CandidateProcess, n *graph.Node) {
	if n.Type != graph.NodeInterview {
		return
	}
	ref, err := e.collab.Scheduler.ScheduleInterview(ctx, run.CandidateID, n)
	if err != nil {
		e.log.Warn("interview scheduling failed", "run_id", run.ID, "node_id", n.ID, "err", err)
		return
	}
	execs, err := e.st.ListExecutionsByRun(run.ID)
	if err != nil {
		return
	}
	for i := len(execs) - 1; i >= 0; i-- {
		ex := execs[i]
		if ex.NodeID == n.ID && ex.Status == store.ExecInProgress {
			ex.ExternalRef = ref
			if err := e.st.UpdateExecution(ex); err != nil {
				e.log.Warn("storing interview ref failed", "execution_id", ex.ID, "err", err)
			}
			return
		}
	}
}

// notify delivers an event best-effort. Failures are logged and never
// fail the transition that produced them.
func (e *Engine) notify(ctx context.Context, ev collab.Event) {
	if err := e.collab.Notifier.Notify(ctx, ev); err != nil {
		e.log.Warn("notification failed", "kind", string(ev.Kind), "candidate_id", ev.CandidateID, "err", err)
	}
}
