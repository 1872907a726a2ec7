package engine

import (
	"context"
	"fmt"

	"hireflow/internal/collab"
	"hireflow/internal/graph"
	"hireflow/internal/process"
	"hireflow/internal/store"
)

// Submit attaches a task submission payload to an open execution and
// marks it ready for review. Only task nodes accept submissions;
// completion stays a separate, explicit reviewer call.
func (e *Engine) Submit(ctx context.Context, executionID int64, payload []byte) (*store.NodeExecution, error) {
	ex, err := e.getExecution(executionID)
	if err != nil {
		return nil, err
	}
	n, err := e.st.GetNode(ex.NodeID)
	if err != nil {
		return nil, err
	}
	if n == nil || n.Type != graph.NodeTask {
		return nil, fmt.Errorf("%w: submit requires a task node", ErrWrongNodeType)
	}
	if ex.Status != store.ExecInProgress {
		return nil, fmt.Errorf("%w: execution %d is %s", process.ErrConflict, executionID, ex.Status)
	}
	ref, err := e.collab.Submissions.SavePayload(ctx, executionID, payload)
	if err != nil {
		return nil, fmt.Errorf("save submission payload: %w", err)
	}
	ex.ExternalRef = ref
	ex.ReadyForReview = true
	ex.SubmittedAt = e.now()
	if err := e.st.UpdateExecution(ex); err != nil {
		return nil, err
	}
	e.log.Info("submission received", "execution_id", executionID, "ref", ref)
	return ex, nil
}

// CompleteNode records a result on an open execution and advances the
// run: route to the next node, finish the run at a terminal node, or
// surface a routing dead end. Routing reads the graph at the run's
// pinned version, so later structural edits never redirect it.
// The completion and the advancement commit
// in one store transaction. data is an opaque reviewer document (scorecard,
// notes) stored on the execution as given.
func (e *Engine) CompleteNode(ctx context.Context, executionID int64, result graph.Result, score *float64, feedback, data string) (*store.CandidateProcess, error) {
	ex, err := e.getExecution(executionID)
	if err != nil {
		return nil, err
	}
	if ex.Status == store.ExecCompleted {
		return nil, fmt.Errorf("%w: execution %d", ErrAlreadyCompleted, executionID)
	}
	if ex.Status == store.ExecCancelled {
		return nil, fmt.Errorf("%w: execution %d is cancelled", process.ErrConflict, executionID)
	}
	run, err := e.getRun(ex.CandidateProcessID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: run %d is %s", ErrAlreadyTerminal, run.ID, run.Status)
	}
	g, err := process.LoadGraphAt(e.st, run.ProcessID, run.ProcessVersion)
	if err != nil {
		return nil, err
	}
	node, ok := g.NodeByID(ex.NodeID)
	if !ok {
		return nil, fmt.Errorf("%w: node %d", process.ErrNotFound, ex.NodeID)
	}

	now := e.now()
	ex.Status = store.ExecCompleted
	ex.Result = result
	ex.Score = score
	ex.Feedback = feedback
	ex.ExecutionData = data
	ex.CompletedAt = now

	out := g.Outgoing(node.ID)
	var next *graph.Node
	deadEnd := false
	switch {
	case len(out) == 0:
		// terminal node, handled below
	default:
		var scoreVal float64
		if score != nil {
			scoreVal = *score
		}
		conn, found := graph.Route(out, result, scoreVal)
		if !found {
			deadEnd = true
			break
		}
		next, _ = g.NodeByID(conn.TargetID)
	}

	err = e.st.Tx(func(st store.Store) error {
		if err := st.UpdateExecution(ex); err != nil {
			return err
		}
		switch {
		case next != nil:
			run.CurrentNodeID = next.ID
			if err := st.UpdateCandidateProcess(run); err != nil {
				return err
			}
			_, err := st.CreateExecution(&store.NodeExecution{
				CandidateProcessID: run.ID,
				NodeID:             next.ID,
				Status:             store.ExecInProgress,
				StartedAt:          now,
			})
			return err
		case deadEnd:
			// The completion itself stands; the run waits at the last
			// completed node until a recruiter resolves it.
			return nil
		default:
			return e.finishRun(st, run, result, now)
		}
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, collab.Event{
		Kind: collab.EventNodeCompleted, CandidateID: run.CandidateID,
		ProcessID: run.ProcessID, NodeID: node.ID,
		Detail: fmt.Sprintf("%s: %s", node.Title, result),
	})
	switch {
	case deadEnd:
		return nil, fmt.Errorf("%w: node %d result %s", ErrRoutingDeadEnd, node.ID, result)
	case next != nil:
		e.scheduleIfInterview(ctx, run, next)
	default:
		e.notify(ctx, collab.Event{
			Kind: collab.EventTerminal, CandidateID: run.CandidateID,
			ProcessID: run.ProcessID, Detail: string(run.Status),
		})
	}
	return run, nil
}

// finishRun resolves a run at a terminal node. A passing result
// completes the run with a hired outcome; a failing result with no
// recovery edge fails it. The overall score is the mean over scored,
// completed executions.
func (e *Engine) finishRun(st store.Store, run *store.CandidateProcess, result graph.Result, now string) error {
	if result == graph.ResultPass {
		run.Status = store.RunCompleted
		run.FinalResult = store.FinalHired
		run.CompletedAt = now
	} else {
		run.Status = store.RunFailed
		run.FailedAt = now
		run.StatusReason = "failed at terminal node"
	}
	avg, err := meanScore(st, run.ID)
	if err != nil {
		return err
	}
	run.OverallScore = avg
	run.CurrentNodeID = 0
	return st.UpdateCandidateProcess(run)
}

// meanScore averages the scores of completed executions, nil when none
// carry a score.
func meanScore(st store.Store, runID int64) (*float64, error) {
	execs, err := st.ListExecutionsByRun(runID)
	if err != nil {
		return nil, err
	}
	var sum float64
	var n int
	for _, ex := range execs {
		if ex.Status == store.ExecCompleted && ex.Score != nil {
			sum += *ex.Score
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

// UpdateStatus overrides a run's status to completed, failed, or
// withdrawn. Completion requires a final result; terminal runs reject
// further transitions; withdrawal cancels any open executions.
func (e *Engine) UpdateStatus(ctx context.Context, runID int64, status store.RunStatus, finalResult store.FinalResult, overallScore *float64, reason string) (*store.CandidateProcess, error) {
	run, err := e.getRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: run %d is %s", ErrAlreadyTerminal, runID, run.Status)
	}
	now := e.now()
	switch status {
	case store.RunCompleted:
		if finalResult == "" {
			return nil, fmt.Errorf("%w: run %d", ErrMissingFinalResult, runID)
		}
		run.FinalResult = finalResult
		run.CompletedAt = now
	case store.RunFailed:
		run.FailedAt = now
	case store.RunWithdrawn:
		run.WithdrawnAt = now
	default:
		return nil, fmt.Errorf("%w: cannot override run to %s", process.ErrConflict, status)
	}
	run.Status = status
	run.StatusReason = reason
	if overallScore != nil {
		run.OverallScore = overallScore
	}

	err = e.st.Tx(func(st store.Store) error {
		execs, err := st.ListExecutionsByRun(runID)
		if err != nil {
			return err
		}
		for _, ex := range execs {
			if ex.Status == store.ExecPending || ex.Status == store.ExecInProgress {
				ex.Status = store.ExecCancelled
				ex.CompletedAt = now
				if err := st.UpdateExecution(ex); err != nil {
					return err
				}
			}
		}
		run.CurrentNodeID = 0
		return st.UpdateCandidateProcess(run)
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, collab.Event{
		Kind: collab.EventTerminal, CandidateID: run.CandidateID,
		ProcessID: run.ProcessID, Detail: string(status),
	})
	e.log.Info("run status overridden", "run_id", runID, "status", string(status), "reason", reason)
	return run, nil
}

// getExecution loads an execution or fails with process.ErrNotFound.
func (e *Engine) getExecution(id int64) (*store.NodeExecution, error) {
	ex, err := e.st.GetExecution(id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: node execution %d", process.ErrNotFound, id)
	}
	return ex, nil
}
