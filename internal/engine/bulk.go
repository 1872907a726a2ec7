package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"hireflow/internal/store"
)

// bulkAssignWorkers bounds concurrent assignments in a batch.
const bulkAssignWorkers = 4

// AssignOutcome is the per-candidate result of a bulk assignment.
type AssignOutcome struct {
	CandidateID int64
	Run         *store.CandidateProcess
	Err         error
}

// BulkAssign assigns many candidates to one process. Each assignment
// succeeds or fails on its own; one duplicate never sinks the batch.
// Outcomes come back in input order.
func (e *Engine) BulkAssign(ctx context.Context, candidateIDs []int64, processID, recruiterID int64, startImmediately bool) []AssignOutcome {
	outcomes := make([]AssignOutcome, len(candidateIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkAssignWorkers)
	for i, cid := range candidateIDs {
		g.Go(func() error {
			run, err := e.Assign(ctx, cid, processID, recruiterID, startImmediately)
			outcomes[i] = AssignOutcome{CandidateID: cid, Run: run, Err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return outcomes
}
