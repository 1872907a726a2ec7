package engine

import (
	"sort"

	"hireflow/internal/graph"
	"hireflow/internal/store"
)

// TimelineEvent is one entry in a run's derived history.
type TimelineEvent struct {
	At          string
	Kind        string // assigned, started, submitted, node_completed, node_cancelled, completed, failed, withdrawn
	NodeID      int64
	NodeTitle   string
	Result      graph.Result
	Score       *float64
	Feedback    string
	ExternalRef string
	Detail      string
}

// Timeline derives a run's ordered event history from its stored state.
// Nothing extra is persisted; the executions and the run's own stamps
// are the source of truth.
func (e *Engine) Timeline(runID int64) ([]TimelineEvent, error) {
	run, err := e.getRun(runID)
	if err != nil {
		return nil, err
	}
	execs, err := e.st.ListExecutionsByRun(runID)
	if err != nil {
		return nil, err
	}
	nodes, err := e.st.ListNodes(run.ProcessID)
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		titles[n.ID] = n.Title
	}

	events := []TimelineEvent{{At: run.AssignedAt, Kind: "assigned"}}
	if run.StartedAt != "" {
		events = append(events, TimelineEvent{At: run.StartedAt, Kind: "started"})
	}
	for _, ex := range execs {
		if ex.ReadyForReview && ex.ExternalRef != "" {
			at := ex.SubmittedAt
			if at == "" {
				at = ex.StartedAt
			}
			events = append(events, TimelineEvent{
				At: at, Kind: "submitted", NodeID: ex.NodeID,
				NodeTitle: titles[ex.NodeID], ExternalRef: ex.ExternalRef,
			})
		}
		switch ex.Status {
		case store.ExecCompleted:
			events = append(events, TimelineEvent{
				At: ex.CompletedAt, Kind: "node_completed", NodeID: ex.NodeID,
				NodeTitle: titles[ex.NodeID], Result: ex.Result,
				Score: ex.Score, Feedback: ex.Feedback,
			})
		case store.ExecCancelled:
			events = append(events, TimelineEvent{
				At: ex.CompletedAt, Kind: "node_cancelled", NodeID: ex.NodeID,
				NodeTitle: titles[ex.NodeID],
			})
		}
	}
	switch run.Status {
	case store.RunCompleted:
		events = append(events, TimelineEvent{
			At: run.CompletedAt, Kind: "completed",
			Detail: string(run.FinalResult), Score: run.OverallScore,
		})
	case store.RunFailed:
		events = append(events, TimelineEvent{At: run.FailedAt, Kind: "failed", Detail: run.StatusReason})
	case store.RunWithdrawn:
		events = append(events, TimelineEvent{At: run.WithdrawnAt, Kind: "withdrawn", Detail: run.StatusReason})
	}

	// RFC3339 UTC strings order lexicographically. Equal stamps keep
	// build order, which already runs assignment before completion.
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return events, nil
}
