// Package analytics derives funnel and workload reports from stored
// runs and executions. Everything here is read-only aggregation; no
// report mutates state.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"hireflow/internal/graph"
	"hireflow/internal/process"
	"hireflow/internal/store"
)

// NodeStat summarizes one node's funnel performance.
type NodeStat struct {
	NodeID         int64
	Title          string
	EnteredCount   int
	CompletedCount int
	AvgScore       *float64 // nil when no completed execution carried a score
	AvgTimeInNode  time.Duration
}

// ProcessReport is the funnel view of one process.
type ProcessReport struct {
	ProcessID           int64
	TotalCandidates     int
	CompletedCandidates int
	CompletionRate      float64 // 0 when no candidates
	NodeStats           []NodeStat
	BottleneckNodes     []int64
}

// Workload summarizes one recruiter's open load.
type Workload struct {
	RecruiterID       int64
	ActiveCandidates  int
	PendingExecutions int
	OverdueExecutions int
}

// Aggregator computes reports over a store.
type Aggregator struct {
	st    store.Store
	clock func() time.Time
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock injects a deterministic clock for overdue detection.
func WithClock(clock func() time.Time) Option {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// New wires an aggregator to a store.
func New(st store.Store, opts ...Option) *Aggregator {
	a := &Aggregator{st: st, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessReport builds the funnel report for one process: per node
// entry and completion counts, score and dwell averages, and the
// flagged bottlenecks.
func (a *Aggregator) ProcessReport(processID int64) (*ProcessReport, error) {
	p, err := a.st.GetProcess(processID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: process %d", process.ErrNotFound, processID)
	}
	runs, err := a.st.ListCandidateProcesses(processID)
	if err != nil {
		return nil, err
	}
	nodes, err := a.st.ListNodes(processID)
	if err != nil {
		return nil, err
	}
	execs, err := a.st.ListExecutionsByProcess(processID)
	if err != nil {
		return nil, err
	}

	rep := &ProcessReport{ProcessID: processID, TotalCandidates: len(runs)}
	for _, run := range runs {
		if run.Status == store.RunCompleted {
			rep.CompletedCandidates++
		}
	}
	if rep.TotalCandidates > 0 {
		rep.CompletionRate = float64(rep.CompletedCandidates) / float64(rep.TotalCandidates)
	}

	type acc struct {
		entered, completed, scored int
		scoreSum                   float64
		dwellSum                   time.Duration
		dwellN                     int
	}
	byNode := make(map[int64]*acc, len(nodes))
	for _, n := range nodes {
		byNode[n.ID] = &acc{}
	}
	for _, ex := range execs {
		c, ok := byNode[ex.NodeID]
		if !ok {
			continue // execution of a since-removed node
		}
		c.entered++
		if ex.Status != store.ExecCompleted {
			continue
		}
		c.completed++
		if ex.Score != nil {
			c.scored++
			c.scoreSum += *ex.Score
		}
		if d, ok := dwell(ex); ok {
			c.dwellSum += d
			c.dwellN++
		}
	}

	for _, n := range nodes {
		c := byNode[n.ID]
		stat := NodeStat{NodeID: n.ID, Title: n.Title, EnteredCount: c.entered, CompletedCount: c.completed}
		if c.scored > 0 {
			avg := c.scoreSum / float64(c.scored)
			stat.AvgScore = &avg
		}
		if c.dwellN > 0 {
			stat.AvgTimeInNode = c.dwellSum / time.Duration(c.dwellN)
		}
		rep.NodeStats = append(rep.NodeStats, stat)
	}
	rep.BottleneckNodes = bottlenecks(rep.NodeStats)
	return rep, nil
}

// dwell is the time an execution spent open, when both stamps parse.
func dwell(ex *store.NodeExecution) (time.Duration, bool) {
	if ex.StartedAt == "" || ex.CompletedAt == "" {
		return 0, false
	}
	start, err := time.Parse(time.RFC3339, ex.StartedAt)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, ex.CompletedAt)
	if err != nil {
		return 0, false
	}
	if end.Before(start) {
		return 0, false
	}
	return end.Sub(start), true
}

// bottlenecks flags the nodes in the bottom 20% by completion rate
// (at least one whenever any node with entries completes imperfectly)
// and every node whose average dwell exceeds twice the mean dwell.
func bottlenecks(stats []NodeStat) []int64 {
	type rated struct {
		id   int64
		rate float64
	}
	var byRate []rated
	var dwellSum time.Duration
	var dwellN int
	for _, s := range stats {
		if s.EnteredCount == 0 {
			continue
		}
		byRate = append(byRate, rated{s.NodeID, float64(s.CompletedCount) / float64(s.EnteredCount)})
		if s.AvgTimeInNode > 0 {
			dwellSum += s.AvgTimeInNode
			dwellN++
		}
	}
	flagged := make(map[int64]bool)

	sort.SliceStable(byRate, func(i, j int) bool { return byRate[i].rate < byRate[j].rate })
	k := len(byRate) / 5
	if k == 0 && len(byRate) > 0 && byRate[0].rate < 1 {
		k = 1
	}
	for _, r := range byRate[:k] {
		flagged[r.id] = true
	}

	if dwellN > 0 {
		mean := dwellSum / time.Duration(dwellN)
		for _, s := range stats {
			if s.AvgTimeInNode > 2*mean {
				flagged[s.NodeID] = true
			}
		}
	}

	// Report in node declaration order.
	var out []int64
	for _, s := range stats {
		if flagged[s.NodeID] {
			out = append(out, s.NodeID)
		}
	}
	return out
}

// RecruiterWorkload counts a recruiter's live runs, open executions in
// those runs, and the task executions past their due window.
func (a *Aggregator) RecruiterWorkload(recruiterID int64) (*Workload, error) {
	runs, err := a.st.ListCandidateProcessesByRecruiter(recruiterID)
	if err != nil {
		return nil, err
	}
	w := &Workload{RecruiterID: recruiterID}
	now := a.clock().UTC()
	nodeCache := make(map[int64]*graph.Node)
	for _, run := range runs {
		if run.Status.IsTerminal() {
			continue
		}
		w.ActiveCandidates++
		execs, err := a.st.ListExecutionsByRun(run.ID)
		if err != nil {
			return nil, err
		}
		for _, ex := range execs {
			if ex.Status != store.ExecPending && ex.Status != store.ExecInProgress {
				continue
			}
			w.PendingExecutions++
			if overdue, err := a.isOverdue(ex, now, nodeCache); err != nil {
				return nil, err
			} else if overdue {
				w.OverdueExecutions++
			}
		}
	}
	return w, nil
}

// isOverdue reports whether a task execution has outlived its node's
// due window.
func (a *Aggregator) isOverdue(ex *store.NodeExecution, now time.Time, cache map[int64]*graph.Node) (bool, error) {
	n, ok := cache[ex.NodeID]
	if !ok {
		var err error
		n, err = a.st.GetNode(ex.NodeID)
		if err != nil {
			return false, err
		}
		cache[ex.NodeID] = n
	}
	if n == nil || n.Type != graph.NodeTask || n.Config.DueInDays <= 0 || ex.StartedAt == "" {
		return false, nil
	}
	start, err := time.Parse(time.RFC3339, ex.StartedAt)
	if err != nil {
		return false, nil
	}
	return now.After(start.AddDate(0, 0, n.Config.DueInDays)), nil
}
