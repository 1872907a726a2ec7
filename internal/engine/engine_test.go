package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"hireflow/internal/collab"
	"hireflow/internal/graph"
	"hireflow/internal/process"
	"hireflow/internal/store"
)

// recorder captures collaborator calls for assertions.
type recorder struct {
	scheduled []int64 // node ids
	saved     []int64 // execution ids
	events    []collab.Event
}

func (r *recorder) ScheduleInterview(_ context.Context, candidateID int64, n *graph.Node) (string, error) {
	r.scheduled = append(r.scheduled, n.ID)
	return fmt.Sprintf("cal-%d-%d", candidateID, n.ID), nil
}

func (r *recorder) SavePayload(_ context.Context, executionID int64, _ []byte) (string, error) {
	r.saved = append(r.saved, executionID)
	return fmt.Sprintf("blob-%d", executionID), nil
}

func (r *recorder) Notify(_ context.Context, ev collab.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func testClock() func() time.Time {
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

// fixture builds and activates a four stage pipeline:
//
//	screen (interview) --success--> takehome (task) --success--> offer (decision)
//	screen --conditional >=80------------------------^ (skips takehome? no: goes to onsite)
//
// Concretely: screen success -> takehome, screen conditional >=80 ->
// onsite, takehome default -> onsite, onsite success -> offer, with
// fail edges from screen and onsite to nothing (terminal on the run).
type fixture struct {
	st        store.Store
	mgr       *process.Manager
	eng       *Engine
	rec       *recorder
	processID int64
	screen    int64
	takehome  int64
	onsite    int64
	offer     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemStore()
	clock := testClock()
	mgr := process.NewManager(st, process.WithClock(clock))
	rec := &recorder{}
	eng := New(st, collab.Collaborators{Scheduler: rec, Submissions: rec, Notifier: rec}, WithClock(clock))

	pid, err := mgr.Create(&graph.Process{OrgID: 1, Name: "Backend Hiring", CreatedBy: 7})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	f := &fixture{st: st, mgr: mgr, eng: eng, rec: rec, processID: pid}

	addNode := func(typ graph.NodeType, title string, seq int, cfg graph.NodeConfig) int64 {
		id, err := mgr.AddNode(&graph.Node{ProcessID: pid, Type: typ, Title: title, Sequence: seq, Required: true, Config: cfg})
		if err != nil {
			t.Fatalf("add node %s: %v", title, err)
		}
		return id
	}
	f.screen = addNode(graph.NodeInterview, "Screen", 1, graph.NodeConfig{InterviewerIDs: []int64{11}, DurationMinutes: 30})
	f.takehome = addNode(graph.NodeTask, "Takehome", 2, graph.NodeConfig{DueInDays: 5, SubmissionKind: "repo"})
	f.onsite = addNode(graph.NodeInterview, "Onsite", 3, graph.NodeConfig{InterviewerIDs: []int64{11, 12}, DurationMinutes: 120})
	f.offer = addNode(graph.NodeDecision, "Offer", 4, graph.NodeConfig{DeciderIDs: []int64{99}})

	addConn := func(c graph.Connection) {
		if _, err := mgr.AddConnection(&c); err != nil {
			t.Fatalf("add connection %d->%d: %v", c.SourceID, c.TargetID, err)
		}
	}
	addConn(graph.Connection{ProcessID: pid, SourceID: f.screen, TargetID: f.onsite, Kind: graph.CondConditional, Threshold: 80})
	addConn(graph.Connection{ProcessID: pid, SourceID: f.screen, TargetID: f.takehome, Kind: graph.CondSuccess, Default: true})
	addConn(graph.Connection{ProcessID: pid, SourceID: f.takehome, TargetID: f.onsite, Kind: graph.CondSuccess, Default: true})
	addConn(graph.Connection{ProcessID: pid, SourceID: f.onsite, TargetID: f.offer, Kind: graph.CondSuccess, Default: true})

	if err := mgr.Activate(pid, false); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return f
}

// openExecution finds the single in_progress execution of a run.
func (f *fixture) openExecution(t *testing.T, runID int64) *store.NodeExecution {
	t.Helper()
	execs, err := f.st.ListExecutionsByRun(runID)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	for _, ex := range execs {
		if ex.Status == store.ExecInProgress {
			return ex
		}
	}
	t.Fatalf("run %d has no open execution", runID)
	return nil
}

func f64(v float64) *float64 { return &v }

func TestEngine_HighScoreSkipsTakehome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 100, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if run.Status != store.RunInProgress || run.CurrentNodeID != f.screen {
		t.Fatalf("after start: status=%s current=%d, want in_progress at screen", run.Status, run.CurrentNodeID)
	}
	if len(f.rec.scheduled) != 1 || f.rec.scheduled[0] != f.screen {
		t.Fatalf("scheduled = %v, want [screen]", f.rec.scheduled)
	}
	ex := f.openExecution(t, run.ID)
	if ex.ExternalRef == "" {
		t.Fatal("entry interview execution has no scheduling ref")
	}

	// 85 clears the >=80 conditional, so the run skips the takehome.
	run, err = f.eng.CompleteNode(ctx, ex.ID, graph.ResultPass, f64(85), "strong screen", `{"rubric":"v2"}`)
	if err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	if run.CurrentNodeID != f.onsite {
		t.Fatalf("current node = %d, want onsite %d", run.CurrentNodeID, f.onsite)
	}
	done, err := f.st.GetExecution(ex.ID)
	if err != nil {
		t.Fatalf("reload execution: %v", err)
	}
	if done.ExecutionData != `{"rubric":"v2"}` || done.Feedback != "strong screen" {
		t.Fatalf("completed execution = %+v, want reviewer data and feedback stored", done)
	}

	run, err = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(90), "", "")
	if err != nil {
		t.Fatalf("complete onsite: %v", err)
	}
	if run.CurrentNodeID != f.offer {
		t.Fatalf("current node = %d, want offer %d", run.CurrentNodeID, f.offer)
	}

	run, err = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, nil, "offer approved", "")
	if err != nil {
		t.Fatalf("complete offer: %v", err)
	}
	if run.Status != store.RunCompleted || run.FinalResult != store.FinalHired {
		t.Fatalf("run = %s/%s, want completed/hired", run.Status, run.FinalResult)
	}
	if run.OverallScore == nil || *run.OverallScore != 87.5 {
		t.Fatalf("overall score = %v, want 87.5", run.OverallScore)
	}
	if run.CurrentNodeID != 0 {
		t.Fatalf("terminal run still points at node %d", run.CurrentNodeID)
	}
}

func TestEngine_MediumScoreTakesDefaultEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 101, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	run, err = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(70), "", "")
	if err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	if run.CurrentNodeID != f.takehome {
		t.Fatalf("current node = %d, want takehome %d", run.CurrentNodeID, f.takehome)
	}
}

func TestEngine_FailAtTerminalNodeFailsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 102, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	run, _ = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(85), "", "")
	run, _ = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(60), "", "")
	run, err = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultFail, nil, "no offer", "")
	if err != nil {
		t.Fatalf("complete offer with fail: %v", err)
	}
	if run.Status != store.RunFailed {
		t.Fatalf("run status = %s, want failed", run.Status)
	}
	if run.FinalResult != "" {
		t.Fatalf("failed run carries final result %q", run.FinalResult)
	}
	if run.FailedAt == "" {
		t.Fatal("failed run has no failed_at stamp")
	}
}

func TestEngine_DuplicateAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.eng.Assign(ctx, 200, f.processID, 7, false); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := f.eng.Assign(ctx, 200, f.processID, 7, false)
	if !errors.Is(err, ErrDuplicateAssignment) {
		t.Fatalf("second assign err = %v, want ErrDuplicateAssignment", err)
	}
}

func TestEngine_ReassignAfterWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 201, f.processID, 7, false)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.eng.UpdateStatus(ctx, run.ID, store.RunWithdrawn, "", nil, "took another offer"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.eng.Assign(ctx, 201, f.processID, 7, false); err != nil {
		t.Fatalf("re-assign after withdrawal: %v", err)
	}
}

func TestEngine_AssignRequiresActiveProcess(t *testing.T) {
	st := store.NewMemStore()
	mgr := process.NewManager(st)
	eng := New(st, collab.Collaborators{})
	pid, err := mgr.Create(&graph.Process{OrgID: 1, Name: "Draft Only", CreatedBy: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = eng.Assign(context.Background(), 1, pid, 7, false)
	if !errors.Is(err, process.ErrConflict) {
		t.Fatalf("assign to draft err = %v, want ErrConflict", err)
	}
}

func TestEngine_BulkAssignPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// B already has a live run; the batch must report it and still
	// assign A and C.
	if _, err := f.eng.Assign(ctx, 301, f.processID, 7, false); err != nil {
		t.Fatalf("pre-assign B: %v", err)
	}
	outcomes := f.eng.BulkAssign(ctx, []int64{300, 301, 302}, f.processID, 7, false)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for i, want := range []struct {
		cid int64
		dup bool
	}{{300, false}, {301, true}, {302, false}} {
		out := outcomes[i]
		if out.CandidateID != want.cid {
			t.Fatalf("outcome[%d] candidate = %d, want %d", i, out.CandidateID, want.cid)
		}
		if want.dup {
			if !errors.Is(out.Err, ErrDuplicateAssignment) {
				t.Fatalf("outcome[%d] err = %v, want ErrDuplicateAssignment", i, out.Err)
			}
		} else if out.Err != nil || out.Run == nil {
			t.Fatalf("outcome[%d] = (%v, %v), want a run", i, out.Run, out.Err)
		}
	}
}

func TestEngine_StartTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 400, f.processID, 7, false)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.eng.Start(ctx, run.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.eng.Start(ctx, run.ID); !errors.Is(err, process.ErrConflict) {
		t.Fatalf("second start err = %v, want ErrConflict", err)
	}
}

func TestEngine_CompleteNodeTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 401, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	ex := f.openExecution(t, run.ID)
	if _, err := f.eng.CompleteNode(ctx, ex.ID, graph.ResultPass, f64(85), "", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.eng.CompleteNode(ctx, ex.ID, graph.ResultFail, nil, "", ""); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("re-complete err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestEngine_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 402, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	screenEx := f.openExecution(t, run.ID)
	if _, err := f.eng.Submit(ctx, screenEx.ID, []byte("cv")); !errors.Is(err, ErrWrongNodeType) {
		t.Fatalf("submit on interview err = %v, want ErrWrongNodeType", err)
	}

	// Route to the takehome with a mid score, then submit.
	if _, err := f.eng.CompleteNode(ctx, screenEx.ID, graph.ResultPass, f64(75), "", ""); err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	taskEx := f.openExecution(t, run.ID)
	got, err := f.eng.Submit(ctx, taskEx.ID, []byte("git@repo"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !got.ReadyForReview || got.ExternalRef == "" {
		t.Fatalf("submission not recorded: ready=%v ref=%q", got.ReadyForReview, got.ExternalRef)
	}
	if len(f.rec.saved) != 1 || f.rec.saved[0] != taskEx.ID {
		t.Fatalf("saved payloads = %v, want [%d]", f.rec.saved, taskEx.ID)
	}

	// Completed executions no longer accept submissions.
	if _, err := f.eng.CompleteNode(ctx, taskEx.ID, graph.ResultPass, f64(80), "", ""); err != nil {
		t.Fatalf("complete takehome: %v", err)
	}
	if _, err := f.eng.Submit(ctx, taskEx.ID, []byte("late")); !errors.Is(err, process.ErrConflict) {
		t.Fatalf("late submit err = %v, want ErrConflict", err)
	}
}

func TestEngine_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 403, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.eng.UpdateStatus(ctx, run.ID, store.RunCompleted, "", nil, ""); !errors.Is(err, ErrMissingFinalResult) {
		t.Fatalf("complete without final result err = %v, want ErrMissingFinalResult", err)
	}

	got, err := f.eng.UpdateStatus(ctx, run.ID, store.RunWithdrawn, "", nil, "candidate withdrew")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.Status != store.RunWithdrawn || got.WithdrawnAt == "" {
		t.Fatalf("run = %s (withdrawn_at %q), want withdrawn with stamp", got.Status, got.WithdrawnAt)
	}
	execs, err := f.st.ListExecutionsByRun(run.ID)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	for _, ex := range execs {
		if ex.Status == store.ExecInProgress || ex.Status == store.ExecPending {
			t.Fatalf("execution %d still open after withdrawal", ex.ID)
		}
	}

	// Terminal runs reject every further transition.
	if _, err := f.eng.UpdateStatus(ctx, run.ID, store.RunFailed, "", nil, ""); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("override terminal err = %v, want ErrAlreadyTerminal", err)
	}
	if _, err := f.eng.CompleteNode(ctx, execs[0].ID, graph.ResultPass, nil, "", ""); err == nil {
		t.Fatal("completing a cancelled execution succeeded")
	}
}

func TestEngine_RoutingDeadEnd(t *testing.T) {
	// A screen whose only edge demands >=90 routes nowhere on a 50.
	// Such graphs only activate under force.
	st := store.NewMemStore()
	clock := testClock()
	mgr := process.NewManager(st, process.WithClock(clock))
	eng := New(st, collab.Collaborators{}, WithClock(clock))
	ctx := context.Background()

	pid, err := mgr.Create(&graph.Process{OrgID: 1, Name: "Gappy", CreatedBy: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	screen, err := mgr.AddNode(&graph.Node{ProcessID: pid, Type: graph.NodeInterview, Title: "Screen", Sequence: 1})
	if err != nil {
		t.Fatalf("add screen: %v", err)
	}
	offer, err := mgr.AddNode(&graph.Node{ProcessID: pid, Type: graph.NodeDecision, Title: "Offer", Sequence: 2, Config: graph.NodeConfig{DeciderIDs: []int64{9}}})
	if err != nil {
		t.Fatalf("add offer: %v", err)
	}
	if _, err := mgr.AddConnection(&graph.Connection{ProcessID: pid, SourceID: screen, TargetID: offer, Kind: graph.CondConditional, Threshold: 90}); err != nil {
		t.Fatalf("add connection: %v", err)
	}
	if err := mgr.Activate(pid, true); err != nil {
		t.Fatalf("force activate: %v", err)
	}

	run, err := eng.Assign(ctx, 500, pid, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	execs, _ := st.ListExecutionsByRun(run.ID)
	_, err = eng.CompleteNode(ctx, execs[0].ID, graph.ResultPass, f64(50), "", "")
	if !errors.Is(err, ErrRoutingDeadEnd) {
		t.Fatalf("complete err = %v, want ErrRoutingDeadEnd", err)
	}

	// The completion stands and the run waits in progress.
	run, err = st.GetCandidateProcess(run.ID)
	if err != nil || run == nil {
		t.Fatalf("reload run: %v", err)
	}
	if run.Status != store.RunInProgress {
		t.Fatalf("run status = %s, want in_progress", run.Status)
	}
	ex, err := st.GetExecution(execs[0].ID)
	if err != nil {
		t.Fatalf("reload execution: %v", err)
	}
	if ex.Status != store.ExecCompleted {
		t.Fatalf("execution status = %s, want completed", ex.Status)
	}
}

func TestEngine_Timeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 600, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(75), "", ""); err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	taskEx := f.openExecution(t, run.ID)
	if _, err := f.eng.Submit(ctx, taskEx.ID, []byte("repo")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.eng.CompleteNode(ctx, taskEx.ID, graph.ResultPass, f64(88), "", ""); err != nil {
		t.Fatalf("complete takehome: %v", err)
	}
	if _, err := f.eng.UpdateStatus(ctx, run.ID, store.RunWithdrawn, "", nil, "relocating"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	events, err := f.eng.Timeline(run.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []string{"assigned", "started", "node_completed", "submitted", "node_completed", "node_cancelled", "withdrawn"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("timeline kinds mismatch (-want +got):\n%s", diff)
	}
	for _, ev := range events {
		if ev.At == "" {
			t.Fatalf("event %s has no timestamp", ev.Kind)
		}
	}

	// The submission is logged when it arrived, not when it was reviewed.
	var submittedAt, reviewedAt string
	for _, ev := range events {
		switch {
		case ev.Kind == "submitted":
			submittedAt = ev.At
		case ev.Kind == "node_completed" && ev.NodeID == f.takehome:
			reviewedAt = ev.At
		}
	}
	if submittedAt == "" || submittedAt >= reviewedAt {
		t.Fatalf("submitted at %q, reviewed at %q; submission must carry its own earlier stamp", submittedAt, reviewedAt)
	}
}

func TestEngine_NotificationsFire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 700, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	run, _ = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(95), "", "")
	run, _ = f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(90), "", "")
	if _, err := f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, nil, "", ""); err != nil {
		t.Fatalf("complete offer: %v", err)
	}

	var kinds []collab.EventKind
	for _, ev := range f.rec.events {
		kinds = append(kinds, ev.Kind)
	}
	want := []collab.EventKind{
		collab.EventAssigned,
		collab.EventNodeCompleted,
		collab.EventNodeCompleted,
		collab.EventNodeCompleted,
		collab.EventTerminal,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_PinnedVersionIgnoresLaterEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 800, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Graph grows while the candidate is mid screen: a new round with a
	// tighter conditional off the same node.
	extra, err := f.mgr.AddNode(&graph.Node{
		ProcessID: f.processID, Type: graph.NodeInterview, Title: "Extra Round", Sequence: 5,
		Config: graph.NodeConfig{InterviewerIDs: []int64{13}, DurationMinutes: 60},
	})
	if err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := f.mgr.AddConnection(&graph.Connection{
		ProcessID: f.processID, SourceID: f.screen, TargetID: extra,
		Kind: graph.CondConditional, Threshold: 85,
	}); err != nil {
		t.Fatalf("add connection: %v", err)
	}

	// 85 satisfies the new >=85 edge, but this run was assigned before
	// the edit and must keep routing over its own version of the graph.
	if _, err := f.eng.CompleteNode(ctx, f.openExecution(t, run.ID).ID, graph.ResultPass, f64(85), "", ""); err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	run, err = f.st.GetCandidateProcess(run.ID)
	if err != nil || run == nil {
		t.Fatalf("reload run: %v", err)
	}
	if run.CurrentNodeID != f.onsite {
		t.Fatalf("pinned run routed to node %d, want onsite %d", run.CurrentNodeID, f.onsite)
	}

	// A candidate assigned after the edit pins the new version and does
	// take the tighter edge.
	later, err := f.eng.Assign(ctx, 801, f.processID, 7, true)
	if err != nil {
		t.Fatalf("assign after edit: %v", err)
	}
	if _, err := f.eng.CompleteNode(ctx, f.openExecution(t, later.ID).ID, graph.ResultPass, f64(85), "", ""); err != nil {
		t.Fatalf("complete screen: %v", err)
	}
	later, err = f.st.GetCandidateProcess(later.ID)
	if err != nil || later == nil {
		t.Fatalf("reload run: %v", err)
	}
	if later.CurrentNodeID != extra {
		t.Fatalf("fresh run routed to node %d, want extra round %d", later.CurrentNodeID, extra)
	}
}

func TestEngine_StartAfterArchiveConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.eng.Assign(ctx, 900, f.processID, 7, false)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := f.mgr.Archive(f.processID, "role closed"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.eng.Start(ctx, run.ID); !errors.Is(err, process.ErrConflict) {
		t.Fatalf("start on archived process err = %v, want ErrConflict", err)
	}
}
