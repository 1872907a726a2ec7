package store

import (
	"errors"
	"path/filepath"
	"testing"

	"hireflow/internal/graph"
)

// TestSqlStore_FullHierarchy walks the complete entity tree:
// Process -> Nodes + Connections -> CandidateProcess -> NodeExecutions,
// plus viewers.
func TestSqlStore_FullHierarchy(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "hire.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// --- Process ---
	procID, err := s.CreateProcess(&graph.Process{
		OrgID: 3, Name: "Backend engineer", Description: "Standard loop",
		Settings: map[string]string{"team": "platform"},
	})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	proc, err := s.GetProcess(procID)
	if err != nil || proc == nil {
		t.Fatalf("GetProcess: got %+v err %v", proc, err)
	}
	if proc.Status != graph.ProcessDraft || proc.Version != 1 || proc.Settings["team"] != "platform" {
		t.Fatalf("GetProcess defaults: %+v", proc)
	}
	procs, err := s.ListProcesses(3)
	if err != nil || len(procs) != 1 {
		t.Fatalf("ListProcesses: got %d err %v", len(procs), err)
	}

	// --- Viewers ---
	if err := s.AddViewer(procID, 7); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	if err := s.AddViewer(procID, 7); err != nil {
		t.Fatalf("AddViewer dup: %v", err)
	}
	viewers, err := s.ListViewers(procID)
	if err != nil || len(viewers) != 1 || viewers[0] != 7 {
		t.Fatalf("ListViewers: got %v err %v", viewers, err)
	}

	// --- Nodes ---
	screenID, err := s.CreateNode(&graph.Node{
		ProcessID: procID, Type: graph.NodeInterview, Title: "Phone screen", Sequence: 1, Required: true,
		Config: graph.NodeConfig{InterviewerIDs: []int64{11}, DurationMinutes: 30},
	})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	finalID, err := s.CreateNode(&graph.Node{
		ProcessID: procID, Type: graph.NodeDecision, Title: "Hiring decision", Sequence: 2,
		Config: graph.NodeConfig{DeciderIDs: []int64{42}},
	})
	if err != nil {
		t.Fatalf("CreateNode final: %v", err)
	}
	screen, err := s.GetNode(screenID)
	if err != nil || screen == nil || screen.Config.DurationMinutes != 30 || !screen.Required {
		t.Fatalf("GetNode: got %+v err %v", screen, err)
	}
	nodes, err := s.ListNodes(procID)
	if err != nil || len(nodes) != 2 || nodes[0].ID != screenID {
		t.Fatalf("ListNodes: got %d err %v", len(nodes), err)
	}

	// --- Connections ---
	if _, err := s.CreateConnection(&graph.Connection{
		ProcessID: procID, SourceID: screenID, TargetID: finalID, Kind: graph.CondSuccess, Label: "advance",
	}); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if _, err := s.CreateConnection(&graph.Connection{
		ProcessID: procID, SourceID: screenID, TargetID: finalID, Kind: graph.CondFail,
	}); err != nil {
		t.Fatalf("CreateConnection fail edge: %v", err)
	}
	conns, err := s.ListConnections(procID)
	if err != nil || len(conns) != 2 || conns[0].Label != "advance" {
		t.Fatalf("ListConnections: got %d err %v", len(conns), err)
	}

	// --- CandidateProcess ---
	runID, err := s.CreateCandidateProcess(&CandidateProcess{
		CandidateID: 100, ProcessID: procID, ProcessVersion: proc.Version, RecruiterID: 9,
	})
	if err != nil {
		t.Fatalf("CreateCandidateProcess: %v", err)
	}
	run, err := s.GetCandidateProcess(runID)
	if err != nil || run == nil || run.Status != RunNotStarted || run.AssignedAt == "" {
		t.Fatalf("GetCandidateProcess: got %+v err %v", run, err)
	}
	if run.OverallScore != nil {
		t.Fatalf("overall score should be null until completion, got %v", *run.OverallScore)
	}
	live, err := s.LiveCandidateProcess(100, procID)
	if err != nil || live == nil || live.ID != runID {
		t.Fatalf("LiveCandidateProcess: got %+v err %v", live, err)
	}

	// --- NodeExecution ---
	execID, err := s.CreateExecution(&NodeExecution{
		CandidateProcessID: runID, NodeID: screenID, Status: ExecInProgress, StartedAt: nowUTC(),
	})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	exec, err := s.GetExecution(execID)
	if err != nil || exec == nil || exec.Status != ExecInProgress || exec.Score != nil {
		t.Fatalf("GetExecution: got %+v err %v", exec, err)
	}
	score := 87.5
	exec.Status = ExecCompleted
	exec.Result = graph.ResultPass
	exec.Score = &score
	exec.Feedback = "strong systems answers"
	exec.CompletedAt = nowUTC()
	if err := s.UpdateExecution(exec); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}
	exec, err = s.GetExecution(execID)
	if err != nil || exec == nil || exec.Score == nil || *exec.Score != 87.5 || exec.Result != graph.ResultPass {
		t.Fatalf("GetExecution after update: got %+v err %v", exec, err)
	}
	execs, err := s.ListExecutionsByProcess(procID)
	if err != nil || len(execs) != 1 {
		t.Fatalf("ListExecutionsByProcess: got %d err %v", len(execs), err)
	}
	n, err := s.CountExecutionsByNode(screenID)
	if err != nil || n != 1 {
		t.Fatalf("CountExecutionsByNode: got %d err %v", n, err)
	}

	// --- Run update ---
	run.Status = RunCompleted
	run.FinalResult = FinalHired
	run.OverallScore = &score
	run.CompletedAt = nowUTC()
	if err := s.UpdateCandidateProcess(run); err != nil {
		t.Fatalf("UpdateCandidateProcess: %v", err)
	}
	run, err = s.GetCandidateProcess(runID)
	if err != nil || run == nil || run.FinalResult != FinalHired || run.OverallScore == nil {
		t.Fatalf("GetCandidateProcess after update: got %+v err %v", run, err)
	}
}

func TestSqlStore_LivePairConstraint(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "pair.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	procID, err := s.CreateProcess(&graph.Process{Name: "Loop"})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	first, err := s.CreateCandidateProcess(&CandidateProcess{CandidateID: 1, ProcessID: procID, ProcessVersion: 1})
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := s.CreateCandidateProcess(&CandidateProcess{CandidateID: 1, ProcessID: procID, ProcessVersion: 1}); !errors.Is(err, ErrLivePairExists) {
		t.Fatalf("duplicate live pair: got %v, want ErrLivePairExists", err)
	}

	// Terminate the first run; a fresh assignment is allowed again.
	run, err := s.GetCandidateProcess(first)
	if err != nil || run == nil {
		t.Fatalf("GetCandidateProcess: %v", err)
	}
	run.Status = RunWithdrawn
	run.WithdrawnAt = nowUTC()
	if err := s.UpdateCandidateProcess(run); err != nil {
		t.Fatalf("UpdateCandidateProcess: %v", err)
	}
	if _, err := s.CreateCandidateProcess(&CandidateProcess{CandidateID: 1, ProcessID: procID, ProcessVersion: 1}); err != nil {
		t.Fatalf("assign after terminal run: %v", err)
	}
}

func TestSqlStore_TxRollsBack(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tx.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	boom := errors.New("boom")
	err = s.Tx(func(st Store) error {
		if _, err := st.CreateProcess(&graph.Process{Name: "Doomed"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx: got %v, want boom", err)
	}
	procs, err := s.ListProcesses(0)
	if err != nil || len(procs) != 0 {
		t.Fatalf("rollback left %d processes (err %v)", len(procs), err)
	}
}

func TestSqlStore_DeleteProcessCascades(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cascade.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	procID, _ := s.CreateProcess(&graph.Process{Name: "Short-lived"})
	nodeID, _ := s.CreateNode(&graph.Node{ProcessID: procID, Type: graph.NodeTask, Title: "t"})
	runID, _ := s.CreateCandidateProcess(&CandidateProcess{CandidateID: 5, ProcessID: procID, ProcessVersion: 1})
	if _, err := s.CreateExecution(&NodeExecution{CandidateProcessID: runID, NodeID: nodeID}); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	if err := s.DeleteProcess(procID); err != nil {
		t.Fatalf("DeleteProcess: %v", err)
	}
	if p, _ := s.GetProcess(procID); p != nil {
		t.Fatal("process survived delete")
	}
	if nodes, _ := s.ListNodes(procID); len(nodes) != 0 {
		t.Fatal("nodes survived delete")
	}
	if runs, _ := s.ListCandidateProcesses(procID); len(runs) != 0 {
		t.Fatal("candidate processes survived delete")
	}
	if n, _ := s.CountExecutionsByNode(nodeID); n != 0 {
		t.Fatal("executions survived delete")
	}
}
