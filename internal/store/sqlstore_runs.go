package store

import (
	"database/sql"
	"errors"
	"fmt"

	"hireflow/internal/graph"
)

// --- CandidateProcess ---

func (s *SqlStore) CreateCandidateProcess(cp *CandidateProcess) (int64, error) {
	if cp == nil {
		return 0, errors.New("candidate process is nil")
	}
	if cp.Status == "" {
		cp.Status = RunNotStarted
	}
	if cp.AssignedAt == "" {
		cp.AssignedAt = nowUTC()
	}
	res, err := s.q.Exec(
		`INSERT INTO candidate_processes(candidate_id, process_id, process_version, recruiter_id, status,
		 current_node_id, overall_score, final_result, status_reason, assigned_at, started_at, completed_at, failed_at, withdrawn_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.CandidateID, cp.ProcessID, cp.ProcessVersion, cp.RecruiterID, string(cp.Status),
		nilIfZero(cp.CurrentNodeID), floatPtrArg(cp.OverallScore), nilIfEmpty(string(cp.FinalResult)), cp.StatusReason,
		cp.AssignedAt, nilIfEmpty(cp.StartedAt), nilIfEmpty(cp.CompletedAt), nilIfEmpty(cp.FailedAt), nilIfEmpty(cp.WithdrawnAt),
	)
	if isUniqueViolation(err) {
		return 0, ErrLivePairExists
	}
	if err != nil {
		return 0, fmt.Errorf("insert candidate process: %w", err)
	}
	return res.LastInsertId()
}

// nilIfZero converts a zero id to nil for nullable FK columns.
func nilIfZero(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

const cpCols = `id, candidate_id, process_id, process_version, recruiter_id, status, current_node_id,
	overall_score, final_result, status_reason, assigned_at, started_at, completed_at, failed_at, withdrawn_at`

func scanCandidateProcess(row interface{ Scan(...any) error }) (*CandidateProcess, error) {
	var cp CandidateProcess
	var status string
	var currentNode sql.NullInt64
	var score sql.NullFloat64
	var finalResult, startedAt, completedAt, failedAt, withdrawnAt sql.NullString
	err := row.Scan(&cp.ID, &cp.CandidateID, &cp.ProcessID, &cp.ProcessVersion, &cp.RecruiterID, &status,
		&currentNode, &score, &finalResult, &cp.StatusReason, &cp.AssignedAt,
		&startedAt, &completedAt, &failedAt, &withdrawnAt)
	if err != nil {
		return nil, err
	}
	cp.Status = RunStatus(status)
	cp.CurrentNodeID = currentNode.Int64
	cp.OverallScore = nullFloatPtr(score)
	cp.FinalResult = FinalResult(nullStr(finalResult))
	cp.StartedAt = nullStr(startedAt)
	cp.CompletedAt = nullStr(completedAt)
	cp.FailedAt = nullStr(failedAt)
	cp.WithdrawnAt = nullStr(withdrawnAt)
	return &cp, nil
}

func (s *SqlStore) GetCandidateProcess(id int64) (*CandidateProcess, error) {
	cp, err := scanCandidateProcess(s.q.QueryRow(`SELECT `+cpCols+` FROM candidate_processes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate process: %w", err)
	}
	return cp, nil
}

func (s *SqlStore) listCandidateProcesses(where string, arg int64) ([]*CandidateProcess, error) {
	rows, err := s.q.Query(`SELECT `+cpCols+` FROM candidate_processes WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list candidate processes: %w", err)
	}
	defer rows.Close()
	var out []*CandidateProcess
	for rows.Next() {
		cp, err := scanCandidateProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate process: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SqlStore) ListCandidateProcesses(processID int64) ([]*CandidateProcess, error) {
	return s.listCandidateProcesses(`process_id = ?`, processID)
}

func (s *SqlStore) ListCandidateProcessesByRecruiter(recruiterID int64) ([]*CandidateProcess, error) {
	return s.listCandidateProcesses(`recruiter_id = ?`, recruiterID)
}

// LiveCandidateProcess returns the non-terminal run for a (candidate,
// process) pair, or nil when every run for the pair is terminal.
func (s *SqlStore) LiveCandidateProcess(candidateID, processID int64) (*CandidateProcess, error) {
	cp, err := scanCandidateProcess(s.q.QueryRow(
		`SELECT `+cpCols+` FROM candidate_processes
		 WHERE candidate_id = ? AND process_id = ? AND status NOT IN ('completed', 'failed', 'withdrawn')`,
		candidateID, processID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("live candidate process: %w", err)
	}
	return cp, nil
}

func (s *SqlStore) UpdateCandidateProcess(cp *CandidateProcess) error {
	if cp == nil {
		return errors.New("candidate process is nil")
	}
	res, err := s.q.Exec(
		`UPDATE candidate_processes SET status = ?, current_node_id = ?, overall_score = ?, final_result = ?,
		 status_reason = ?, started_at = ?, completed_at = ?, failed_at = ?, withdrawn_at = ? WHERE id = ?`,
		string(cp.Status), nilIfZero(cp.CurrentNodeID), floatPtrArg(cp.OverallScore), nilIfEmpty(string(cp.FinalResult)),
		cp.StatusReason, nilIfEmpty(cp.StartedAt), nilIfEmpty(cp.CompletedAt), nilIfEmpty(cp.FailedAt), nilIfEmpty(cp.WithdrawnAt), cp.ID,
	)
	if err != nil {
		return fmt.Errorf("update candidate process: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.New("candidate process not found")
	}
	return nil
}

func (s *SqlStore) CountInProgressByProcess(processID int64) (int, error) {
	var n int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM candidate_processes WHERE process_id = ? AND status = ?`,
		processID, string(RunInProgress)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in-progress: %w", err)
	}
	return n, nil
}

// --- NodeExecution ---

func (s *SqlStore) CreateExecution(e *NodeExecution) (int64, error) {
	if e == nil {
		return 0, errors.New("execution is nil")
	}
	if e.Status == "" {
		e.Status = ExecPending
	}
	res, err := s.q.Exec(
		`INSERT INTO node_executions(candidate_process_id, node_id, status, result, score, feedback,
		 external_ref, execution_data, ready_for_review, started_at, submitted_at, completed_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CandidateProcessID, e.NodeID, string(e.Status), string(e.Result), floatPtrArg(e.Score),
		e.Feedback, e.ExternalRef, e.ExecutionData, e.ReadyForReview, nilIfEmpty(e.StartedAt), nilIfEmpty(e.SubmittedAt), nilIfEmpty(e.CompletedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}
	return res.LastInsertId()
}

const execCols = `id, candidate_process_id, node_id, status, result, score, feedback, external_ref, execution_data, ready_for_review, started_at, submitted_at, completed_at`

func scanExecution(row interface{ Scan(...any) error }) (*NodeExecution, error) {
	var e NodeExecution
	var status, result string
	var score sql.NullFloat64
	var startedAt, submittedAt, completedAt sql.NullString
	err := row.Scan(&e.ID, &e.CandidateProcessID, &e.NodeID, &status, &result, &score,
		&e.Feedback, &e.ExternalRef, &e.ExecutionData, &e.ReadyForReview, &startedAt, &submittedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	e.Status = ExecStatus(status)
	e.Result = graph.Result(result)
	e.Score = nullFloatPtr(score)
	e.StartedAt = nullStr(startedAt)
	e.SubmittedAt = nullStr(submittedAt)
	e.CompletedAt = nullStr(completedAt)
	return &e, nil
}

func (s *SqlStore) GetExecution(id int64) (*NodeExecution, error) {
	e, err := scanExecution(s.q.QueryRow(`SELECT `+execCols+` FROM node_executions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

func (s *SqlStore) ListExecutionsByRun(candidateProcessID int64) ([]*NodeExecution, error) {
	return s.listExecutions(`candidate_process_id = ?`, candidateProcessID)
}

// ListExecutionsByProcess returns every execution across all runs of a
// process, for the analytics read side.
func (s *SqlStore) ListExecutionsByProcess(processID int64) ([]*NodeExecution, error) {
	rows, err := s.q.Query(
		`SELECT e.id, e.candidate_process_id, e.node_id, e.status, e.result, e.score, e.feedback,
		        e.external_ref, e.execution_data, e.ready_for_review, e.started_at, e.submitted_at, e.completed_at
		 FROM node_executions e
		 JOIN candidate_processes cp ON cp.id = e.candidate_process_id
		 WHERE cp.process_id = ? ORDER BY e.id`, processID)
	if err != nil {
		return nil, fmt.Errorf("list executions by process: %w", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

func (s *SqlStore) listExecutions(where string, arg int64) ([]*NodeExecution, error) {
	rows, err := s.q.Query(`SELECT `+execCols+` FROM node_executions WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

func collectExecutions(rows *sql.Rows) ([]*NodeExecution, error) {
	var out []*NodeExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SqlStore) UpdateExecution(e *NodeExecution) error {
	if e == nil {
		return errors.New("execution is nil")
	}
	res, err := s.q.Exec(
		`UPDATE node_executions SET status = ?, result = ?, score = ?, feedback = ?, external_ref = ?,
		 execution_data = ?, ready_for_review = ?, started_at = ?, submitted_at = ?, completed_at = ? WHERE id = ?`,
		string(e.Status), string(e.Result), floatPtrArg(e.Score), e.Feedback, e.ExternalRef,
		e.ExecutionData, e.ReadyForReview, nilIfEmpty(e.StartedAt), nilIfEmpty(e.SubmittedAt), nilIfEmpty(e.CompletedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.New("execution not found")
	}
	return nil
}
