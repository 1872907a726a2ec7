package store

import (
	"errors"

	"hireflow/internal/graph"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Resolve against cwd; Open() creates the parent dir (e.g. .hireflow).
const DefaultDBPath = ".hireflow/hireflow.db"

// ErrLivePairExists is returned by CreateCandidateProcess when a
// non-terminal run already exists for the same (candidate, process)
// pair. The engine surfaces it as a duplicate assignment.
var ErrLivePairExists = errors.New("live candidate process already exists for this candidate and process")

// RunStatus is the lifecycle state of one candidate's run.
type RunStatus string

const (
	RunNotStarted RunStatus = "not_started"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunWithdrawn  RunStatus = "withdrawn"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunWithdrawn
}

// FinalResult is set only when a run completes.
type FinalResult string

const (
	FinalHired     FinalResult = "hired"
	FinalRejected  FinalResult = "rejected"
	FinalWithdrawn FinalResult = "withdrawn"
)

// ExecStatus is the lifecycle state of one node execution.
type ExecStatus string

const (
	ExecPending    ExecStatus = "pending"
	ExecInProgress ExecStatus = "in_progress"
	ExecCompleted  ExecStatus = "completed"
	ExecCancelled  ExecStatus = "cancelled"
)

// CandidateProcess is one candidate's run through one process. It pins
// the process version current at assignment time so later structural
// edits never change an in-flight run's interpretation.
type CandidateProcess struct {
	ID             int64
	CandidateID    int64
	ProcessID      int64
	ProcessVersion int
	RecruiterID    int64
	Status         RunStatus
	CurrentNodeID  int64 // 0 when no node is active
	OverallScore   *float64
	FinalResult    FinalResult
	StatusReason   string
	AssignedAt     string
	StartedAt      string
	CompletedAt    string
	FailedAt       string
	WithdrawnAt    string
}

// NodeExecution is one visit of a candidate to one node.
type NodeExecution struct {
	ID                 int64
	CandidateProcessID int64
	NodeID             int64
	Status             ExecStatus
	Result             graph.Result // empty until completed
	Score              *float64
	Feedback           string
	ExternalRef        string // interview record or submission payload reference
	ExecutionData      string // opaque reviewer-supplied JSON document
	ReadyForReview     bool
	StartedAt          string
	SubmittedAt        string // set when a task submission arrives
	CompletedAt        string
}

// Store is the persistence facade. Domain packages and the CLI use only
// this interface; the implementation is SQLite or in-memory.
type Store interface {
	// Processes
	CreateProcess(p *graph.Process) (int64, error)
	GetProcess(id int64) (*graph.Process, error)
	ListProcesses(orgID int64) ([]*graph.Process, error)
	UpdateProcess(p *graph.Process) error
	DeleteProcess(id int64) error

	// Viewer ACL entries (carried across clones)
	AddViewer(processID, userID int64) error
	ListViewers(processID int64) ([]int64, error)

	// Nodes and connections
	CreateNode(n *graph.Node) (int64, error)
	GetNode(id int64) (*graph.Node, error)
	ListNodes(processID int64) ([]*graph.Node, error)
	DeleteNode(id int64) error
	CreateConnection(c *graph.Connection) (int64, error)
	ListConnections(processID int64) ([]*graph.Connection, error)
	DeleteConnectionsByNode(nodeID int64) error
	CountExecutionsByNode(nodeID int64) (int, error)
	DeleteExecutionsByNode(nodeID int64) error

	// Candidate processes
	CreateCandidateProcess(cp *CandidateProcess) (int64, error)
	GetCandidateProcess(id int64) (*CandidateProcess, error)
	ListCandidateProcesses(processID int64) ([]*CandidateProcess, error)
	ListCandidateProcessesByRecruiter(recruiterID int64) ([]*CandidateProcess, error)
	LiveCandidateProcess(candidateID, processID int64) (*CandidateProcess, error)
	UpdateCandidateProcess(cp *CandidateProcess) error
	CountInProgressByProcess(processID int64) (int, error)

	// Node executions
	CreateExecution(e *NodeExecution) (int64, error)
	GetExecution(id int64) (*NodeExecution, error)
	ListExecutionsByRun(candidateProcessID int64) ([]*NodeExecution, error)
	ListExecutionsByProcess(processID int64) ([]*NodeExecution, error)
	UpdateExecution(e *NodeExecution) error

	// Tx runs fn atomically. The Store passed to fn must be used for
	// every access inside the closure.
	Tx(fn func(Store) error) error
}
