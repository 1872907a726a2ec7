package graph

// ProcessStatus is the lifecycle state of a process definition.
// Transitions are forward-only: draft -> active -> archived.
type ProcessStatus string

const (
	ProcessDraft    ProcessStatus = "draft"
	ProcessActive   ProcessStatus = "active"
	ProcessArchived ProcessStatus = "archived"
)

// Process is a named, versioned container for a hiring graph.
// Version is bumped on every structural edit; candidate runs pin the
// version they were assigned under.
type Process struct {
	ID            int64
	OrgID         int64
	Name          string
	Description   string
	Status        ProcessStatus
	Version       int
	Settings      map[string]string
	CreatedBy     int64
	CreatedAt     string
	UpdatedAt     string
	ActivatedAt   string
	ArchivedAt    string
	ArchiveReason string
}

// NodeType discriminates the three stage kinds.
type NodeType string

const (
	NodeInterview NodeType = "interview"
	NodeTask      NodeType = "task"
	NodeDecision  NodeType = "decision"
)

// NodeConfig carries the type-specific settings of a node. Only the
// fields matching the node's type are meaningful; the store serializes
// the whole struct as one JSON column.
type NodeConfig struct {
	// interview
	InterviewerIDs  []int64 `json:"interviewer_ids,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	// task
	DueInDays      int    `json:"due_in_days,omitempty"`
	SubmissionKind string `json:"submission_kind,omitempty"`
	// decision
	DeciderIDs []int64 `json:"decider_ids,omitempty"`
}

// Node is one stage in a process graph. Sequence is a layout hint only;
// execution order comes from connections. AddedInVersion records the
// process version the node first appeared in, so runs pinned to an
// earlier version never see it.
type Node struct {
	ID             int64
	ProcessID      int64
	Type           NodeType
	Title          string
	Sequence       int
	Required       bool
	Config         NodeConfig
	AddedInVersion int
}

// ConditionKind tags how a connection's condition is evaluated.
type ConditionKind string

const (
	CondSuccess     ConditionKind = "success"
	CondFail        ConditionKind = "fail"
	CondConditional ConditionKind = "conditional"
)

// Connection is a directed, conditioned edge between two nodes of the
// same process. Threshold is meaningful only for conditional edges;
// Default marks the lowest-priority fallback edge.
type Connection struct {
	ID             int64
	ProcessID      int64
	SourceID       int64
	TargetID       int64
	Kind           ConditionKind
	Threshold      float64
	Default        bool
	Label          string
	AddedInVersion int
}

// Result is the outcome of one node execution.
type Result string

const (
	ResultPass Result = "pass"
	ResultFail Result = "fail"
)
