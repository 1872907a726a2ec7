package store

import (
	"errors"
	"sort"
	"sync"

	"hireflow/internal/graph"
)

// MemStore implements Store with mutex-guarded maps. Used by tests and
// as a scratch backend; durability and transactional rollback are the
// SqlStore's job, MemStore only serializes individual calls.
type MemStore struct {
	mu sync.Mutex

	processes   map[int64]*graph.Process
	nextProcess int64

	viewers map[int64][]int64 // process id -> user ids

	nodes    map[int64]*graph.Node
	nextNode int64

	connections map[int64]*graph.Connection
	nextConn    int64

	runs    map[int64]*CandidateProcess
	nextRun int64

	executions map[int64]*NodeExecution
	nextExec   int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		processes:   make(map[int64]*graph.Process),
		viewers:     make(map[int64][]int64),
		nodes:       make(map[int64]*graph.Node),
		connections: make(map[int64]*graph.Connection),
		runs:        make(map[int64]*CandidateProcess),
		executions:  make(map[int64]*NodeExecution),
	}
}

// Tx runs fn against the store. MemStore has no rollback; callers get
// atomicity only in the sense that the CLI and tests are single-writer.
func (s *MemStore) Tx(fn func(Store) error) error {
	return fn(s)
}

// --- Process ---

func (s *MemStore) CreateProcess(p *graph.Process) (int64, error) {
	if p == nil {
		return 0, errors.New("process is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProcess++
	cp := *p
	cp.ID = s.nextProcess
	if cp.Status == "" {
		cp.Status = graph.ProcessDraft
	}
	if cp.Version == 0 {
		cp.Version = 1
	}
	if cp.CreatedAt == "" {
		cp.CreatedAt = nowUTC()
	}
	if cp.UpdatedAt == "" {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.processes[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemStore) GetProcess(id int64) (*graph.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) ListProcesses(orgID int64) ([]*graph.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*graph.Process
	for _, p := range s.processes {
		if p.OrgID == orgID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateProcess(p *graph.Process) error {
	if p == nil {
		return errors.New("process is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[p.ID]; !ok {
		return errors.New("process not found")
	}
	cp := *p
	cp.UpdatedAt = nowUTC()
	s.processes[p.ID] = &cp
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *MemStore) DeleteProcess(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processes, id)
	delete(s.viewers, id)
	for nid, n := range s.nodes {
		if n.ProcessID == id {
			delete(s.nodes, nid)
		}
	}
	for cid, c := range s.connections {
		if c.ProcessID == id {
			delete(s.connections, cid)
		}
	}
	for rid, r := range s.runs {
		if r.ProcessID == id {
			for eid, e := range s.executions {
				if e.CandidateProcessID == rid {
					delete(s.executions, eid)
				}
			}
			delete(s.runs, rid)
		}
	}
	return nil
}

// --- Viewers ---

func (s *MemStore) AddViewer(processID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.viewers[processID] {
		if id == userID {
			return nil
		}
	}
	s.viewers[processID] = append(s.viewers[processID], userID)
	return nil
}

func (s *MemStore) ListViewers(processID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]int64(nil), s.viewers[processID]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- Nodes ---

func (s *MemStore) CreateNode(n *graph.Node) (int64, error) {
	if n == nil {
		return 0, errors.New("node is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNode++
	cp := *n
	cp.ID = s.nextNode
	if cp.AddedInVersion == 0 {
		cp.AddedInVersion = 1
	}
	s.nodes[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemStore) GetNode(id int64) (*graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *MemStore) ListNodes(processID int64) ([]*graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*graph.Node
	for _, n := range s.nodes {
		if n.ProcessID == processID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) DeleteNode(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

// --- Connections ---

func (s *MemStore) CreateConnection(c *graph.Connection) (int64, error) {
	if c == nil {
		return 0, errors.New("connection is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConn++
	cp := *c
	cp.ID = s.nextConn
	if cp.AddedInVersion == 0 {
		cp.AddedInVersion = 1
	}
	s.connections[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemStore) ListConnections(processID int64) ([]*graph.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*graph.Connection
	for _, c := range s.connections {
		if c.ProcessID == processID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) DeleteConnectionsByNode(nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.connections {
		if c.SourceID == nodeID || c.TargetID == nodeID {
			delete(s.connections, id)
		}
	}
	return nil
}

func (s *MemStore) CountExecutionsByNode(nodeID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.executions {
		if e.NodeID == nodeID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DeleteExecutionsByNode(nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.executions {
		if e.NodeID == nodeID {
			delete(s.executions, id)
		}
	}
	return nil
}

// --- CandidateProcess ---

func (s *MemStore) CreateCandidateProcess(cp *CandidateProcess) (int64, error) {
	if cp == nil {
		return 0, errors.New("candidate process is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.CandidateID == cp.CandidateID && r.ProcessID == cp.ProcessID && !r.Status.IsTerminal() {
			return 0, ErrLivePairExists
		}
	}
	s.nextRun++
	c := *cp
	c.ID = s.nextRun
	if c.Status == "" {
		c.Status = RunNotStarted
	}
	if c.AssignedAt == "" {
		c.AssignedAt = nowUTC()
	}
	s.runs[c.ID] = &c
	return c.ID, nil
}

func (s *MemStore) GetCandidateProcess(id int64) (*CandidateProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (s *MemStore) listRuns(match func(*CandidateProcess) bool) []*CandidateProcess {
	var out []*CandidateProcess
	for _, r := range s.runs {
		if match(r) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) ListCandidateProcesses(processID int64) ([]*CandidateProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRuns(func(r *CandidateProcess) bool { return r.ProcessID == processID }), nil
}

func (s *MemStore) ListCandidateProcessesByRecruiter(recruiterID int64) ([]*CandidateProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRuns(func(r *CandidateProcess) bool { return r.RecruiterID == recruiterID }), nil
}

func (s *MemStore) LiveCandidateProcess(candidateID, processID int64) (*CandidateProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.CandidateID == candidateID && r.ProcessID == processID && !r.Status.IsTerminal() {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemStore) UpdateCandidateProcess(cp *CandidateProcess) error {
	if cp == nil {
		return errors.New("candidate process is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[cp.ID]; !ok {
		return errors.New("candidate process not found")
	}
	c := *cp
	s.runs[cp.ID] = &c
	return nil
}

func (s *MemStore) CountInProgressByProcess(processID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.runs {
		if r.ProcessID == processID && r.Status == RunInProgress {
			n++
		}
	}
	return n, nil
}

// --- NodeExecution ---

func (s *MemStore) CreateExecution(e *NodeExecution) (int64, error) {
	if e == nil {
		return 0, errors.New("execution is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExec++
	c := *e
	c.ID = s.nextExec
	if c.Status == "" {
		c.Status = ExecPending
	}
	s.executions[c.ID] = &c
	return c.ID, nil
}

func (s *MemStore) GetExecution(id int64) (*NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (s *MemStore) ListExecutionsByRun(candidateProcessID int64) ([]*NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*NodeExecution
	for _, e := range s.executions {
		if e.CandidateProcessID == candidateProcessID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListExecutionsByProcess(processID int64) ([]*NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*NodeExecution
	for _, e := range s.executions {
		run, ok := s.runs[e.CandidateProcessID]
		if ok && run.ProcessID == processID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateExecution(e *NodeExecution) error {
	if e == nil {
		return errors.New("execution is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[e.ID]; !ok {
		return errors.New("execution not found")
	}
	c := *e
	s.executions[e.ID] = &c
	return nil
}
