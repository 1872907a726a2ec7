// Package process governs the lifecycle of hiring process definitions:
// draft -> active -> archived, forward-only, with validation gating
// activation and guard rails around edits once candidates are live.
package process

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hireflow/internal/graph"
	"hireflow/internal/logging"
	"hireflow/internal/store"
)

// ErrValidationFailed is returned by Activate when the graph is invalid
// and the caller did not force.
var ErrValidationFailed = errors.New("process graph validation failed")

// ErrConflict is returned on illegal lifecycle transitions or guarded
// edits (activating twice, archiving with live candidates, deleting a
// non-draft process, unforced metadata edits on an active process).
var ErrConflict = errors.New("conflicting process state")

// ErrNodeInUse is returned when removing a node that has node
// executions, pending or historical. This holds regardless of force.
var ErrNodeInUse = errors.New("node has executions")

// ErrNotFound is returned when the referenced process or node does not exist.
var ErrNotFound = errors.New("not found")

// Manager applies lifecycle rules on top of the store.
type Manager struct {
	st    store.Store
	log   *slog.Logger
	clock func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager wires a lifecycle manager to a store.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		st:    st,
		log:   logging.New("process"),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) now() string {
	return m.clock().UTC().Format(time.RFC3339)
}

// Create stores a new draft process.
func (m *Manager) Create(p *graph.Process) (int64, error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return 0, fmt.Errorf("process name is required")
	}
	p.Status = graph.ProcessDraft
	p.Version = 1
	return m.st.CreateProcess(p)
}

// CreateFromDef materializes a YAML process definition into a draft
// process with its nodes and connections, in one transaction.
func (m *Manager) CreateFromDef(def *graph.ProcessDef, orgID int64) (int64, error) {
	if def == nil {
		return 0, fmt.Errorf("definition is nil")
	}
	if err := def.Validate(); err != nil {
		return 0, fmt.Errorf("invalid definition: %w", err)
	}
	var procID int64
	err := m.st.Tx(func(st store.Store) error {
		var err error
		procID, err = st.CreateProcess(&graph.Process{
			OrgID:       orgID,
			Name:        def.Process,
			Description: def.Description,
			Settings:    def.Settings,
			Status:      graph.ProcessDraft,
			Version:     1,
		})
		if err != nil {
			return err
		}
		ids := make(map[string]int64, len(def.Nodes))
		for _, nd := range def.Nodes {
			id, err := st.CreateNode(nd.NodeFor(procID))
			if err != nil {
				return err
			}
			ids[nd.Name] = id
		}
		for _, cd := range def.Connections {
			kind := graph.ConditionKind(cd.Kind)
			if kind == "" && cd.Default {
				kind = graph.CondConditional
			}
			_, err := st.CreateConnection(&graph.Connection{
				ProcessID: procID,
				SourceID:  ids[cd.From],
				TargetID:  ids[cd.To],
				Kind:      kind,
				Threshold: cd.Threshold,
				Default:   cd.Default,
				Label:     cd.Label,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return procID, nil
}

// Get returns a process by id, or ErrNotFound.
func (m *Manager) Get(id int64) (*graph.Process, error) {
	p, err := m.st.GetProcess(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: process %d", ErrNotFound, id)
	}
	return p, nil
}

// Validate runs structural validation over a process's current graph.
func (m *Manager) Validate(processID int64) (graph.Report, error) {
	if _, err := m.Get(processID); err != nil {
		return graph.Report{}, err
	}
	nodes, err := m.st.ListNodes(processID)
	if err != nil {
		return graph.Report{}, err
	}
	conns, err := m.st.ListConnections(processID)
	if err != nil {
		return graph.Report{}, err
	}
	return graph.Validate(nodes, conns), nil
}

// Activate flips a draft process to active. The graph must validate
// unless force is set, in which case the issues are logged for audit
// and activation proceeds.
func (m *Manager) Activate(processID int64, force bool) error {
	p, err := m.Get(processID)
	if err != nil {
		return err
	}
	if p.Status != graph.ProcessDraft {
		return fmt.Errorf("%w: cannot activate %s process %d", ErrConflict, p.Status, processID)
	}
	rep, err := m.Validate(processID)
	if err != nil {
		return err
	}
	if !rep.IsValid {
		if !force {
			return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(rep.Issues, "; "))
		}
		for _, issue := range rep.Issues {
			m.log.Warn("forced activation with open issue", "process_id", processID, "issue", issue)
		}
	}
	p.Status = graph.ProcessActive
	p.ActivatedAt = m.now()
	return m.st.UpdateProcess(p)
}

// Archive retires a process. Runs still in progress block archival;
// they must complete, fail, or be withdrawn first.
func (m *Manager) Archive(processID int64, reason string) error {
	p, err := m.Get(processID)
	if err != nil {
		return err
	}
	if p.Status == graph.ProcessArchived {
		return fmt.Errorf("%w: process %d is already archived", ErrConflict, processID)
	}
	live, err := m.st.CountInProgressByProcess(processID)
	if err != nil {
		return err
	}
	if live > 0 {
		return fmt.Errorf("%w: %d candidate processes still in progress", ErrConflict, live)
	}
	p.Status = graph.ProcessArchived
	p.ArchivedAt = m.now()
	p.ArchiveReason = reason
	return m.st.UpdateProcess(p)
}

// Patch is a partial metadata/settings update. Nil fields are left as is.
type Patch struct {
	Name        *string
	Description *string
	Settings    map[string]string
}

// Update applies a patch. Settings changes are structural and bump the
// version; a name or description edit on an active process requires
// force, protecting recruiters mid-process from silent drift.
func (m *Manager) Update(processID int64, patch Patch, force bool) error {
	p, err := m.Get(processID)
	if err != nil {
		return err
	}
	if p.Status == graph.ProcessArchived {
		return fmt.Errorf("%w: process %d is archived", ErrConflict, processID)
	}
	metadataEdit := patch.Name != nil || patch.Description != nil
	if metadataEdit && p.Status == graph.ProcessActive && !force {
		return fmt.Errorf("%w: metadata edit on active process %d requires force", ErrConflict, processID)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Settings != nil {
		p.Settings = patch.Settings
		p.Version++
	}
	return m.st.UpdateProcess(p)
}

// Delete removes a draft process and everything it owns. Non-draft
// processes cannot be deleted, only archived.
func (m *Manager) Delete(processID int64) error {
	p, err := m.Get(processID)
	if err != nil {
		return err
	}
	if p.Status != graph.ProcessDraft {
		return fmt.Errorf("%w: only draft processes can be deleted, process %d is %s", ErrConflict, processID, p.Status)
	}
	return m.st.DeleteProcess(processID)
}
