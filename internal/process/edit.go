package process

import (
	"fmt"

	"hireflow/internal/graph"
	"hireflow/internal/store"
)

// AddNode adds a stage to a draft or active process and bumps the
// version. Adding to an active process is deliberate: new candidates
// may need additional steps; in-flight runs keep their pinned version.
func (m *Manager) AddNode(n *graph.Node) (int64, error) {
	p, err := m.Get(n.ProcessID)
	if err != nil {
		return 0, err
	}
	if p.Status == graph.ProcessArchived {
		return 0, fmt.Errorf("%w: process %d is archived", ErrConflict, p.ID)
	}
	var nodeID int64
	err = m.st.Tx(func(st store.Store) error {
		n.AddedInVersion = p.Version + 1
		var err error
		if nodeID, err = st.CreateNode(n); err != nil {
			return err
		}
		p.Version++
		return st.UpdateProcess(p)
	})
	if err != nil {
		return 0, err
	}
	return nodeID, nil
}

// AddConnection adds a conditioned edge and bumps the version. Both
// endpoints must exist and belong to the connection's process.
func (m *Manager) AddConnection(c *graph.Connection) (int64, error) {
	p, err := m.Get(c.ProcessID)
	if err != nil {
		return 0, err
	}
	if p.Status == graph.ProcessArchived {
		return 0, fmt.Errorf("%w: process %d is archived", ErrConflict, p.ID)
	}
	for _, endpoint := range []int64{c.SourceID, c.TargetID} {
		n, err := m.st.GetNode(endpoint)
		if err != nil {
			return 0, err
		}
		if n == nil {
			return 0, fmt.Errorf("%w: node %d", ErrNotFound, endpoint)
		}
		if n.ProcessID != c.ProcessID {
			return 0, fmt.Errorf("%w: node %d belongs to process %d", graph.ErrCrossProcess, endpoint, n.ProcessID)
		}
	}
	var connID int64
	err = m.st.Tx(func(st store.Store) error {
		c.AddedInVersion = p.Version + 1
		var err error
		if connID, err = st.CreateConnection(c); err != nil {
			return err
		}
		p.Version++
		return st.UpdateProcess(p)
	})
	if err != nil {
		return 0, err
	}
	return connID, nil
}

// RemoveNode deletes a node and its connections, bumping the version.
// A node with any execution, pending or historical, cannot be removed;
// that holds regardless of force anywhere in the API.
func (m *Manager) RemoveNode(nodeID int64) error {
	n, err := m.st.GetNode(nodeID)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	count, err := m.st.CountExecutionsByNode(nodeID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: node %d has %d executions", ErrNodeInUse, nodeID, count)
	}
	p, err := m.Get(n.ProcessID)
	if err != nil {
		return err
	}
	return m.st.Tx(func(st store.Store) error {
		if err := st.DeleteConnectionsByNode(nodeID); err != nil {
			return err
		}
		if err := st.DeleteNode(nodeID); err != nil {
			return err
		}
		p.Version++
		return st.UpdateProcess(p)
	})
}

// Clone produces a new draft process with identical nodes and
// connections under fresh ids. Candidate assignments are optionally
// carried over as fresh, not-started runs; viewer entries are carried
// by default.
func (m *Manager) Clone(processID int64, newName string, cloneCandidates, cloneViewers bool) (int64, error) {
	src, err := m.Get(processID)
	if err != nil {
		return 0, err
	}
	nodes, err := m.st.ListNodes(processID)
	if err != nil {
		return 0, err
	}
	conns, err := m.st.ListConnections(processID)
	if err != nil {
		return 0, err
	}
	var cloneID int64
	err = m.st.Tx(func(st store.Store) error {
		var err error
		cloneID, err = st.CreateProcess(&graph.Process{
			OrgID:       src.OrgID,
			Name:        newName,
			Description: src.Description,
			Settings:    src.Settings,
			Status:      graph.ProcessDraft,
			Version:     1,
		})
		if err != nil {
			return err
		}
		idMap := make(map[int64]int64, len(nodes))
		for _, n := range nodes {
			cp := *n
			cp.ID = 0
			cp.ProcessID = cloneID
			cp.AddedInVersion = 1
			newID, err := st.CreateNode(&cp)
			if err != nil {
				return err
			}
			idMap[n.ID] = newID
		}
		for _, c := range conns {
			cp := *c
			cp.ID = 0
			cp.ProcessID = cloneID
			cp.SourceID = idMap[c.SourceID]
			cp.TargetID = idMap[c.TargetID]
			cp.AddedInVersion = 1
			if _, err := st.CreateConnection(&cp); err != nil {
				return err
			}
		}
		if cloneViewers {
			viewers, err := st.ListViewers(processID)
			if err != nil {
				return err
			}
			for _, userID := range viewers {
				if err := st.AddViewer(cloneID, userID); err != nil {
					return err
				}
			}
		}
		if cloneCandidates {
			runs, err := st.ListCandidateProcesses(processID)
			if err != nil {
				return err
			}
			seen := make(map[int64]bool)
			for _, run := range runs {
				if seen[run.CandidateID] {
					continue
				}
				seen[run.CandidateID] = true
				_, err := st.CreateCandidateProcess(&store.CandidateProcess{
					CandidateID:    run.CandidateID,
					ProcessID:      cloneID,
					ProcessVersion: 1,
					RecruiterID:    run.RecruiterID,
					Status:         store.RunNotStarted,
					AssignedAt:     m.now(),
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cloneID, nil
}

// LoadGraphAt builds the in-memory graph as it stood at the given
// process version: nodes and connections added in a later version are
// left out, so runs pinned to that version keep their original
// routing. Removals need no counterpart filter; a node a run has
// touched cannot be removed while its executions exist.
func LoadGraphAt(st store.Store, processID int64, version int) (*graph.Graph, error) {
	nodes, err := st.ListNodes(processID)
	if err != nil {
		return nil, err
	}
	conns, err := st.ListConnections(processID)
	if err != nil {
		return nil, err
	}
	kept := nodes[:0]
	for _, n := range nodes {
		if n.AddedInVersion <= version {
			kept = append(kept, n)
		}
	}
	keptConns := conns[:0]
	for _, c := range conns {
		if c.AddedInVersion <= version {
			keptConns = append(keptConns, c)
		}
	}
	return graph.New(processID, kept, keptConns)
}
