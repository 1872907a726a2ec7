package graph

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when a connection references a node that
// does not exist in the graph being built.
var ErrNodeNotFound = errors.New("node not found")

// ErrCrossProcess is returned when a connection's endpoints belong to a
// different process than the graph's.
var ErrCrossProcess = errors.New("connection crosses process boundary")

// Graph is an in-memory index over one process version's nodes and
// connections. It stores nodes in a map for O(1) lookup while preserving
// connection definition order for deterministic routing.
type Graph struct {
	ProcessID   int64
	Nodes       []*Node
	Connections []*Connection

	nodeIndex map[int64]*Node
	outgoing  map[int64][]*Connection
	incoming  map[int64]int
}

// New builds a Graph from a process's node and connection set. It fails
// on referential problems only (dangling endpoints, cross-process edges);
// structural soundness is the Validator's concern.
func New(processID int64, nodes []*Node, conns []*Connection) (*Graph, error) {
	g := &Graph{
		ProcessID:   processID,
		Nodes:       nodes,
		Connections: conns,
		nodeIndex:   make(map[int64]*Node, len(nodes)),
		outgoing:    make(map[int64][]*Connection),
		incoming:    make(map[int64]int),
	}
	for _, n := range nodes {
		if n.ProcessID != processID {
			return nil, fmt.Errorf("%w: node %d belongs to process %d", ErrCrossProcess, n.ID, n.ProcessID)
		}
		g.nodeIndex[n.ID] = n
	}
	for _, c := range conns {
		if c.ProcessID != processID {
			return nil, fmt.Errorf("%w: connection %d belongs to process %d", ErrCrossProcess, c.ID, c.ProcessID)
		}
		if _, ok := g.nodeIndex[c.SourceID]; !ok {
			return nil, fmt.Errorf("%w: connection %d references source %d", ErrNodeNotFound, c.ID, c.SourceID)
		}
		if _, ok := g.nodeIndex[c.TargetID]; !ok {
			return nil, fmt.Errorf("%w: connection %d references target %d", ErrNodeNotFound, c.ID, c.TargetID)
		}
		g.outgoing[c.SourceID] = append(g.outgoing[c.SourceID], c)
		g.incoming[c.TargetID]++
	}
	return g, nil
}

// NodeByID returns the node with the given id, if present.
func (g *Graph) NodeByID(id int64) (*Node, bool) {
	n, ok := g.nodeIndex[id]
	return n, ok
}

// Outgoing returns a node's outgoing connections in definition order.
func (g *Graph) Outgoing(nodeID int64) []*Connection {
	return g.outgoing[nodeID]
}

// Entry returns the single node with no incoming connections. ok is
// false when there are zero or several such nodes; validation reports
// that as an issue.
func (g *Graph) Entry() (*Node, bool) {
	var entry *Node
	for _, n := range g.Nodes {
		if g.incoming[n.ID] == 0 {
			if entry != nil {
				return nil, false
			}
			entry = n
		}
	}
	return entry, entry != nil
}

// IsTerminal reports whether a node has no outgoing connections.
func (g *Graph) IsTerminal(nodeID int64) bool {
	return len(g.outgoing[nodeID]) == 0
}

// Reachable returns the set of node ids reachable from start, including
// start itself.
func (g *Graph) Reachable(start int64) map[int64]bool {
	seen := make(map[int64]bool)
	stack := []int64{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, c := range g.outgoing[id] {
			if !seen[c.TargetID] {
				stack = append(stack, c.TargetID)
			}
		}
	}
	return seen
}
