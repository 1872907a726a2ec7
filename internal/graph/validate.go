package graph

import "fmt"

// Report is the outcome of structural validation. Issues block
// activation (unless forced); warnings do not.
type Report struct {
	IsValid  bool
	Issues   []string
	Warnings []string
}

func (r *Report) issue(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks a process graph for structural soundness:
//
//   - exactly one entry node (no incoming connections);
//   - every node reachable from the entry (unreachable nodes warn only);
//   - every non-terminal node has an exhaustive outgoing set: one
//     success + one fail edge, or conditional edges plus a default;
//   - decision nodes reference at least one decision maker.
//
// Loops are deliberately permitted: a "redo interview" edge back to an
// earlier node is a valid shape, and termination is a process-authoring
// concern, not a structural one.
func Validate(nodes []*Node, conns []*Connection) Report {
	var rep Report
	if len(nodes) == 0 {
		rep.issue("process has no nodes")
		return rep
	}

	processID := nodes[0].ProcessID
	g, err := New(processID, nodes, conns)
	if err != nil {
		rep.issue("referential integrity: %v", err)
		return rep
	}

	entry, ok := g.Entry()
	if !ok {
		n := 0
		for _, node := range nodes {
			if g.incoming[node.ID] == 0 {
				n++
			}
		}
		if n == 0 {
			rep.issue("no entry node: every node has incoming connections")
		} else {
			rep.issue("%d entry nodes: exactly one node must have no incoming connections", n)
		}
	}

	if entry != nil {
		reachable := g.Reachable(entry.ID)
		for _, node := range nodes {
			if !reachable[node.ID] {
				rep.warn("node %d (%s) is unreachable from the entry node", node.ID, node.Title)
			}
		}
	}

	for _, node := range nodes {
		out := g.Outgoing(node.ID)
		if len(out) == 0 {
			continue // terminal
		}
		if !exhaustive(out) {
			rep.issue("candidate can get stuck at node %d (%s): outgoing connections do not cover both pass and fail outcomes", node.ID, node.Title)
		}
	}

	for _, node := range nodes {
		if node.Type == NodeDecision && len(node.Config.DeciderIDs) == 0 {
			rep.issue("decision node %d (%s) has no decision makers", node.ID, node.Title)
		}
	}

	rep.IsValid = len(rep.Issues) == 0
	return rep
}

// exhaustive reports whether an outgoing connection set covers the full
// outcome space: exactly one success and one fail edge, or at least one
// conditional edge backed by a default.
func exhaustive(out []*Connection) bool {
	var success, fail, conditional, deflt int
	for _, c := range out {
		switch {
		case c.Default:
			deflt++
		case c.Kind == CondSuccess:
			success++
		case c.Kind == CondFail:
			fail++
		case c.Kind == CondConditional:
			conditional++
		}
	}
	if success == 1 && fail == 1 && conditional == 0 {
		return true
	}
	if conditional > 0 && deflt >= 1 {
		return true
	}
	// A lone default still catches everything.
	return deflt >= 1 && success == 0 && fail == 0 && conditional == 0
}
