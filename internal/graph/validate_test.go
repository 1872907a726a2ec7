package graph

import (
	"math/rand"
	"strings"
	"testing"
)

func node(id int64, typ NodeType) *Node {
	n := &Node{ID: id, ProcessID: 1, Type: typ, Title: "node"}
	if typ == NodeDecision {
		n.Config.DeciderIDs = []int64{42}
	}
	return n
}

func edge(id, from, to int64, kind ConditionKind, deflt bool) *Connection {
	return &Connection{ID: id, ProcessID: 1, SourceID: from, TargetID: to, Kind: kind, Default: deflt}
}

func TestValidate_LinearGraphIsValid(t *testing.T) {
	nodes := []*Node{node(1, NodeInterview), node(2, NodeTask), node(3, NodeInterview), node(4, NodeDecision)}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false),
		edge(11, 1, 4, CondFail, false),
		edge(12, 2, 3, CondSuccess, false),
		edge(13, 2, 4, CondFail, false),
		edge(14, 3, 4, CondSuccess, false),
		edge(15, 3, 4, CondFail, false),
	}
	rep := Validate(nodes, conns)
	if !rep.IsValid {
		t.Fatalf("expected valid, issues: %v", rep.Issues)
	}
	if len(rep.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestValidate_NoEntryNode(t *testing.T) {
	// Two-node cycle with no entry point.
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview)}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false),
		edge(11, 1, 2, CondFail, false),
		edge(12, 2, 1, CondSuccess, false),
		edge(13, 2, 1, CondFail, false),
	}
	rep := Validate(nodes, conns)
	if rep.IsValid {
		t.Fatal("expected invalid")
	}
	if !hasIssue(rep, "no entry node") {
		t.Fatalf("missing entry issue, got %v", rep.Issues)
	}
}

func TestValidate_MultipleEntryNodes(t *testing.T) {
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview), node(3, NodeInterview)}
	conns := []*Connection{
		edge(10, 1, 3, CondSuccess, false),
		edge(11, 1, 3, CondFail, false),
		edge(12, 2, 3, CondSuccess, false),
		edge(13, 2, 3, CondFail, false),
	}
	rep := Validate(nodes, conns)
	if rep.IsValid || !hasIssue(rep, "entry nodes") {
		t.Fatalf("expected multi-entry issue, got valid=%v issues=%v", rep.IsValid, rep.Issues)
	}
}

func TestValidate_UnreachableNodeWarnsOnly(t *testing.T) {
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview), node(3, NodeInterview)}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false),
		edge(11, 1, 2, CondFail, false),
		// node 3 dangles but has an incoming edge from node 2's branch? No:
		// give it an incoming edge so it is not a second entry, from itself.
		edge(12, 3, 3, CondSuccess, false),
		edge(13, 3, 3, CondFail, false),
	}
	rep := Validate(nodes, conns)
	if rep.IsValid != true {
		t.Fatalf("unreachable node should warn, not fail: %v", rep.Issues)
	}
	if len(rep.Warnings) == 0 || !strings.Contains(rep.Warnings[0], "unreachable") {
		t.Fatalf("expected unreachable warning, got %v", rep.Warnings)
	}
}

func TestValidate_NonExhaustiveBranching(t *testing.T) {
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview)}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false), // fail outcome has nowhere to go
	}
	rep := Validate(nodes, conns)
	if rep.IsValid || !hasIssue(rep, "stuck") {
		t.Fatalf("expected stuck issue, got valid=%v issues=%v", rep.IsValid, rep.Issues)
	}
}

func TestValidate_ConditionalWithoutDefault(t *testing.T) {
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview), node(3, NodeInterview)}
	conns := []*Connection{
		{ID: 10, ProcessID: 1, SourceID: 1, TargetID: 2, Kind: CondConditional, Threshold: 80},
		{ID: 11, ProcessID: 1, SourceID: 1, TargetID: 3, Kind: CondConditional, Threshold: 50},
	}
	rep := Validate(nodes, conns)
	if rep.IsValid {
		t.Fatal("conditional edges without a default must be an issue")
	}
	conns = append(conns, &Connection{ID: 12, ProcessID: 1, SourceID: 1, TargetID: 3, Kind: CondConditional, Default: true})
	rep = Validate(nodes, conns)
	if !rep.IsValid {
		t.Fatalf("default edge should make the set exhaustive, issues: %v", rep.Issues)
	}
}

func TestValidate_DecisionNodeNeedsDeciders(t *testing.T) {
	n := node(2, NodeDecision)
	n.Config.DeciderIDs = nil
	nodes := []*Node{node(1, NodeInterview), n}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false),
		edge(11, 1, 2, CondFail, false),
	}
	rep := Validate(nodes, conns)
	if rep.IsValid || !hasIssue(rep, "decision makers") {
		t.Fatalf("expected decider issue, got valid=%v issues=%v", rep.IsValid, rep.Issues)
	}
}

func TestValidate_LoopsAreAllowed(t *testing.T) {
	// screen -> interview, with a redo edge back to interview on fail.
	nodes := []*Node{node(1, NodeInterview), node(2, NodeInterview), node(3, NodeDecision)}
	conns := []*Connection{
		edge(10, 1, 2, CondSuccess, false),
		edge(11, 1, 2, CondFail, false),
		edge(12, 2, 3, CondSuccess, false),
		edge(13, 2, 2, CondFail, false), // redo interview
	}
	rep := Validate(nodes, conns)
	if !rep.IsValid {
		t.Fatalf("loop graph should be valid, issues: %v", rep.Issues)
	}
}

// Property: any randomly generated graph the validator accepts routes
// every non-terminal node for both pass and fail at any score.
func TestValidate_AcceptedGraphsAlwaysRoute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	accepted := 0
	for trial := 0; trial < 500; trial++ {
		nodes, conns := randomGraph(rng)
		rep := Validate(nodes, conns)
		if !rep.IsValid {
			continue
		}
		accepted++
		g, err := New(1, nodes, conns)
		if err != nil {
			t.Fatalf("trial %d: accepted graph failed to build: %v", trial, err)
		}
		for _, n := range nodes {
			out := g.Outgoing(n.ID)
			if len(out) == 0 {
				continue
			}
			for _, result := range []Result{ResultPass, ResultFail} {
				for _, score := range []float64{0, 49.5, 80, 100} {
					if _, ok := Route(out, result, score); !ok {
						t.Fatalf("trial %d: node %d has no route for %s/%.1f", trial, n.ID, result, score)
					}
				}
			}
		}
	}
	if accepted == 0 {
		t.Fatal("generator produced no valid graphs; property is vacuous")
	}
}

// randomGraph builds a small random graph: a chain with random branch
// shapes per node (success/fail pairs, conditional fans with or without
// defaults, or dead ends).
func randomGraph(rng *rand.Rand) ([]*Node, []*Connection) {
	n := 2 + rng.Intn(5)
	nodes := make([]*Node, 0, n)
	for i := 0; i < n; i++ {
		nodes = append(nodes, node(int64(i+1), NodeInterview))
	}
	var conns []*Connection
	nextID := int64(100)
	for i := 0; i < n-1; i++ {
		from := int64(i + 1)
		target := func() int64 { return int64(2 + rng.Intn(n-1)) } // any non-entry node
		switch rng.Intn(4) {
		case 0: // terminal node
		case 1: // success/fail pair
			conns = append(conns,
				&Connection{ID: nextID, ProcessID: 1, SourceID: from, TargetID: target(), Kind: CondSuccess},
				&Connection{ID: nextID + 1, ProcessID: 1, SourceID: from, TargetID: target(), Kind: CondFail})
			nextID += 2
		case 2: // conditionals + default
			k := 1 + rng.Intn(3)
			for j := 0; j < k; j++ {
				conns = append(conns, &Connection{ID: nextID, ProcessID: 1, SourceID: from, TargetID: target(), Kind: CondConditional, Threshold: float64(rng.Intn(100))})
				nextID++
			}
			conns = append(conns, &Connection{ID: nextID, ProcessID: 1, SourceID: from, TargetID: target(), Kind: CondConditional, Default: true})
			nextID++
		case 3: // conditionals without default (validator should reject)
			conns = append(conns, &Connection{ID: nextID, ProcessID: 1, SourceID: from, TargetID: target(), Kind: CondConditional, Threshold: float64(rng.Intn(100))})
			nextID++
		}
	}
	return nodes, conns
}

func hasIssue(rep Report, substr string) bool {
	for _, s := range rep.Issues {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
