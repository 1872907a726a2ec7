package graph

// Route selects the next connection for a completed node, given its
// outgoing connections, the execution result, and the score. Priority:
//
//  1. an edge whose kind matches the result exactly (success for pass,
//     fail for fail), in definition order;
//  2. the satisfied conditional edge with the highest threshold the
//     score still meets (equal thresholds keep definition order);
//  3. the default edge, if any.
//
// ok is false when no edge applies; the caller decides whether that
// means a terminal node or a routing dead end.
func Route(conns []*Connection, result Result, score float64) (*Connection, bool) {
	want := CondFail
	if result == ResultPass {
		want = CondSuccess
	}
	for _, c := range conns {
		if c.Kind == want && !c.Default {
			return c, true
		}
	}

	var best *Connection
	for _, c := range conns {
		if c.Kind != CondConditional || c.Default || score < c.Threshold {
			continue
		}
		if best == nil || c.Threshold > best.Threshold {
			best = c
		}
	}
	if best != nil {
		return best, true
	}

	for _, c := range conns {
		if c.Default {
			return c, true
		}
	}
	return nil, false
}
