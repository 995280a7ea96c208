package graphexec

import "github.com/smilemakc/prana/internal/domain"

// resolved reports whether node can never again change the readiness of a
// downstream dependent: either it has completed at least once, or it is
// "dead" — not currently pending (not in active_nodes) and every one of its
// own incoming connections is itself resolved without ever having activated
// it. This implements §4.2's SelectReady relevance/satisfaction rule as a
// single recursive predicate: a connection (s,p)->(n,q) stops blocking n
// exactly when s is resolved, whether because s completed (satisfying or
// bypassing that port) or because s can never run at all (a dead branch).
func resolved(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, nodeKey string, memo map[string]bool, visiting map[string]bool) bool {
	if v, ok := memo[nodeKey]; ok {
		return v
	}
	if exec.HasCompleted(nodeKey) {
		memo[nodeKey] = true
		return true
	}
	if visiting[nodeKey] {
		// Back-edge reached while walking the ancestor chain of the node
		// whose own readiness is being decided (visiting is seeded with
		// that root before this walk starts): a loop-back predecessor that
		// depends on the root node's own first run can never be "pending"
		// in a way that should block the root, so treat it as resolved.
		return true
	}
	if exec.Runtime.ActiveNodes[nodeKey] {
		memo[nodeKey] = false
		return false
	}
	visiting[nodeKey] = true
	defer delete(visiting, nodeKey)

	for _, c := range graph.ReverseConnectionMap[nodeKey] {
		if !resolved(graph, exec, c.FromNode, memo, visiting) {
			memo[nodeKey] = false
			return false
		}
	}
	memo[nodeKey] = true
	return true
}

// isReady reports whether every incoming connection of nodeKey is resolved.
// memo and visiting are scoped to this single root check: a cyclic walk is
// only safe to treat as "resolved" relative to the particular node whose
// readiness is being asked about (see resolved's visiting[nodeKey] case),
// so neither map may be reused across a different root.
func isReady(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, nodeKey string) bool {
	memo := map[string]bool{}
	visiting := map[string]bool{nodeKey: true}
	for _, c := range graph.ReverseConnectionMap[nodeKey] {
		if !resolved(graph, exec, c.FromNode, memo, visiting) {
			return false
		}
	}
	return true
}

// selectReady returns every node in active_nodes whose incoming connections
// are all resolved, in graph author order (§4.2 SelectReady).
func selectReady(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution) []domain.Node {
	var keys []string
	for key := range exec.Runtime.ActiveNodes {
		if isReady(graph, exec, key) {
			keys = append(keys, key)
		}
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && graph.OrderIndex(keys[j-1]) > graph.OrderIndex(keys[j]); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	nodes := make([]domain.Node, len(keys))
	for i, k := range keys {
		nodes[i] = graph.NodeMap[k]
	}
	return nodes
}

// pickOne implements branch-following (§4.2 PickOne): prefer a ready node
// directly downstream of the most recently completed node, so a started
// branch runs to completion before another begins. Ties break on fewest
// incoming connections, then earliest author-order position.
func pickOne(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, ready []domain.Node) domain.Node {
	var lastCompleted string
	if n := len(exec.Runtime.ExecutedNodes); n > 0 {
		lastCompleted = exec.Runtime.ExecutedNodes[n-1]
	}

	candidates := ready
	if lastCompleted != "" {
		var continuing []domain.Node
		for _, n := range ready {
			for _, c := range graph.ReverseConnectionMap[n.Key] {
				if c.FromNode == lastCompleted {
					continuing = append(continuing, n)
					break
				}
			}
		}
		if len(continuing) > 0 {
			candidates = continuing
		}
	}

	best := candidates[0]
	bestDeps := len(graph.ReverseConnectionMap[best.Key])
	bestOrder := graph.OrderIndex(best.Key)
	for _, n := range candidates[1:] {
		deps := len(graph.ReverseConnectionMap[n.Key])
		order := graph.OrderIndex(n.Key)
		if deps < bestDeps || (deps == bestDeps && order < bestOrder) {
			best, bestDeps, bestOrder = n, deps, order
		}
	}
	return best
}
