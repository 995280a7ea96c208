package nodeexec

import "github.com/smilemakc/prana/internal/domain"

// RouteInput builds the routed_input mapping for node per §4.3 step 1: for
// each incoming connection whose source's most recent active path matches
// from_port, take the source's most recent output. Values are grouped by
// to_port; a single source collapses to the value itself, multiple sources
// become an ordered list in arrival order (§9 Open Questions: this rewrite
// standardizes on ordered-list aggregation for same-port multi-source
// merges).
func RouteInput(node domain.Node, graph *domain.ExecutionGraph, exec *domain.WorkflowExecution) map[string]any {
	var relevant []domain.Connection
	for _, c := range graph.ReverseConnectionMap[node.Key] {
		last, ok := exec.LastNodeExecution(c.FromNode)
		if ok && last.Status == domain.NodeStatusCompleted && last.OutputPort == c.FromPort {
			relevant = append(relevant, c)
		}
	}

	arrivalIndex := make(map[string]int, len(exec.Runtime.ExecutedNodes))
	for i, key := range exec.Runtime.ExecutedNodes {
		if _, ok := arrivalIndex[key]; !ok {
			arrivalIndex[key] = i
		}
	}
	for i := 1; i < len(relevant); i++ {
		for j := i; j > 0 && arrivalIndex[relevant[j-1].FromNode] > arrivalIndex[relevant[j].FromNode]; j-- {
			relevant[j-1], relevant[j] = relevant[j], relevant[j-1]
		}
	}

	grouped := map[string][]any{}
	order := []string{}
	for _, c := range relevant {
		val := exec.Runtime.Nodes[c.FromNode]
		if _, ok := grouped[c.ToPort]; !ok {
			order = append(order, c.ToPort)
		}
		grouped[c.ToPort] = append(grouped[c.ToPort], val)
	}

	routed := make(map[string]any, len(order))
	for _, port := range order {
		vals := grouped[port]
		if len(vals) == 1 {
			routed[port] = vals[0]
		} else {
			routed[port] = vals
		}
	}
	return routed
}
