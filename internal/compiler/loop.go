package compiler

import "github.com/smilemakc/prana/internal/domain"

// detectLoops runs a standard DFS back-edge pass over the pruned graph's
// node-to-node adjacency (ignoring ports) to annotate loop metadata
// (§4.5, §9: "detection is a standard Tarjan/DFS pass"; the precise
// algorithm is left to the implementer). A back edge u->v (v still on the
// DFS stack) marks v as the loop's start, u as its end, and everything
// between them on the stack as in-loop. Nodes touched by no back edge are
// not_in_loop.
func detectLoops(graph *domain.ExecutionGraph) map[string]domain.LoopMetadata {
	adjacency := make(map[string][]string)
	for key, conns := range graph.ConnectionMap {
		for _, c := range conns {
			adjacency[key.NodeKey] = append(adjacency[key.NodeKey], c.ToNode)
		}
	}

	meta := make(map[string]domain.LoopMetadata, len(graph.NodeMap))
	for key := range graph.NodeMap {
		meta[key] = domain.LoopMetadata{Role: domain.LoopRoleNotInLoop}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(graph.NodeMap))
	var stack []string
	loopCount := 0

	var visit func(n string)
	visit = func(n string) {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range adjacency[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				loopCount++
				loopID := loopIDFor(loopCount)
				markLoop(meta, stack, next, len(stack)-1, loopID)
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}

	for _, key := range graph.NodeOrder {
		if color[key] == white {
			visit(key)
		}
	}
	return meta
}

// markLoop marks stack[startIdx:] (the back edge's target through its
// source) with loop roles and appends loopID to each member's IDs.
func markLoop(meta map[string]domain.LoopMetadata, stack []string, start string, endIdx int, loopID string) {
	startIdx := -1
	for i, k := range stack {
		if k == start {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return
	}
	members := stack[startIdx : endIdx+1]
	for i, key := range members {
		m := meta[key]
		m.IDs = append(m.IDs, loopID)
		m.Level++
		switch {
		case i == 0:
			m.Role = domain.LoopRoleStartLoop
		case i == len(members)-1:
			m.Role = domain.LoopRoleEndLoop
		default:
			if m.Role == domain.LoopRoleNotInLoop {
				m.Role = domain.LoopRoleInLoop
			}
		}
		meta[key] = m
	}
}

func loopIDFor(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "loop_" + string(letters[(n-1)%len(letters)])
}
