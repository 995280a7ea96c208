package graphexec

import "github.com/smilemakc/prana/internal/domain"

// routeOutput applies a completed node's output to the shared runtime state
// (§4.2 RouteOutput): store the value under node_key, assert the
// (node_key, port) active path, mark the node executed, and activate every
// connection's target for the next SelectReady pass. Re-adding a node
// already in active_nodes (a loop-back target) is a no-op on the map and is
// exactly how loop re-entry is represented — its next NextRunIndex call
// picks up where its last run left off.
func routeOutput(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, nodeKey, port string, data any) {
	exec.Runtime.Nodes[nodeKey] = data
	exec.Runtime.ActivePaths[domain.PortKey{NodeKey: nodeKey, Port: port}] = true
	exec.Runtime.ExecutedNodes = append(exec.Runtime.ExecutedNodes, nodeKey)

	for _, c := range graph.ConnectionMap[domain.PortKey{NodeKey: nodeKey, Port: port}] {
		exec.Runtime.ActiveNodes[c.ToNode] = true
	}
}

// rebuildRuntime replays exec's persisted NodeExecutions to reconstruct its
// transient Runtime (§4.6 step 1, §9 "transient runtime fields"). Always
// called at the top of Resume since a deserialized WorkflowExecution's
// Runtime is a zero value.
func rebuildRuntime(graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, env map[string]string) {
	rt := domain.Runtime{
		Nodes:         map[string]any{},
		ExecutedNodes: []string{},
		ActivePaths:   map[domain.PortKey]bool{},
		ActiveNodes:   map[string]bool{},
		Env:           env,
		Loopback:      map[string]bool{},
	}
	if rt.Env == nil {
		rt.Env = map[string]string{}
	}

	for _, ne := range exec.AllNodeExecutionsOrdered() {
		if ne.Status != domain.NodeStatusCompleted {
			continue
		}
		rt.Nodes[ne.NodeKey] = ne.OutputData
		rt.ActivePaths[domain.PortKey{NodeKey: ne.NodeKey, Port: ne.OutputPort}] = true
		rt.ExecutedNodes = append(rt.ExecutedNodes, ne.NodeKey)
		delete(rt.ActiveNodes, ne.NodeKey)
		for _, c := range graph.ConnectionMap[domain.PortKey{NodeKey: ne.NodeKey, Port: ne.OutputPort}] {
			rt.ActiveNodes[c.ToNode] = true
		}
	}

	if !exec.HasCompleted(graph.TriggerNodeKey) {
		rt.ActiveNodes[graph.TriggerNodeKey] = true
	}
	exec.Runtime = rt
}
