// Package compiler implements the Workflow Compiler (spec §4.1): it turns a
// user-facing Workflow plus an optional chosen trigger key into an
// ExecutionGraph with O(1) routing tables, pruning nodes unreachable from
// the trigger. Grounded on the teacher's internal/application/executor
// graph.go (WorkflowGraph construction, GetEntryNodes/GetNextNodes/
// TopologicalSort), generalized from its expr-lang-conditional edges to the
// spec's plain reachability/dependency model; evaluateCondition there is
// deliberately NOT carried forward (routing conditions are a Node Executor
// concern evaluated via internal/template, not a compile-time edge filter).
package compiler

import (
	"fmt"

	"github.com/smilemakc/prana/internal/domain"
)

func compileErr(reason, message string) *domain.Error {
	return domain.NewErrorWithDetails(domain.ErrCompileError, message, map[string]any{"reason": reason}, nil)
}

// Compile builds an ExecutionGraph from workflow, discovering the trigger
// node via triggerKey (or by uniqueness when triggerKey is empty) and
// pruning everything unreachable from it (§4.1 steps 1-7).
func Compile(workflow *domain.Workflow, triggerKey string, registry domain.Registry) (*domain.ExecutionGraph, error) {
	canonical := workflow.CanonicalConnections()

	triggerNode, err := findTrigger(workflow, triggerKey, registry)
	if err != nil {
		return nil, err
	}

	reachable := forwardReachable(workflow, canonical, triggerNode.Key)

	nodeMap := make(map[string]domain.Node, len(reachable))
	nodeOrder := make([]string, 0, len(reachable))
	for _, n := range workflow.Nodes {
		if reachable[n.Key] {
			nodeMap[n.Key] = n
			nodeOrder = append(nodeOrder, n.Key)
		}
	}

	connectionMap := make(map[domain.PortKey][]domain.Connection)
	for k, conns := range canonical {
		if !reachable[k.NodeKey] {
			continue
		}
		var kept []domain.Connection
		for _, c := range conns {
			if reachable[c.ToNode] {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			connectionMap[k] = kept
		}
	}

	reverseConnectionMap := make(map[string][]domain.Connection)
	dependencyGraph := make(map[string][]string)
	depSeen := make(map[string]map[string]bool)
	for _, c := range workflow.Connections {
		if !reachable[c.FromNode] || !reachable[c.ToNode] {
			continue
		}
		reverseConnectionMap[c.ToNode] = append(reverseConnectionMap[c.ToNode], c)
		if depSeen[c.ToNode] == nil {
			depSeen[c.ToNode] = map[string]bool{}
		}
		if !depSeen[c.ToNode][c.FromNode] {
			depSeen[c.ToNode][c.FromNode] = true
			dependencyGraph[c.ToNode] = append(dependencyGraph[c.ToNode], c.FromNode)
		}
	}

	graph := &domain.ExecutionGraph{
		WorkflowID:           workflow.ID,
		WorkflowVersion:      workflow.Version,
		TriggerNodeKey:       triggerNode.Key,
		NodeMap:              nodeMap,
		ConnectionMap:        connectionMap,
		ReverseConnectionMap: reverseConnectionMap,
		DependencyGraph:      dependencyGraph,
		NodeOrder:            nodeOrder,
		Variables:            workflow.Variables,
	}
	graph.LoopMeta = detectLoops(graph)

	return graph, nil
}

func findTrigger(workflow *domain.Workflow, triggerKey string, registry domain.Registry) (domain.Node, error) {
	if triggerKey != "" {
		node, ok := workflow.NodeByKey(triggerKey)
		if !ok {
			return domain.Node{}, compileErr("trigger_node_not_found", fmt.Sprintf("trigger node %q not found in workflow", triggerKey))
		}
		action, ok := registry.Lookup(node.Type)
		if !ok {
			return domain.Node{}, compileErr("action_not_found", fmt.Sprintf("no action registered for type %q", node.Type))
		}
		if !action.IsTrigger() {
			return domain.Node{}, compileErr("node_not_trigger", fmt.Sprintf("node %q is not a trigger", triggerKey))
		}
		return node, nil
	}

	var candidates []domain.Node
	for _, n := range workflow.Nodes {
		action, ok := registry.Lookup(n.Type)
		if ok && action.IsTrigger() {
			candidates = append(candidates, n)
		}
	}
	switch len(candidates) {
	case 0:
		return domain.Node{}, compileErr("no_trigger_nodes", "workflow has no trigger nodes")
	case 1:
		return candidates[0], nil
	default:
		return domain.Node{}, compileErr("multiple_triggers_found", "workflow has multiple trigger nodes; a trigger key must be specified")
	}
}

// forwardReachable runs a BFS from triggerKey over the canonical connection
// map (§4.1 step 3).
func forwardReachable(workflow *domain.Workflow, canonical map[domain.PortKey][]domain.Connection, triggerKey string) map[string]bool {
	reachable := map[string]bool{triggerKey: true}
	queue := []string{triggerKey}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for k, conns := range canonical {
			if k.NodeKey != cur {
				continue
			}
			for _, c := range conns {
				if !reachable[c.ToNode] {
					reachable[c.ToNode] = true
					queue = append(queue, c.ToNode)
				}
			}
		}
	}
	return reachable
}
