package domain

// ExecutionGraph is the compiler's output: a read-only, immutable-after-
// construction index of a Workflow pruned to what's reachable from its
// trigger, with O(1) routing tables (§3, §4.1).
type ExecutionGraph struct {
	WorkflowID     string
	WorkflowVersion string
	TriggerNodeKey string

	// NodeMap indexes pruned nodes by key.
	NodeMap map[string]Node

	// ConnectionMap is (from_node_key, from_port) -> ordered outgoing
	// connections. Never contains a connection whose source isn't the key.
	ConnectionMap map[PortKey][]Connection

	// ReverseConnectionMap is to_node_key -> ordered incoming connections
	// (all ports), built over the pruned graph.
	ReverseConnectionMap map[string][]Connection

	// DependencyGraph is node_key -> []node_key of nodes that must be
	// active-path-satisfied for it to run. An upper bound refined by the
	// active-path check at schedule time; not a strict topological order.
	DependencyGraph map[string][]string

	// NodeOrder preserves authoring order of pruned nodes, used as the
	// final PickOne tie-break (earliest author-order position).
	NodeOrder []string

	Variables map[string]any

	// LoopMeta carries per-node loop annotations detected at compile time
	// (§4.5, §9): loop_level, loop_role, loop_ids.
	LoopMeta map[string]LoopMetadata
}

// LoopRole classifies a node's position relative to detected back-edges.
type LoopRole string

const (
	LoopRoleNotInLoop LoopRole = "not_in_loop"
	LoopRoleStartLoop LoopRole = "start_loop"
	LoopRoleInLoop    LoopRole = "in_loop"
	LoopRoleEndLoop   LoopRole = "end_loop"
)

type LoopMetadata struct {
	Level LoopLevel
	Role  LoopRole
	IDs   []string
}

// LoopLevel is the nesting depth of a loop a node participates in (0 for
// nodes outside any loop).
type LoopLevel int

// OrderIndex returns the position of key in NodeOrder, or -1 if absent.
// Used for the PickOne author-order tie-break.
func (g *ExecutionGraph) OrderIndex(key string) int {
	for i, k := range g.NodeOrder {
		if k == key {
			return i
		}
	}
	return -1
}
