package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the execution status machine (§4.2):
// pending -> running -> (completed | failed | suspended); suspended can
// transition back to running via Resume, then to any terminal state.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusSuspended ExecutionStatus = "suspended"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NodeExecutionStatus is the per-run status of a single NodeExecution.
type NodeExecutionStatus string

const (
	NodeStatusPending   NodeExecutionStatus = "pending"
	NodeStatusRunning   NodeExecutionStatus = "running"
	NodeStatusCompleted NodeExecutionStatus = "completed"
	NodeStatusFailed    NodeExecutionStatus = "failed"
	NodeStatusSuspended NodeExecutionStatus = "suspended"
)

// NodeExecution is an immutable-once-recorded per-run record of a single
// node's execution within a WorkflowExecution (§3). A node may have many
// because of loop-back connections (§4.5).
type NodeExecution struct {
	NodeKey        string
	ExecutionIndex int64 // from the parent execution's monotonic counter
	RunIndex       int   // 0-based ordinal of this node's runs within the execution
	Status         NodeExecutionStatus

	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64

	OutputData any
	OutputPort string // empty on failure/suspend

	ErrorData *ActionResultError // nil on success

	SuspensionType SuspensionType
	SuspensionData any

	RetryCount int
}

// Runtime is the transient, derived part of a WorkflowExecution: rebuilt
// from persisted NodeExecutions whenever state is loaded, never itself
// serialized (§3, §9 "transient runtime fields").
type Runtime struct {
	// Nodes holds the most-recent output per node key.
	Nodes map[string]any
	// ExecutedNodes is the ordered key list of nodes that have completed.
	ExecutedNodes []string
	// ActivePaths is the set of (node_key, port) pairs asserted by a
	// completed node's output; gates downstream readiness.
	ActivePaths map[PortKey]bool
	// ActiveNodes is the set of node keys currently eligible to run.
	ActiveNodes map[string]bool
	// Env is the process/deployment environment map.
	Env map[string]string
	// Loopback is allocated empty and is not written by the graph executor:
	// whether a run is a loop-back re-execution is computed when the node is
	// selected and reaches templates as $execution.loopback.
	Loopback map[string]bool
}

func newRuntime(env map[string]string) Runtime {
	if env == nil {
		env = map[string]string{}
	}
	return Runtime{
		Nodes:         map[string]any{},
		ExecutedNodes: []string{},
		ActivePaths:   map[PortKey]bool{},
		ActiveNodes:   map[string]bool{},
		Env:           env,
		Loopback:      map[string]bool{},
	}
}

// WorkflowExecution is the mutable, persisted state of one workflow run
// (§3). It is created by Execute, mutated only by the graph executor
// (single-threaded, §5), and may be serialized at suspension. Runtime is
// rebuilt on load and is never part of the persisted form.
type WorkflowExecution struct {
	ID              string
	WorkflowID      string
	WorkflowVersion string
	ExecutionMode   string
	Status          ExecutionStatus

	Vars map[string]any

	// CurrentExecutionIndex is a monotonically increasing counter assigned
	// to each node execution as it starts.
	CurrentExecutionIndex int64

	// NodeExecutions maps node_key -> ordered list of NodeExecution records.
	NodeExecutions map[string][]NodeExecution

	// NodeOrder tracks the order node keys first appeared in NodeExecutions,
	// so a completed trace can be reconstructed without a timestamp sort.
	NodeOrder []string

	SuspendedNodeKey string
	ResumeToken      string

	Error *Error

	Runtime Runtime `json:"-"`
}

// NewWorkflowExecution creates a fresh pending execution for graph, merging
// workflow variables with the trigger input per §6 ("vars merged with
// workflow vars and trigger input at start").
func NewWorkflowExecution(graph *ExecutionGraph, vars map[string]any, env map[string]string) *WorkflowExecution {
	merged := make(map[string]any, len(graph.Variables)+len(vars))
	for k, v := range graph.Variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &WorkflowExecution{
		ID:              uuid.New().String(),
		WorkflowID:      graph.WorkflowID,
		WorkflowVersion: graph.WorkflowVersion,
		ExecutionMode:   "sequential",
		Status:          StatusPending,
		Vars:            merged,
		NodeExecutions:  map[string][]NodeExecution{},
		NodeOrder:       []string{},
		Runtime:         newRuntime(env),
	}
}

// NextExecutionIndex returns and increments the monotonic execution index
// counter (§3: "assigned to each node execution").
func (e *WorkflowExecution) NextExecutionIndex() int64 {
	idx := e.CurrentExecutionIndex
	e.CurrentExecutionIndex++
	return idx
}

// NextRunIndex returns the 0-based ordinal this node's next execution would
// have (§3: "run_index for a node's k-th execution equals k").
func (e *WorkflowExecution) NextRunIndex(nodeKey string) int {
	return len(e.NodeExecutions[nodeKey])
}

// AppendNodeExecution records ne under nodeKey, tracking first-seen order.
func (e *WorkflowExecution) AppendNodeExecution(nodeKey string, ne NodeExecution) {
	if _, ok := e.NodeExecutions[nodeKey]; !ok {
		e.NodeOrder = append(e.NodeOrder, nodeKey)
	}
	e.NodeExecutions[nodeKey] = append(e.NodeExecutions[nodeKey], ne)
}

// ReplaceLastNodeExecution overwrites the most recent NodeExecution entry
// for nodeKey, used by Resume to turn a suspended entry into a completed
// one (§4.6 step 2).
func (e *WorkflowExecution) ReplaceLastNodeExecution(nodeKey string, ne NodeExecution) bool {
	list := e.NodeExecutions[nodeKey]
	if len(list) == 0 {
		return false
	}
	list[len(list)-1] = ne
	e.NodeExecutions[nodeKey] = list
	return true
}

// LastNodeExecution returns the most recent NodeExecution recorded for key.
func (e *WorkflowExecution) LastNodeExecution(nodeKey string) (NodeExecution, bool) {
	list := e.NodeExecutions[nodeKey]
	if len(list) == 0 {
		return NodeExecution{}, false
	}
	return list[len(list)-1], true
}

// HasCompleted reports whether nodeKey has at least one completed run.
func (e *WorkflowExecution) HasCompleted(nodeKey string) bool {
	for _, ne := range e.NodeExecutions[nodeKey] {
		if ne.Status == NodeStatusCompleted {
			return true
		}
	}
	return false
}

// AllNodeExecutionsOrdered returns every recorded NodeExecution across all
// nodes, sorted by ExecutionIndex, matching §8's "sorting node_executions
// by execution_index produces the observed execution order."
func (e *WorkflowExecution) AllNodeExecutionsOrdered() []NodeExecution {
	var all []NodeExecution
	for _, list := range e.NodeExecutions {
		all = append(all, list...)
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].ExecutionIndex > all[j].ExecutionIndex; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}
	return all
}
