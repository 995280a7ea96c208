package domain

// Node is a unit of work in a Workflow, addressed by a unique Key and
// realized by an Action looked up from Type ("integration.action").
// Grounded on the teacher's internal/domain/node.go shape, extended with
// Params/Settings/Metadata per §3.
type Node struct {
	Key      string
	Name     string
	Type     string
	Params   map[string]any
	Settings NodeSettings
	Metadata map[string]any
}

// NodeSettings carries per-node execution policy: retry and on-error
// behavior (§4.3 steps 5-6) plus an optional handler timeout (§5).
type NodeSettings struct {
	Retry          *RetryPolicy
	OnError        OnErrorPolicy
	TimeoutSeconds int
}

// OnErrorPolicy is the per-node failure-propagation choice (§4.3 step 6).
// The zero value behaves as stop_workflow, the spec's default.
type OnErrorPolicy string

const (
	OnErrorStopWorkflow     OnErrorPolicy = "stop_workflow"
	OnErrorContinue         OnErrorPolicy = "continue"
	OnErrorContinueErrorOut OnErrorPolicy = "continue_error_output"
)

// Normalize treats the empty string as the implicit stop_workflow default.
func (p OnErrorPolicy) Normalize() OnErrorPolicy {
	if p == "" {
		return OnErrorStopWorkflow
	}
	return p
}

// RetryBackoff selects the delay strategy between retry attempts (§4.3 step 5).
type RetryBackoff string

const (
	BackoffFixed       RetryBackoff = "fixed"
	BackoffExponential RetryBackoff = "exponential"
)

// RetryPolicy governs retries of a failed action invocation.
type RetryPolicy struct {
	MaxAttempts    int
	Backoff        RetryBackoff
	InitialDelayMs int64
	MaxDelayMs     int64
	Multiplier     float64
	RetryOnErrors  []ErrorKind // empty means retry any kind
}

// Connection is a directed edge from (FromNode, FromPort) to (ToNode, ToPort).
// Connections are uniquely identified by this 4-tuple (§3).
type Connection struct {
	FromNode string
	FromPort string
	ToNode   string
	ToPort   string
}

// PortKey identifies an outgoing port of a node, used as the key of the
// canonical connection map.
type PortKey struct {
	NodeKey string
	Port    string
}

// Workflow is the authoring-form declarative description: nodes plus
// connections plus workflow-scoped variables and metadata (§3).
type Workflow struct {
	ID          string
	Version     string
	Nodes       []Node
	Connections []Connection
	Variables   map[string]any
	Metadata    map[string]any
}

// NodeByKey returns the node with the given key, or false if absent.
func (w *Workflow) NodeByKey(key string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return Node{}, false
}

// CanonicalConnections builds the canonical (from_node, from_port) -> ordered
// []Connection map, preserving authoring order within each port's list, per
// §4.1 step 1. Authoring order determines tie-break at routing time.
func (w *Workflow) CanonicalConnections() map[PortKey][]Connection {
	out := make(map[PortKey][]Connection, len(w.Connections))
	for _, c := range w.Connections {
		k := PortKey{NodeKey: c.FromNode, Port: c.FromPort}
		out[k] = append(out[k], c)
	}
	return out
}
