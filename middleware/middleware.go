// Package middleware implements the engine's observation surface as a slice
// of small hook functions invoked in order, one per lifecycle event (§9
// DESIGN NOTES: "middleware is a slice of hook interfaces invoked in order;
// each hook is a small function, not a behaviour with many callbacks").
// This deliberately replaces the teacher's internal/infrastructure/monitoring
// ExecutionObserver interface (OnExecutionStarted/OnNodeCompleted/... as a
// dozen methods on one type) with one Hook type and one Event struct, so a
// new concern (metrics, tracing, logging) is a single function, not an
// interface implementation.
package middleware

import "context"

// EventKind is the closed set of lifecycle events a Hook may observe (§5).
type EventKind string

const (
	EventExecutionStarted  EventKind = "execution_started"
	EventNodeStarting      EventKind = "node_starting"
	EventNodeCompleted     EventKind = "node_completed"
	EventNodeSuspended     EventKind = "node_suspended"
	EventNodeFailed        EventKind = "node_failed"
	EventExecutionSuspended EventKind = "execution_suspended"
	EventExecutionCompleted EventKind = "execution_completed"
	EventExecutionFailed    EventKind = "execution_failed"
)

// Event is a single lifecycle notification. Fields not relevant to Kind are
// left zero; it carries only plain values so this package has no dependency
// on the engine's domain model.
type Event struct {
	Kind          EventKind
	WorkflowID    string
	ExecutionID   string
	NodeKey       string
	NodeType      string
	OutputPort    string
	ErrorKind     string
	ErrorMessage  string
	DurationMs    int64
	RetryCount    int
}

// Hook observes one Event. Hooks must not block the engine for long and
// must not mutate anything reachable from Event; they exist purely to
// observe.
type Hook func(ctx context.Context, ev Event)

// Chain is an ordered list of hooks invoked in registration order. A nil
// *Chain is valid and a no-op, so callers can wire middleware optionally.
type Chain struct {
	hooks []Hook
}

// NewChain builds a Chain from hooks, invoked in the given order.
func NewChain(hooks ...Hook) *Chain {
	return &Chain{hooks: hooks}
}

// Use appends hooks to the chain, for building one up incrementally.
func (c *Chain) Use(hooks ...Hook) *Chain {
	if c == nil {
		c = &Chain{}
	}
	c.hooks = append(c.hooks, hooks...)
	return c
}

// Emit invokes every hook in order. A nil Chain emits nothing.
func (c *Chain) Emit(ctx context.Context, ev Event) {
	if c == nil {
		return
	}
	for _, h := range c.hooks {
		h(ctx, ev)
	}
}
