// Package prana implements a workflow execution engine: a Compiler that
// turns a declarative Workflow into a pruned, routable ExecutionGraph, and a
// Graph Executor that drives that graph one ready node at a time through
// the Node Executor, suspending and resuming at a single node's boundary
// when an action asks to. This root file is the public façade, grounded on
// the teacher's factory.go/mbflow.go pattern of re-exporting internal types
// by alias so callers never import internal/* directly.
package prana

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/smilemakc/prana/internal/compiler"
	"github.com/smilemakc/prana/internal/domain"
	"github.com/smilemakc/prana/internal/graphexec"
	"github.com/smilemakc/prana/internal/registry"
	"github.com/smilemakc/prana/middleware"
)

// Re-exported data model types (§3), so a caller builds workflows and reads
// executions entirely against the prana package.
type (
	Workflow          = domain.Workflow
	Node              = domain.Node
	NodeSettings      = domain.NodeSettings
	Connection        = domain.Connection
	RetryPolicy       = domain.RetryPolicy
	ExecutionGraph    = domain.ExecutionGraph
	WorkflowExecution = domain.WorkflowExecution
	NodeExecution     = domain.NodeExecution
	Action            = domain.Action
	Result            = domain.Result
	Registry          = domain.Registry
	WorkflowLoader    = domain.WorkflowLoader
	Error             = domain.Error
	ErrorKind         = domain.ErrorKind
)

const (
	OnErrorStopWorkflow     = domain.OnErrorStopWorkflow
	OnErrorContinue         = domain.OnErrorContinue
	OnErrorContinueErrorOut = domain.OnErrorContinueErrorOut

	BackoffFixed       = domain.BackoffFixed
	BackoffExponential = domain.BackoffExponential
)

var (
	OkResult      = domain.OkResult
	ErrResult     = domain.ErrResult
	SuspendResult = domain.SuspendResult
)

// NewRegistry builds an empty, concurrent-safe in-memory action registry
// (§6 Registry contract).
func NewRegistry() *registry.InMemory {
	return registry.New()
}

// Context carries everything an Execute/Resume call needs beyond the graph
// itself: variables, environment, the action registry, an optional
// sub-workflow loader, and an optional middleware chain (§5, §6).
type Context = graphexec.Context

// Outcome and its Status triad mirror §6's
// "Completed(execution, output) | Suspended(execution) | Failed(execution)".
type (
	Outcome = graphexec.Outcome
	Status  = graphexec.Status
)

const (
	StatusCompleted = graphexec.StatusCompleted
	StatusSuspended = graphexec.StatusSuspended
	StatusFailed    = graphexec.StatusFailed
)

// Logger is the package-level default sink for lifecycle events not routed
// through an explicit middleware chain; callers may reassign it, the same
// shape as the teacher's zerolog.Logger fields in factory.go.
var Logger = log.Logger

// Compile turns workflow into an ExecutionGraph, discovering the trigger
// node via triggerKey (or by uniqueness among registered trigger actions
// when triggerKey is empty) and pruning everything unreachable from it
// (§4.1).
func Compile(workflow *Workflow, triggerKey string, reg Registry) (*ExecutionGraph, error) {
	return compiler.Compile(workflow, triggerKey, reg)
}

// Execute starts a fresh execution of graph and drives it to completion,
// failure, or suspension (§4.2). If rc.Hooks is nil, lifecycle events are
// still logged through Logger via a hook chain built for this call.
func Execute(ctx context.Context, graph *ExecutionGraph, rc Context) Outcome {
	rc = withDefaultLogging(rc)
	return graphexec.Execute(ctx, graph, rc)
}

func withDefaultLogging(rc Context) Context {
	if rc.Hooks != nil {
		return rc
	}
	rc.Hooks = middleware.NewChain(middleware.NewLoggingHook(Logger))
	return rc
}
