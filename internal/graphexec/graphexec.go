// Package graphexec implements the Graph Executor (spec §4.2): the
// cooperative, single-threaded scheduling loop that walks an
// *domain.ExecutionGraph one ready node at a time, driving each through the
// Node Executor (internal/nodeexec) until the execution completes, fails,
// or suspends (§4.6). Grounded on the teacher's internal/application/
// executor/engine.go Plan->Execute->Finalize shape, replaced with the
// spec's SelectReady/PickOne/RouteOutput scheduler since the teacher's wave-
// based parallel executor doesn't fit a deliberately sequential engine (§5).
package graphexec

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/prana/internal/domain"
	"github.com/smilemakc/prana/internal/nodeexec"
	"github.com/smilemakc/prana/middleware"
)

var defaultNow = time.Now

// Context is every external collaborator and input an execution needs
// beyond the compiled graph (§6: "context carries vars, env, and an
// optional workflow_loader"; Registry and Hooks are threaded the same way
// since the graph executor needs both at run time, not just at compile
// time).
type Context struct {
	Vars           map[string]any
	Env            map[string]string
	WorkflowLoader domain.WorkflowLoader
	Registry       domain.Registry
	Hooks          *middleware.Chain
	Now            nodeexec.Clock
}

// Status is the terminal (or suspended) shape Execute/Resume return (§6:
// "Execute(graph, context) -> Completed(execution, output) |
// Suspended(execution) | Failed(execution)").
type Status int

const (
	StatusCompleted Status = iota
	StatusSuspended
	StatusFailed
)

// Outcome is the result of driving an execution to its next stopping point.
type Outcome struct {
	Status    Status
	Execution *domain.WorkflowExecution
	Output    any
}

// Execute starts a fresh execution of graph and drives it to completion,
// failure, or suspension (§4.2).
func Execute(ctx context.Context, graph *domain.ExecutionGraph, rc Context) Outcome {
	ctx = withWorkflowLoader(ctx, rc)
	exec := domain.NewWorkflowExecution(graph, rc.Vars, rc.Env)
	exec.Status = domain.StatusRunning
	exec.Runtime.ActiveNodes[graph.TriggerNodeKey] = true

	rc.Hooks.Emit(ctx, middleware.Event{
		Kind:        middleware.EventExecutionStarted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
	})

	return runLoop(ctx, graph, exec, rc)
}

// Resume continues a suspended execution (§4.6): rebuild its runtime from
// the persisted node_executions, replace the suspended node's record with a
// completed one carrying resumeData on port (or the action's
// default_success_port when port is empty), route that output, and resume
// the main loop. The two validation failures are returned as a Go error per
// §7 ("returned to caller") rather than folded into a Failed Outcome.
func Resume(ctx context.Context, exec *domain.WorkflowExecution, resumeData any, port string, graph *domain.ExecutionGraph, rc Context) (Outcome, error) {
	ctx = withWorkflowLoader(ctx, rc)
	if exec.Status != domain.StatusSuspended {
		return Outcome{}, domain.NewError(domain.ErrInvalidExecutionStatus, "Resume called on an execution that is not suspended", nil)
	}
	if exec.SuspendedNodeKey == "" {
		return Outcome{}, domain.NewError(domain.ErrInvalidSuspendedExecution, "suspended execution has no suspended node recorded", nil)
	}

	rebuildRuntime(graph, exec, rc.Env)

	node, ok := graph.NodeMap[exec.SuspendedNodeKey]
	if !ok {
		return Outcome{}, domain.NewError(domain.ErrInvalidSuspendedExecution, "suspended node is no longer present in the compiled graph", nil)
	}
	action, ok := rc.Registry.Lookup(node.Type)
	if !ok {
		return Outcome{}, domain.NewError(domain.ErrActionNotFound, "no action registered for the suspended node's type", nil)
	}

	outPort := port
	if outPort == "" {
		outPort = action.DefaultSuccessPort
	}

	prev, _ := exec.LastNodeExecution(exec.SuspendedNodeKey)
	now := rc.Now
	if now == nil {
		now = defaultNow
	}
	completed := now()
	ne := domain.NodeExecution{
		NodeKey:        exec.SuspendedNodeKey,
		ExecutionIndex: prev.ExecutionIndex,
		RunIndex:       prev.RunIndex,
		Status:         domain.NodeStatusCompleted,
		StartedAt:      prev.StartedAt,
		CompletedAt:    completed,
		DurationMs:     completed.Sub(prev.StartedAt).Milliseconds(),
		OutputData:     resumeData,
		OutputPort:     outPort,
	}
	exec.ReplaceLastNodeExecution(exec.SuspendedNodeKey, ne)
	delete(exec.Runtime.ActiveNodes, exec.SuspendedNodeKey)
	routeOutput(graph, exec, exec.SuspendedNodeKey, outPort, resumeData)

	exec.Status = domain.StatusRunning
	exec.SuspendedNodeKey = ""

	rc.Hooks.Emit(ctx, middleware.Event{
		Kind:        middleware.EventNodeCompleted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		NodeKey:     node.Key,
		NodeType:    node.Type,
		OutputPort:  outPort,
		DurationMs:  ne.DurationMs,
	})

	return runLoop(ctx, graph, exec, rc), nil
}

// runLoop is the cooperative scheduling loop shared by Execute and Resume:
// repeatedly select the ready set, pick one, run it, route its output, and
// stop at the first terminal or suspended outcome.
func runLoop(ctx context.Context, graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, rc Context) Outcome {
	for {
		ready := selectReady(graph, exec)
		if len(ready) == 0 {
			if len(exec.Runtime.ActiveNodes) > 0 {
				// Nodes remain active but none are ready: every one of them
				// is blocked on an upstream that is itself still pending
				// (§4.2 "if any upstream still pending: return ok, waiting
				// for external resume"). In this engine the only point that
				// yields for an external resume is a suspension, which
				// returns eagerly in the NodeStatusSuspended case below;
				// reaching this with active
				// nodes left over means the graph can never make further
				// progress on its own, so it is reported as failed rather
				// than silently marked completed.
				exec.Status = domain.StatusFailed
				exec.Error = domain.NewError(domain.ErrInvalidExecutionStatus, "execution stalled: active nodes remain but none are ready and nothing is suspended", nil)
				rc.Hooks.Emit(ctx, middleware.Event{
					Kind:         middleware.EventExecutionFailed,
					WorkflowID:   exec.WorkflowID,
					ExecutionID:  exec.ID,
					ErrorKind:    string(domain.ErrInvalidExecutionStatus),
					ErrorMessage: exec.Error.Message,
				})
				return Outcome{Status: StatusFailed, Execution: exec}
			}
			exec.Status = domain.StatusCompleted
			out := lastOutput(exec)
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventExecutionCompleted,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
			})
			return Outcome{Status: StatusCompleted, Execution: exec, Output: out}
		}

		next := pickOne(graph, exec, ready)
		runIndex := exec.NextRunIndex(next.Key)
		loopback := exec.HasCompleted(next.Key)
		delete(exec.Runtime.ActiveNodes, next.Key)

		rc.Hooks.Emit(ctx, middleware.Event{
			Kind:        middleware.EventNodeStarting,
			WorkflowID:  exec.WorkflowID,
			ExecutionID: exec.ID,
			NodeKey:     next.Key,
			NodeType:    next.Type,
		})

		ne, fatal := nodeexec.Run(ctx, next, graph, exec, rc.Registry, runIndex, loopback, rc.Now)
		if fatal != nil {
			exec.Status = domain.StatusFailed
			exec.Error = fatal
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventExecutionFailed,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
				NodeKey:     next.Key,
				NodeType:    next.Type,
				ErrorKind:   string(fatal.Kind),
				ErrorMessage: fatal.Message,
			})
			return Outcome{Status: StatusFailed, Execution: exec}
		}
		exec.AppendNodeExecution(next.Key, ne)

		switch ne.Status {
		case domain.NodeStatusCompleted:
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventNodeCompleted,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
				NodeKey:     next.Key,
				NodeType:    next.Type,
				OutputPort:  ne.OutputPort,
				DurationMs:  ne.DurationMs,
				RetryCount:  ne.RetryCount,
			})
			routeOutput(graph, exec, next.Key, ne.OutputPort, ne.OutputData)

		case domain.NodeStatusSuspended:
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventNodeSuspended,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
				NodeKey:     next.Key,
				NodeType:    next.Type,
			})
			exec.Status = domain.StatusSuspended
			exec.SuspendedNodeKey = next.Key
			exec.ResumeToken = uuid.New().String()
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventExecutionSuspended,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
			})
			return Outcome{Status: StatusSuspended, Execution: exec}

		default: // NodeStatusFailed, via stop_workflow on-error policy
			errKind, errMsg := "", ""
			if ne.ErrorData != nil {
				errKind, errMsg = ne.ErrorData.Code, ne.ErrorData.Message
			}
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:         middleware.EventNodeFailed,
				WorkflowID:   exec.WorkflowID,
				ExecutionID:  exec.ID,
				NodeKey:      next.Key,
				NodeType:     next.Type,
				ErrorKind:    errKind,
				ErrorMessage: errMsg,
				DurationMs:   ne.DurationMs,
			})
			exec.Status = domain.StatusFailed
			if ne.ErrorData != nil {
				exec.Error = domain.NewErrorWithDetails(domain.ErrActionError, ne.ErrorData.Message, ne.ErrorData.Details, nil)
			}
			rc.Hooks.Emit(ctx, middleware.Event{
				Kind:        middleware.EventExecutionFailed,
				WorkflowID:  exec.WorkflowID,
				ExecutionID: exec.ID,
				NodeKey:     next.Key,
				NodeType:    next.Type,
				ErrorKind:   errKind,
				ErrorMessage: errMsg,
			})
			return Outcome{Status: StatusFailed, Execution: exec}
		}
	}
}

// withWorkflowLoader attaches rc.WorkflowLoader to ctx when present, so a
// sub-workflow action's handler can retrieve it via
// domain.WorkflowLoaderFromContext (§6 "context carries ... an optional
// workflow_loader used by sub-workflow actions").
func withWorkflowLoader(ctx context.Context, rc Context) context.Context {
	if rc.WorkflowLoader == nil {
		return ctx
	}
	return domain.WithWorkflowLoader(ctx, rc.WorkflowLoader)
}

// lastOutput returns the output of the most recently executed node, used as
// the execution's final output value on completion (§6).
func lastOutput(exec *domain.WorkflowExecution) any {
	n := len(exec.Runtime.ExecutedNodes)
	if n == 0 {
		return nil
	}
	return exec.Runtime.Nodes[exec.Runtime.ExecutedNodes[n-1]]
}
