// Package nodeexec implements the Node Executor (spec §4.3): it dispatches a
// single node to its action, routing input from upstream ports, evaluating
// parameter templates, applying retry and on-error policy, and classifying
// the result into completed/failed/suspended. Grounded on the teacher's
// internal/application/executor (node_executors.go's dispatch shape,
// retry.go's backoff, error_strategies.go's stop/continue split), adapted
// from the teacher's node-type-per-executor registry to the spec's single
// Action.Handler contract.
package nodeexec

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/prana/internal/domain"
)

// Clock is injectable for deterministic timing in tests; nil defaults to
// time.Now.
type Clock func() time.Time

// Run executes node once, applying the node's retry and on-error policy
// internally, and returns the NodeExecution record for the execution's
// history. A non-nil *domain.Error return is always one of the fatal kinds
// from §4.7 (action_not_found, invalid_output_port); those must fail the
// whole execution regardless of the node's own on-error policy. Every other
// failure (action_error, action_exception, template_error, template_limit,
// timeout) is folded into the returned NodeExecution's Status/ErrorData by
// the node's on-error policy, never surfaced as a Go error.
func Run(
	ctx context.Context,
	node domain.Node,
	graph *domain.ExecutionGraph,
	exec *domain.WorkflowExecution,
	registry domain.Registry,
	runIndex int,
	loopback bool,
	now Clock,
) (domain.NodeExecution, *domain.Error) {
	if now == nil {
		now = time.Now
	}
	started := now()
	executionIndex := exec.NextExecutionIndex()

	action, ok := registry.Lookup(node.Type)
	if !ok {
		return domain.NodeExecution{}, domain.NewError(
			domain.ErrActionNotFound,
			fmt.Sprintf("no action registered for type %q", node.Type),
			nil,
		)
	}

	routedInput := RouteInput(node, graph, exec)
	renderedParams, rErr := RenderParams(node, routedInput, graph, exec, executionIndex, runIndex, loopback)

	var (
		ok2        domain.Result
		errKind    domain.ErrorKind
		payload    domain.ActionResultError
		failed     bool
		retryCount int
	)

	if rErr != nil {
		de := rErr.(*domain.Error)
		errKind = de.Kind
		payload = domain.ActionResultError{Code: string(de.Kind), Message: de.Message}
		failed = true
	} else {
		policy := node.Settings.Retry
		maxAttempts := 1
		if policy != nil && policy.MaxAttempts > maxAttempts {
			maxAttempts = policy.MaxAttempts
		}

		for attempt := 1; ; attempt++ {
			r, panicked, panicMsg, timedOut := invoke(ctx, action, renderedParams, routedInput, exec.Vars, node.Settings.TimeoutSeconds)

			switch {
			case timedOut:
				errKind = domain.ErrTimeout
				payload = domain.ActionResultError{
					Code:    string(domain.ErrTimeout),
					Message: fmt.Sprintf("node %q exceeded timeout of %ds", node.Key, node.Settings.TimeoutSeconds),
				}
				failed = true
			case panicked:
				errKind = domain.ErrActionException
				payload = domain.ActionResultError{Code: string(domain.ErrActionException), Message: panicMsg}
				failed = true
			case r.Kind == domain.ResultSuspend:
				completed := now()
				return domain.NodeExecution{
					NodeKey:        node.Key,
					ExecutionIndex: executionIndex,
					RunIndex:       runIndex,
					Status:         domain.NodeStatusSuspended,
					StartedAt:      started,
					CompletedAt:    completed,
					DurationMs:     completed.Sub(started).Milliseconds(),
					SuspensionType: r.SuspendType,
					SuspensionData: r.SuspendData,
				}, nil
			case r.Kind == domain.ResultErr:
				errKind = domain.ErrActionError
				payload = domain.ActionResultError{Code: r.ErrCode, Message: r.ErrMessage, Details: r.ErrDetails}
				failed = true
			default: // Ok
				port := r.Port
				if port == "" {
					port = action.DefaultSuccessPort
				}
				if !action.HasOutputPort(port) {
					return domain.NodeExecution{}, domain.NewError(
						domain.ErrInvalidOutputPort,
						fmt.Sprintf("action %q does not declare output port %q", action.Name, port),
						nil,
					)
				}
				ok2 = r
				ok2.Port = port
				failed = false
			}

			if !failed {
				break
			}
			if policy != nil && attempt < maxAttempts && retryable(policy, errKind) {
				retryCount++
				time.Sleep(backoffDelay(policy, attempt))
				continue
			}
			break
		}
	}

	completed := now()
	if !failed {
		return domain.NodeExecution{
			NodeKey:        node.Key,
			ExecutionIndex: executionIndex,
			RunIndex:       runIndex,
			Status:         domain.NodeStatusCompleted,
			StartedAt:      started,
			CompletedAt:    completed,
			DurationMs:     completed.Sub(started).Milliseconds(),
			OutputData:     ok2.Data,
			OutputPort:     ok2.Port,
			RetryCount:     retryCount,
		}, nil
	}

	return applyOnErrorPolicy(node, action, executionIndex, runIndex, started, completed, payload, retryCount), nil
}

// applyOnErrorPolicy folds a classified action-level failure into the
// node's on-error policy (§4.3 step 6, default stop_workflow).
func applyOnErrorPolicy(
	node domain.Node,
	action *domain.Action,
	executionIndex int64,
	runIndex int,
	started, completed time.Time,
	payload domain.ActionResultError,
	retryCount int,
) domain.NodeExecution {
	ne := domain.NodeExecution{
		NodeKey:        node.Key,
		ExecutionIndex: executionIndex,
		RunIndex:       runIndex,
		StartedAt:      started,
		CompletedAt:    completed,
		DurationMs:     completed.Sub(started).Milliseconds(),
		ErrorData:      &payload,
		RetryCount:     retryCount,
	}

	switch node.Settings.OnError.Normalize() {
	case domain.OnErrorContinue:
		ne.Status = domain.NodeStatusCompleted
		ne.OutputPort = action.DefaultSuccessPort
		ne.OutputData = map[string]any{"code": payload.Code, "message": payload.Message, "details": payload.Details}
	case domain.OnErrorContinueErrorOut:
		ne.Status = domain.NodeStatusCompleted
		ne.OutputPort = action.DefaultErrorPort
		ne.OutputData = map[string]any{"code": payload.Code, "message": payload.Message, "details": payload.Details}
	default: // stop_workflow
		ne.Status = domain.NodeStatusFailed
	}
	return ne
}

// invoke calls the action's handler, applying an optional timeout and
// recovering a panic as an action_exception (§4.7). Per §5 the executor
// does not pre-empt a running handler; timeoutSeconds only bounds the
// context deadline the handler is expected to honor and is used to
// reclassify an overrun as a timeout once the (synchronous) call returns.
func invoke(
	ctx context.Context,
	action *domain.Action,
	params, routedInput, vars map[string]any,
	timeoutSeconds int,
) (result domain.Result, panicked bool, panicMsg string, timedOut bool) {
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				panicMsg = fmt.Sprint(r)
			}
		}()
		result = action.Handler(ctx, params, routedInput, vars)
	}()

	if timeoutSeconds > 0 && ctx.Err() == context.DeadlineExceeded {
		timedOut = true
	}
	return
}
