package prana

import (
	"context"

	"github.com/smilemakc/prana/internal/graphexec"
)

// Resume continues a suspended execution from the node it suspended at
// (§4.6). port overrides the action's default_success_port when non-empty,
// grounded on the teacher's sub_workflow.go status-dependent routing
// (SUPPLEMENTED FEATURES). Returns an error, rather than a Failed Outcome,
// when exec is not suspended (invalid_execution_status), when its suspended
// node is unset or absent from graph (invalid_suspended_execution), or when
// that node's action is not registered (action_not_found).
func Resume(ctx context.Context, exec *WorkflowExecution, resumeData any, port string, graph *ExecutionGraph, rc Context) (Outcome, error) {
	rc = withDefaultLogging(rc)
	return graphexec.Resume(ctx, exec, resumeData, port, graph, rc)
}
