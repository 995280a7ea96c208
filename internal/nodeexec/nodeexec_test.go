package nodeexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/prana/internal/domain"
	"github.com/smilemakc/prana/internal/registry"
)

// stepClock returns a Clock that advances by step on every call, giving
// deterministic, strictly-increasing timestamps without touching time.Now.
func stepClock(start time.Time, step time.Duration) Clock {
	t := start
	first := true
	return func() time.Time {
		if first {
			first = false
			return t
		}
		t = t.Add(step)
		return t
	}
}

// singleNodeGraph builds the minimal graph/exec pair needed to run one node
// in isolation: a trigger plus the node under test, with the trigger
// already recorded as completed so RouteInput/RenderParams see $input.
func singleNodeGraph(node domain.Node) (*domain.ExecutionGraph, *domain.WorkflowExecution) {
	graph := &domain.ExecutionGraph{
		WorkflowID:     "wf",
		TriggerNodeKey: "t",
		NodeMap:        map[string]domain.Node{"t": {Key: "t", Type: "test.trigger"}, node.Key: node},
		ConnectionMap: map[domain.PortKey][]domain.Connection{
			{NodeKey: "t", Port: "main"}: {{FromNode: "t", FromPort: "main", ToNode: node.Key, ToPort: "main"}},
		},
		ReverseConnectionMap: map[string][]domain.Connection{
			node.Key: {{FromNode: "t", FromPort: "main", ToNode: node.Key, ToPort: "main"}},
		},
		NodeOrder: []string{"t", node.Key},
		LoopMeta:  map[string]domain.LoopMetadata{},
	}
	exec := domain.NewWorkflowExecution(graph, map[string]any{"age": 30}, nil)
	exec.Runtime.Nodes["t"] = map[string]any{"age": 30}
	exec.Runtime.ActivePaths[domain.PortKey{NodeKey: "t", Port: "main"}] = true
	exec.Runtime.ExecutedNodes = append(exec.Runtime.ExecutedNodes, "t")
	exec.AppendNodeExecution("t", domain.NodeExecution{NodeKey: "t", Status: domain.NodeStatusCompleted, OutputPort: "main", OutputData: map[string]any{"age": 30}})
	return graph, exec
}

func TestRunCompletesOnOk(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.ok", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.OkResult(input, "main")
		},
	})
	node := domain.Node{Key: "n", Type: "test.ok"}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, stepClock(time.Unix(0, 0), time.Millisecond))
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusCompleted, ne.Status)
	assert.Equal(t, "main", ne.OutputPort)
	assert.Equal(t, 0, ne.RunIndex)
}

func TestRunActionNotFoundIsFatal(t *testing.T) {
	reg := registry.New()
	node := domain.Node{Key: "n", Type: "missing.type"}
	graph, exec := singleNodeGraph(node)

	_, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.NotNil(t, fatal)
	assert.Equal(t, domain.ErrActionNotFound, fatal.Kind)
}

func TestRunInvalidOutputPortIsFatal(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.bad_port", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.OkResult(input, "nonexistent")
		},
	})
	node := domain.Node{Key: "n", Type: "test.bad_port"}
	graph, exec := singleNodeGraph(node)

	_, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.NotNil(t, fatal)
	assert.Equal(t, domain.ErrInvalidOutputPort, fatal.Kind)
}

func TestRunStopWorkflowOnError(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.err", OutputPorts: []string{"main", "error"}, DefaultSuccessPort: "main", DefaultErrorPort: "error",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.ErrResult("boom", "nope", nil)
		},
	})
	node := domain.Node{Key: "n", Type: "test.err"}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusFailed, ne.Status)
	require.NotNil(t, ne.ErrorData)
	assert.Equal(t, "boom", ne.ErrorData.Code)
}

func TestRunContinueOnErrorRoutesSuccessPort(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.err", OutputPorts: []string{"main", "error"}, DefaultSuccessPort: "main", DefaultErrorPort: "error",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.ErrResult("boom", "nope", nil)
		},
	})
	node := domain.Node{Key: "n", Type: "test.err", Settings: domain.NodeSettings{OnError: domain.OnErrorContinue}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusCompleted, ne.Status)
	assert.Equal(t, "main", ne.OutputPort)
	payload, ok := ne.OutputData.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", payload["code"])
}

func TestRunContinueErrorOutputRoutesErrorPort(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.err", OutputPorts: []string{"main", "error"}, DefaultSuccessPort: "main", DefaultErrorPort: "error",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.ErrResult("boom", "nope", nil)
		},
	})
	node := domain.Node{Key: "n", Type: "test.err", Settings: domain.NodeSettings{OnError: domain.OnErrorContinueErrorOut}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusCompleted, ne.Status)
	assert.Equal(t, "error", ne.OutputPort)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	reg := registry.New()
	attempts := 0
	reg.Register(&domain.Action{
		Name: "test.flaky", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			attempts++
			if attempts < 3 {
				return domain.ErrResult("transient", "try again", nil)
			}
			return domain.OkResult(input, "main")
		},
	})
	node := domain.Node{Key: "n", Type: "test.flaky", Settings: domain.NodeSettings{
		Retry: &domain.RetryPolicy{MaxAttempts: 3, Backoff: domain.BackoffFixed, InitialDelayMs: 0},
	}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusCompleted, ne.Status)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, ne.RetryCount)
}

func TestRunRetryExhaustedFails(t *testing.T) {
	reg := registry.New()
	attempts := 0
	reg.Register(&domain.Action{
		Name: "test.always_fails", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			attempts++
			return domain.ErrResult("boom", "never works", nil)
		},
	})
	node := domain.Node{Key: "n", Type: "test.always_fails", Settings: domain.NodeSettings{
		Retry: &domain.RetryPolicy{MaxAttempts: 2, Backoff: domain.BackoffFixed, InitialDelayMs: 0},
	}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusFailed, ne.Status)
	assert.Equal(t, 2, attempts)
}

func TestRunRetryOnErrorsFiltersKind(t *testing.T) {
	reg := registry.New()
	attempts := 0
	reg.Register(&domain.Action{
		Name: "test.always_fails", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			attempts++
			return domain.ErrResult("boom", "never works", nil)
		},
	})
	node := domain.Node{Key: "n", Type: "test.always_fails", Settings: domain.NodeSettings{
		Retry: &domain.RetryPolicy{MaxAttempts: 5, Backoff: domain.BackoffFixed, RetryOnErrors: []domain.ErrorKind{domain.ErrTimeout}},
	}}
	graph, exec := singleNodeGraph(node)

	_, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, 1, attempts, "action_error kind isn't in retry_on_errors, so no retry should happen")
}

func TestRunRecoversPanicAsActionException(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.panics", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			panic("kaboom")
		},
	})
	node := domain.Node{Key: "n", Type: "test.panics"}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusFailed, ne.Status)
	require.NotNil(t, ne.ErrorData)
	assert.Equal(t, string(domain.ErrActionException), ne.ErrorData.Code)
}

func TestRunTimesOut(t *testing.T) {
	reg := registry.New()
	reg.Register(&domain.Action{
		Name: "test.slow", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			<-ctx.Done()
			return domain.OkResult(input, "main")
		},
	})
	node := domain.Node{Key: "n", Type: "test.slow", Settings: domain.NodeSettings{TimeoutSeconds: 1}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, domain.NodeStatusFailed, ne.Status)
	require.NotNil(t, ne.ErrorData)
	assert.Equal(t, string(domain.ErrTimeout), ne.ErrorData.Code)
}

func TestRunTemplateErrorFailsWithoutInvokingHandler(t *testing.T) {
	reg := registry.New()
	invoked := false
	reg.Register(&domain.Action{
		Name: "test.templated", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			invoked = true
			return domain.OkResult(input, "main")
		},
	})
	node := domain.Node{Key: "n", Type: "test.templated", Params: map[string]any{"bad": "{{ $input.main. }}"}}
	graph, exec := singleNodeGraph(node)

	ne, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.False(t, invoked, "a template error must fail the node before the handler ever runs")
	assert.Equal(t, domain.NodeStatusFailed, ne.Status)
	require.NotNil(t, ne.ErrorData)
	assert.Equal(t, string(domain.ErrTemplateError), ne.ErrorData.Code)
}

func TestRunRendersTemplatedParams(t *testing.T) {
	reg := registry.New()
	var seenAge any
	reg.Register(&domain.Action{
		Name: "test.reads_param", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			seenAge = params["is_adult"]
			return domain.OkResult(input, "main")
		},
	})
	node := domain.Node{Key: "n", Type: "test.reads_param", Params: map[string]any{"is_adult": "{{ $input.main.age >= 18 }}"}}
	graph, exec := singleNodeGraph(node)

	_, fatal := Run(context.Background(), node, graph, exec, reg, 0, false, nil)
	require.Nil(t, fatal)
	assert.Equal(t, true, seenAge)
}
