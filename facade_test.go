package prana

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/prana/internal/domain"
	"github.com/smilemakc/prana/internal/registry"
)

// triggerAction echoes the execution's merged vars as its output, so a
// test's rc.Vars becomes the initial $input downstream.
func triggerAction() *domain.Action {
	return &domain.Action{
		Name: "test.trigger", Kind: domain.ActionKindTrigger,
		OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.OkResult(vars, "main")
		},
	}
}

func passThroughAction() *domain.Action {
	return &domain.Action{
		Name: "test.pass_through", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.OkResult(input, "main")
		},
	}
}

// captureAction records the routed_input it receives into *dst, then
// passes it through unchanged, so a test can inspect exactly what a merge
// or downstream node was given.
func captureAction(dst *map[string]any) *domain.Action {
	return &domain.Action{
		Name: "test.capture", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			*dst = input
			return domain.OkResult(input, "main")
		},
	}
}

func baseRegistry() *registry.InMemory {
	r := registry.New()
	r.Register(triggerAction())
	r.Register(passThroughAction())
	return r
}

// TestLinearWorkflow covers scenario S1: t -> a -> b, all pass-through,
// expecting a fully ordered completed execution.
func TestLinearWorkflow(t *testing.T) {
	wf := &domain.Workflow{
		ID: "wf-s1", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "a", Type: "test.pass_through"},
			{Key: "b", Type: "test.pass_through"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "a", ToPort: "main"},
			{FromNode: "a", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	}
	reg := baseRegistry()
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Vars: map[string]any{"x": 1}, Registry: reg})
	require.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, []string{"t", "a", "b"}, out.Execution.Runtime.ExecutedNodes)
	for _, pk := range []domain.PortKey{{NodeKey: "t", Port: "main"}, {NodeKey: "a", Port: "main"}, {NodeKey: "b", Port: "main"}} {
		assert.True(t, out.Execution.Runtime.ActivePaths[pk], "expected active path %+v", pk)
	}
}

// TestDiamondMerge covers S2: t -> b1, t -> b2; b1, b2 -> merge. merge must
// receive both upstream outputs as an ordered list.
func TestDiamondMerge(t *testing.T) {
	var captured map[string]any
	reg := baseRegistry()
	reg.Register(captureAction(&captured))

	wf := &domain.Workflow{
		ID: "wf-s2", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "b1", Type: "test.pass_through"},
			{Key: "b2", Type: "test.pass_through"},
			{Key: "merge", Type: "test.capture"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "b1", ToPort: "main"},
			{FromNode: "t", FromPort: "main", ToNode: "b2", ToPort: "main"},
			{FromNode: "b1", FromPort: "main", ToNode: "merge", ToPort: "main"},
			{FromNode: "b2", FromPort: "main", ToNode: "merge", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Registry: reg})
	require.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "merge", out.Execution.Runtime.ExecutedNodes[len(out.Execution.Runtime.ExecutedNodes)-1])

	list, ok := captured["main"].([]any)
	require.True(t, ok, "expected merge's main port to carry an ordered list, got %T", captured["main"])
	assert.Len(t, list, 2)
}

// TestDiamondFailingBranch covers S3: b1 fails with the default
// stop_workflow policy; the execution fails before merge ever runs.
func TestDiamondFailingBranch(t *testing.T) {
	reg := baseRegistry()
	reg.Register(&domain.Action{
		Name: "test.boom", OutputPorts: []string{"main"}, DefaultSuccessPort: "main", DefaultErrorPort: "error",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.ErrResult("boom", "branch failed", nil)
		},
	})

	wf := &domain.Workflow{
		ID: "wf-s3", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "b1", Type: "test.boom"},
			{Key: "b2", Type: "test.pass_through"},
			{Key: "merge", Type: "test.pass_through"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "b1", ToPort: "main"},
			{FromNode: "t", FromPort: "main", ToNode: "b2", ToPort: "main"},
			{FromNode: "b1", FromPort: "main", ToNode: "merge", ToPort: "main"},
			{FromNode: "b2", FromPort: "main", ToNode: "merge", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Registry: reg})
	require.Equal(t, StatusFailed, out.Status)
	_, hasMerge := out.Execution.NodeExecutions["merge"]
	assert.False(t, hasMerge, "merge must not have run once a stop_workflow branch fails")
}

// TestOnErrorContinueErrorOutput covers S4: a node's err is converted to a
// completed NodeExecution on its default_error_port, and downstream runs.
func TestOnErrorContinueErrorOutput(t *testing.T) {
	var captured map[string]any
	reg := baseRegistry()
	reg.Register(captureAction(&captured))
	reg.Register(&domain.Action{
		Name: "test.err_node", OutputPorts: []string{"main", "error"}, DefaultSuccessPort: "main", DefaultErrorPort: "error",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.ErrResult("boom", "bad thing", map[string]any{"at": "n"})
		},
	})

	wf := &domain.Workflow{
		ID: "wf-s4", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "n", Type: "test.err_node", Settings: domain.NodeSettings{OnError: domain.OnErrorContinueErrorOut}},
			{Key: "h", Type: "test.capture"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "n", ToPort: "main"},
			{FromNode: "n", FromPort: "error", ToNode: "h", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Registry: reg})
	require.Equal(t, StatusCompleted, out.Status)

	ne, ok := out.Execution.LastNodeExecution("n")
	require.True(t, ok)
	assert.Equal(t, domain.NodeStatusCompleted, ne.Status)
	assert.Equal(t, "error", ne.OutputPort)

	payload, ok := captured["main"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", payload["code"])
}

// TestConditionalBranching covers S5: only the taken branch runs, and the
// other side never appears in active_paths.
func TestConditionalBranching(t *testing.T) {
	reg := baseRegistry()
	reg.Register(&domain.Action{
		Name: "test.cond", OutputPorts: []string{"true", "false"}, DefaultSuccessPort: "true",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			if b, _ := params["condition"].(bool); b {
				return domain.OkResult(input, "true")
			}
			return domain.OkResult(input, "false")
		},
	})
	newGraph := func(t *testing.T) *domain.ExecutionGraph {
		wf := &domain.Workflow{
			ID: "wf-s5", Version: "1",
			Nodes: []domain.Node{
				{Key: "t", Type: "test.trigger"},
				{Key: "cond", Type: "test.cond", Params: map[string]any{"condition": "{{ $input.main.age >= 18 }}"}},
				{Key: "adult", Type: "test.pass_through"},
				{Key: "minor", Type: "test.pass_through"},
			},
			Connections: []domain.Connection{
				{FromNode: "t", FromPort: "main", ToNode: "cond", ToPort: "main"},
				{FromNode: "cond", FromPort: "true", ToNode: "adult", ToPort: "main"},
				{FromNode: "cond", FromPort: "false", ToNode: "minor", ToPort: "main"},
			},
		}
		graph, err := Compile(wf, "", reg)
		require.NoError(t, err)
		return graph
	}

	t.Run("adult", func(t *testing.T) {
		graph := newGraph(t)
		out := Execute(context.Background(), graph, Context{Vars: map[string]any{"age": 25}, Registry: reg})
		require.Equal(t, StatusCompleted, out.Status)
		_, ranAdult := out.Execution.NodeExecutions["adult"]
		_, ranMinor := out.Execution.NodeExecutions["minor"]
		assert.True(t, ranAdult)
		assert.False(t, ranMinor)
		assert.False(t, out.Execution.Runtime.ActivePaths[domain.PortKey{NodeKey: "cond", Port: "false"}])
	})

	t.Run("minor", func(t *testing.T) {
		graph := newGraph(t)
		out := Execute(context.Background(), graph, Context{Vars: map[string]any{"age": 16}, Registry: reg})
		require.Equal(t, StatusCompleted, out.Status)
		_, ranAdult := out.Execution.NodeExecutions["adult"]
		_, ranMinor := out.Execution.NodeExecutions["minor"]
		assert.False(t, ranAdult)
		assert.True(t, ranMinor)
		assert.False(t, out.Execution.Runtime.ActivePaths[domain.PortKey{NodeKey: "cond", Port: "true"}])
	})
}

// TestCounterLoop covers S6: a loop-back connection drives increment
// through run_index 0..3 before cond exits to complete.
func TestCounterLoop(t *testing.T) {
	reg := baseRegistry()
	reg.Register(&domain.Action{
		Name: "test.cond_loop", OutputPorts: []string{"true", "false"}, DefaultSuccessPort: "false",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			if b, _ := params["keep_going"].(bool); b {
				return domain.OkResult(input, "true")
			}
			return domain.OkResult(input, "false")
		},
	})

	wf := &domain.Workflow{
		ID: "wf-s6", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "init", Type: "test.pass_through"},
			{Key: "increment", Type: "test.pass_through"},
			{Key: "cond", Type: "test.cond_loop", Params: map[string]any{"keep_going": "{{ $execution.run_index < 3 }}"}},
			{Key: "complete", Type: "test.pass_through"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "init", ToPort: "main"},
			{FromNode: "init", FromPort: "main", ToNode: "increment", ToPort: "main"},
			{FromNode: "increment", FromPort: "main", ToNode: "cond", ToPort: "main"},
			{FromNode: "cond", FromPort: "true", ToNode: "increment", ToPort: "main"},
			{FromNode: "cond", FromPort: "false", ToNode: "complete", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Registry: reg})
	require.Equal(t, StatusCompleted, out.Status)

	incRuns := out.Execution.NodeExecutions["increment"]
	require.Len(t, incRuns, 4)
	for i, ne := range incRuns {
		assert.Equal(t, i, ne.RunIndex)
	}
	assert.Len(t, out.Execution.NodeExecutions["complete"], 1)
}

// TestTemplateLimitFailsExecution covers S8: a template exceeding the
// string-repetition size limit fails the node, and the default
// stop_workflow policy fails the execution.
func TestTemplateLimitFailsExecution(t *testing.T) {
	reg := baseRegistry()
	wf := &domain.Workflow{
		ID: "wf-s8", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "a", Type: "test.pass_through", Params: map[string]any{"big": `{{ "a" * 2000000 }}`}},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "a", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	out := Execute(context.Background(), graph, Context{Registry: reg})
	require.Equal(t, StatusFailed, out.Status)
	ne, ok := out.Execution.LastNodeExecution("a")
	require.True(t, ok)
	require.NotNil(t, ne.ErrorData)
	assert.Equal(t, string(domain.ErrTemplateLimit), ne.ErrorData.Code)
}

// TestSuspendAndResume covers S7: a sub-workflow style suspension followed
// by Resume, with the resume data reaching the downstream node.
func TestSuspendAndResume(t *testing.T) {
	var captured map[string]any
	reg := baseRegistry()
	reg.Register(captureAction(&captured))
	reg.Register(&domain.Action{
		Name: "test.sub", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			return domain.SuspendResult(domain.SuspendSubWorkflowSync, map[string]any{"workflow_id": "child"})
		},
	})

	wf := &domain.Workflow{
		ID: "wf-s7", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "sub", Type: "test.sub"},
			{Key: "out", Type: "test.capture"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "sub", ToPort: "main"},
			{FromNode: "sub", FromPort: "main", ToNode: "out", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	rc := Context{Registry: reg}
	out := Execute(context.Background(), graph, rc)
	require.Equal(t, StatusSuspended, out.Status)
	assert.Equal(t, "sub", out.Execution.SuspendedNodeKey)

	resumed, err := Resume(context.Background(), out.Execution, map[string]any{"result": 42}, "", graph, rc)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resumed.Status)

	main, ok := captured["main"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42, main["result"])
}

// stubWorkflowLoader is a minimal domain.WorkflowLoader for
// TestWorkflowLoaderReachableFromHandler.
type stubWorkflowLoader struct{ workflow *domain.Workflow }

func (l *stubWorkflowLoader) Load(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	return l.workflow, nil
}

// TestWorkflowLoaderReachableFromHandler covers §6's "context carries ...
// an optional workflow_loader used by sub-workflow actions": a handler must
// be able to retrieve the Context.WorkflowLoader supplied to Execute via
// domain.WorkflowLoaderFromContext.
func TestWorkflowLoaderReachableFromHandler(t *testing.T) {
	child := &domain.Workflow{ID: "child", Version: "1"}
	var loaded *domain.Workflow

	reg := baseRegistry()
	reg.Register(&domain.Action{
		Name: "test.sub_loader", OutputPorts: []string{"main"}, DefaultSuccessPort: "main",
		Handler: func(ctx context.Context, params, input, vars map[string]any) domain.Result {
			loader, ok := domain.WorkflowLoaderFromContext(ctx)
			require.True(t, ok, "workflow loader must be reachable from the handler's context")
			wf, err := loader.Load(ctx, "child")
			require.NoError(t, err)
			loaded = wf
			return domain.OkResult(nil, "main")
		},
	})

	wf := &domain.Workflow{
		ID: "wf-loader", Version: "1",
		Nodes: []domain.Node{
			{Key: "t", Type: "test.trigger"},
			{Key: "sub", Type: "test.sub_loader"},
		},
		Connections: []domain.Connection{
			{FromNode: "t", FromPort: "main", ToNode: "sub", ToPort: "main"},
		},
	}
	graph, err := Compile(wf, "", reg)
	require.NoError(t, err)

	rc := Context{Registry: reg, WorkflowLoader: &stubWorkflowLoader{workflow: child}}
	out := Execute(context.Background(), graph, rc)
	require.Equal(t, StatusCompleted, out.Status)
	assert.Same(t, child, loaded)
}
