package nodeexec

import (
	"github.com/smilemakc/prana/internal/domain"
	"github.com/smilemakc/prana/internal/template"
)

// executionContext builds the $execution mapping exposed to templates
// (§4.3 step 2, §4.5): run_index, execution_index, loopback, and the
// compiler-detected loop metadata for the node about to run.
func executionContext(node domain.Node, graph *domain.ExecutionGraph, executionIndex int64, runIndex int, loopback bool) map[string]any {
	meta := graph.LoopMeta[node.Key]
	return map[string]any{
		"run_index":       runIndex,
		"execution_index": executionIndex,
		"loopback":        loopback,
		"loop": map[string]any{
			"level": int(meta.Level),
			"role":  string(meta.Role),
			"ids":   meta.IDs,
		},
	}
}

// RenderParams renders every template expression in node.Params against the
// live context (§4.3 step 2). Pure expressions keep their native type; mixed
// text renders to a string; values that aren't strings (or templated
// containers) pass through unchanged.
func RenderParams(node domain.Node, routedInput map[string]any, graph *domain.ExecutionGraph, exec *domain.WorkflowExecution, executionIndex int64, runIndex int, loopback bool) (map[string]any, error) {
	ctx := template.NewContext(routedInput, exec.Runtime.Nodes, exec.Vars, executionContext(node, graph, executionIndex, runIndex, loopback))
	out := make(map[string]any, len(node.Params))
	for k, v := range node.Params {
		rendered, err := renderValue(v, ctx)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}

// renderValue recursively renders templated strings within a param value,
// passing maps and lists through structurally so nested template
// expressions (e.g. inside a JSON-shaped param) are also evaluated.
func renderValue(v any, ctx *template.Context) (any, error) {
	switch t := v.(type) {
	case string:
		tmpl, err := template.Parse(t)
		if err != nil {
			return nil, err
		}
		return tmpl.Render(ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			rv, err := renderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rv, err := renderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
