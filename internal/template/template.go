package template

import (
	"fmt"
	"strconv"
	"strings"
)

// maxLoopIterations bounds a single {% for %} block (§5 "max loop
// iterations 10,000").
const maxLoopIterations = 10000

// Render evaluates the template against ctx. A template consisting of
// exactly one `{{ expr }}` node and nothing else ("pure expression") returns
// the expression's native Go value, including nil; any other shape ("mixed
// text") concatenates to a string, rendering nil as "".
func (t *Template) Render(ctx *Context) (any, error) {
	if t.Pure {
		return evaluate(t.Nodes[0].(ExprNode).Expr, ctx)
	}
	return renderNodes(t.Nodes, ctx)
}

func renderNodes(nodes []Node, ctx *Context) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case TextNode:
			b.WriteString(v.Value)
		case ExprNode:
			val, err := evaluate(v.Expr, ctx)
			if err != nil {
				return "", err
			}
			b.WriteString(toDisplayString(val))
		case IfNode:
			cond, err := evaluate(v.Cond, ctx)
			if err != nil {
				return "", err
			}
			if truthy(cond) {
				s, err := renderNodes(v.Body, ctx)
				if err != nil {
					return "", err
				}
				b.WriteString(s)
			}
		case ForNode:
			s, err := renderFor(v, ctx)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
	}
	return b.String(), nil
}

func renderFor(f ForNode, ctx *Context) (string, error) {
	iterVal, err := evaluate(f.Iterable, ctx)
	if err != nil {
		return "", err
	}
	items, err := asIterable(iterVal)
	if err != nil {
		return "", err
	}
	if len(items) > maxLoopIterations {
		return "", newLimitErr("for loop exceeds max iteration count of " + strconv.Itoa(maxLoopIterations))
	}
	var b strings.Builder
	for _, item := range items {
		ctx.pushLocal(f.Var, item)
		s, err := renderNodes(f.Body, ctx)
		ctx.popLocal()
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// asIterable enforces §4.4: "the iterable must be a list (string, map, etc.
// yield an error)".
func asIterable(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	default:
		return nil, newTemplateErr("For loop iterable must be a list")
	}
}

func toDisplayString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
