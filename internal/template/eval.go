package template

import (
	"fmt"
	"reflect"
	"strings"
)

// evaluate computes the runtime value of an expression node against ctx.
// Missing variable paths resolve to nil rather than erroring, per §4.4.
func evaluate(e Expr, ctx *Context) (any, error) {
	switch t := e.(type) {
	case Literal:
		return t.Value, nil
	case Variable:
		return resolveVariable(t, ctx), nil
	case BinaryOp:
		return evalBinary(t, ctx)
	case Pipe:
		val, err := evaluate(t.Value, ctx)
		if err != nil {
			return nil, err
		}
		args, err := evalArgs(t.Args, ctx)
		if err != nil {
			return nil, err
		}
		fn, ok := filters[t.Name]
		if !ok {
			return nil, newTemplateErr(fmt.Sprintf("unknown filter %q", t.Name))
		}
		return fn(val, args)
	case Call:
		args, err := evalArgs(t.Args, ctx)
		if err != nil {
			return nil, err
		}
		fn, ok := filters[t.Name]
		if !ok {
			return nil, newTemplateErr(fmt.Sprintf("unknown function %q", t.Name))
		}
		var first any
		rest := args
		if len(args) > 0 {
			first, rest = args[0], args[1:]
		}
		return fn(first, rest)
	default:
		return nil, newTemplateErr("unknown expression node")
	}
}

func evalArgs(exprs []Expr, ctx *Context) ([]any, error) {
	args := make([]any, len(exprs))
	for i, a := range exprs {
		v, err := evaluate(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func resolveVariable(v Variable, ctx *Context) any {
	var root any
	if v.Dollar {
		switch v.Root {
		case "input":
			root = ctx.Input
		case "nodes":
			root = ctx.Nodes
		case "variables":
			root = ctx.Variables
		case "execution":
			root = ctx.Execution
		default:
			return nil
		}
	} else {
		val, ok := ctx.lookupLocal(v.Root)
		if !ok {
			return nil
		}
		root = val
	}
	for _, seg := range v.Segments {
		root = getSegment(root, seg)
	}
	return root
}

func getSegment(val any, seg Segment) any {
	if val == nil {
		return nil
	}
	switch seg.Kind {
	case SegDot:
		return getKey(val, seg.Name)
	case SegIndex:
		return getKey(val, seg.Key)
	default:
		return nil
	}
}

func getKey(val any, key any) any {
	switch m := val.(type) {
	case map[string]any:
		if ks, ok := key.(string); ok {
			return m[ks]
		}
		return nil
	case []any:
		if ki, ok := key.(int); ok {
			if ki < 0 || ki >= len(m) {
				return nil
			}
			return m[ki]
		}
		return nil
	default:
		return nil
	}
}

// truthy implements §4.4's truthiness rule: false, nil, empty string, 0 are
// falsy; everything else is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

func evalBinary(b BinaryOp, ctx *Context) (any, error) {
	switch b.Op {
	case "&&":
		l, err := evaluate(b.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := evaluate(b.Right, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	case "||":
		l, err := evaluate(b.Left, ctx)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := evaluate(b.Right, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := evaluate(b.Left, ctx)
	if err != nil {
		return nil, err
	}
	r, err := evaluate(b.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	case ">", "<", ">=", "<=":
		return compare(b.Op, l, r)
	case "+", "-", "*", "/":
		return arith(b.Op, l, r)
	default:
		return nil, newTemplateErr(fmt.Sprintf("unknown operator %q", b.Op))
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, lok := toFloat(l); lok {
		if rf, rok := toFloat(r); rok {
			return lf == rf
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok2 := r.(string); ok2 {
			return ls == rs
		}
	}
	if lb, ok := l.(bool); ok {
		if rb, ok2 := r.(bool); ok2 {
			return lb == rb
		}
	}
	return reflect.DeepEqual(l, r)
}

func compare(op string, l, r any) (any, error) {
	if ls, ok := l.(string); ok {
		if rs, ok2 := r.(string); ok2 {
			switch op {
			case ">":
				return ls > rs, nil
			case "<":
				return ls < rs, nil
			case ">=":
				return ls >= rs, nil
			case "<=":
				return ls <= rs, nil
			}
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, newTemplateErr(fmt.Sprintf("%q requires comparable operands", op))
	}
	switch op {
	case ">":
		return lf > rf, nil
	case "<":
		return lf < rf, nil
	case ">=":
		return lf >= rf, nil
	case "<=":
		return lf <= rf, nil
	default:
		return nil, newTemplateErr(fmt.Sprintf("unknown comparison %q", op))
	}
}

func arith(op string, l, r any) (any, error) {
	if op == "+" {
		if ls, ok := l.(string); ok {
			return ls + toDisplayString(r), nil
		}
		if rs, ok := r.(string); ok {
			return toDisplayString(l) + rs, nil
		}
	}
	if op == "*" {
		if ls, ok := l.(string); ok {
			if rf, ok2 := toFloat(r); ok2 {
				return repeatString(ls, rf)
			}
		}
		if rs, ok := r.(string); ok {
			if lf, ok2 := toFloat(l); ok2 {
				return repeatString(rs, lf)
			}
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, newTemplateErr(fmt.Sprintf("%q requires numeric operands", op))
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, newTemplateErr("division by zero")
		}
		return lf / rf, nil
	default:
		return nil, newTemplateErr(fmt.Sprintf("unknown operator %q", op))
	}
}

// maxRepeatBytes bounds the result of a string*n repetition: half of
// maxTemplateBytes (512 KiB).
const maxRepeatBytes = maxTemplateBytes / 2

// repeatString implements string*n repetition, rejecting a result larger
// than maxRepeatBytes with a template_limit error.
func repeatString(s string, n float64) (string, error) {
	count := int(n)
	if count < 0 {
		count = 0
	}
	if len(s)*count > maxRepeatBytes {
		return "", newLimitErr(fmt.Sprintf("string repetition exceeds max size of %d bytes", maxRepeatBytes))
	}
	return strings.Repeat(s, count), nil
}
