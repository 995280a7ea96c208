package template

import (
	"fmt"
	"strconv"
	"strings"
)

// filterFunc is a pipe/function implementation: (value, args) -> result.
type filterFunc func(value any, args []any) (any, error)

// filters is the small filter stdlib from §4.4: default, upper_case,
// lower_case, capitalize, truncate, length, first, round, format_currency.
var filters = map[string]filterFunc{
	"default": func(value any, args []any) (any, error) {
		if value != nil {
			return value, nil
		}
		if len(args) == 0 {
			return nil, nil
		}
		return args[0], nil
	},
	"upper_case": func(value any, args []any) (any, error) {
		return strings.ToUpper(toDisplayString(value)), nil
	},
	"lower_case": func(value any, args []any) (any, error) {
		return strings.ToLower(toDisplayString(value)), nil
	},
	"capitalize": func(value any, args []any) (any, error) {
		s := toDisplayString(value)
		if s == "" {
			return s, nil
		}
		r := []rune(s)
		return strings.ToUpper(string(r[0])) + string(r[1:]), nil
	},
	"truncate": func(value any, args []any) (any, error) {
		s := toDisplayString(value)
		if len(args) == 0 {
			return nil, newTemplateErr("truncate requires a length argument")
		}
		n, ok := toFloat(args[0])
		if !ok {
			return nil, newTemplateErr("truncate length must be numeric")
		}
		suffix := "..."
		if len(args) > 1 {
			suffix = toDisplayString(args[1])
		}
		limit := int(n)
		if len([]rune(s)) <= limit {
			return s, nil
		}
		r := []rune(s)
		if limit < 0 {
			limit = 0
		}
		return string(r[:limit]) + suffix, nil
	},
	"length": func(value any, args []any) (any, error) {
		switch t := value.(type) {
		case string:
			return float64(len([]rune(t))), nil
		case []any:
			return float64(len(t)), nil
		case map[string]any:
			return float64(len(t)), nil
		case nil:
			return float64(0), nil
		default:
			return nil, newTemplateErr("length requires a string, list, or map")
		}
	},
	"first": func(value any, args []any) (any, error) {
		switch t := value.(type) {
		case []any:
			if len(t) == 0 {
				return nil, nil
			}
			return t[0], nil
		case string:
			r := []rune(t)
			if len(r) == 0 {
				return "", nil
			}
			return string(r[0]), nil
		case nil:
			return nil, nil
		default:
			return nil, newTemplateErr("first requires a string or list")
		}
	},
	"round": func(value any, args []any) (any, error) {
		f, ok := toFloat(value)
		if !ok {
			return nil, newTemplateErr("round requires a numeric value")
		}
		precision := 0
		if len(args) > 0 {
			if p, ok := toFloat(args[0]); ok {
				precision = int(p)
			}
		}
		mult := 1.0
		for i := 0; i < precision; i++ {
			mult *= 10
		}
		rounded := float64(int64(f*mult+sign(f)*0.5)) / mult
		return rounded, nil
	},
	"format_currency": func(value any, args []any) (any, error) {
		f, ok := toFloat(value)
		if !ok {
			return nil, newTemplateErr("format_currency requires a numeric value")
		}
		code := "USD"
		if len(args) > 0 {
			code = toDisplayString(args[0])
		}
		symbol, ok := currencySymbols[code]
		if !ok {
			symbol = code + " "
		}
		return fmt.Sprintf("%s%s", symbol, strconv.FormatFloat(f, 'f', 2, 64)), nil
	},
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
