package template

// Context is the live execution context templates are rendered against:
// $input, $nodes, $variables, $execution per §4.3 step 2. Bare (non-$)
// identifiers resolve against a stack of local bindings introduced by
// `{% for %}` loops; the loop variable shadows any outer binding of the
// same name for the body and the prior binding is restored afterward.
type Context struct {
	Input     map[string]any
	Nodes     map[string]any
	Variables map[string]any
	Execution map[string]any

	locals []localFrame
}

type localFrame struct {
	name  string
	value any
}

func NewContext(input, nodes, variables, execution map[string]any) *Context {
	return &Context{Input: input, Nodes: nodes, Variables: variables, Execution: execution}
}

func (c *Context) pushLocal(name string, value any) {
	c.locals = append(c.locals, localFrame{name: name, value: value})
}

func (c *Context) popLocal() {
	if len(c.locals) > 0 {
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Context) lookupLocal(name string) (any, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].value, true
		}
	}
	return nil, false
}
