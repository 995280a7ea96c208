package template

import "fmt"

// maxNestingDepth bounds control-block nesting (§5 "max nesting depth 50").
const maxNestingDepth = 50

// Parse compiles src into a reusable Template. A recursive-descent parser
// produces a tagged-node AST (literal, variable, binop, call, pipe, if,
// for) per the design notes; no parser generator or expression library is
// used anywhere in this package.
func Parse(src string) (*Template, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	nodes, err := p.parseNodes(0, false)
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, newTemplateErr("unmatched {% endif %} or {% endfor %}")
	}
	pure := false
	if len(nodes) == 1 {
		_, pure = nodes[0].(ExprNode)
	}
	return &Template{Nodes: nodes, Pure: pure}, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peekKind(off int) tokenKind {
	i := p.pos + off
	if i >= len(p.toks) {
		return tokEOF
	}
	return p.toks[i].kind
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, newTemplateErr(fmt.Sprintf("expected %s", what))
	}
	return p.advance(), nil
}

// parseNodes parses template content until EOF, or (if hasStop) until it
// sees an upcoming `{% <stop> %}` tag, which it leaves unconsumed for the
// caller to match.
func (p *parser) parseNodes(stop tokenKind, hasStop bool) ([]Node, error) {
	var nodes []Node
	for {
		switch p.cur().kind {
		case tokEOF:
			if hasStop {
				return nil, newTemplateErr("unterminated control block")
			}
			return nodes, nil
		case tokText:
			nodes = append(nodes, TextNode{Value: p.advance().text})
		case tokOpenExpr:
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokCloseExpr, "}}"); err != nil {
				return nil, err
			}
			nodes = append(nodes, ExprNode{Expr: e})
		case tokOpenCtrl:
			next := p.peekKind(1)
			if hasStop && next == stop {
				return nodes, nil
			}
			switch next {
			case tokIf:
				n, err := p.parseIf()
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, n)
			case tokFor:
				n, err := p.parseFor()
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, n)
			default:
				return nil, newTemplateErr("unexpected control tag")
			}
		default:
			return nil, newTemplateErr("unexpected token in template")
		}
	}
}

func (p *parser) enterBlock() error {
	p.depth++
	if p.depth > maxNestingDepth {
		return newLimitErr(fmt.Sprintf("control block nesting exceeds max depth of %d", maxNestingDepth))
	}
	return nil
}

func (p *parser) parseIf() (Node, error) {
	p.advance() // {%
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokCloseCtrl, "%}"); err != nil {
		return nil, err
	}
	if err := p.enterBlock(); err != nil {
		return nil, err
	}
	body, err := p.parseNodes(tokEndIf, true)
	p.depth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokOpenCtrl, "{%"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndIf, "endif"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokCloseCtrl, "%}"); err != nil {
		return nil, err
	}
	return IfNode{Cond: cond, Body: body}, nil
}

func (p *parser) parseFor() (Node, error) {
	p.advance() // {%
	p.advance() // for
	varTok, err := p.expect(tokIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIn, "in"); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokCloseCtrl, "%}"); err != nil {
		return nil, err
	}
	if err := p.enterBlock(); err != nil {
		return nil, err
	}
	body, err := p.parseNodes(tokEndFor, true)
	p.depth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokOpenCtrl, "{%"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndFor, "endfor"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokCloseCtrl, "%}"); err != nil {
		return nil, err
	}
	return ForNode{Var: varTok.text, Iterable: iterable, Body: body}, nil
}

// expr = pipe
func (p *parser) parseExpr() (Expr, error) { return p.parsePipe() }

// pipe = binary ( "|" ident ("(" args? ")")? )*
func (p *parser) parsePipe() (Expr, error) {
	left, err := p.parseBinary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPipe {
		p.advance()
		nameTok, err := p.expect(tokIdent, "filter name")
		if err != nil {
			return nil, err
		}
		var args []Expr
		if p.cur().kind == tokLParen {
			p.advance()
			args, err = p.parseArgsMaybeEmpty()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
		}
		left = Pipe{Value: left, Name: nameTok.text, Args: args}
	}
	return left, nil
}

// binary = comparison (("&&"|"||") comparison)*
func (p *parser) parseBinary() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAnd || p.cur().kind == tokOr {
		op := "&&"
		if p.cur().kind == tokOr {
			op = "||"
		}
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[tokenKind]string{
	tokEq: "==", tokNeq: "!=", tokGe: ">=", tokLe: "<=", tokGt: ">", tokLt: "<",
}

// comparison = arith (("=="|"!="|">="|"<="|">"|"<") arith)*
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().kind]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
}

// arith = term (("+"|"-") term)*
func (p *parser) parseArith() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPlus || p.cur().kind == tokMinus {
		op := "+"
		if p.cur().kind == tokMinus {
			op = "-"
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// term = factor (("*"|"/") factor)*
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokStar || p.cur().kind == tokSlash {
		op := "*"
		if p.cur().kind == tokSlash {
			op = "/"
		}
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// factor = literal | variable | "(" expr ")" | ident "(" args? ")"
func (p *parser) parseFactor() (Expr, error) {
	switch p.cur().kind {
	case tokString:
		return Literal{Value: p.advance().text}, nil
	case tokNumber:
		return Literal{Value: p.advance().num}, nil
	case tokTrue:
		p.advance()
		return Literal{Value: true}, nil
	case tokFalse:
		p.advance()
		return Literal{Value: false}, nil
	case tokNil:
		p.advance()
		return Literal{Value: nil}, nil
	case tokDollar:
		return p.parseVariable(true)
	case tokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokIdent:
		if p.peekKind(1) == tokLParen {
			name := p.advance().text
			p.advance() // (
			args, err := p.parseArgsMaybeEmpty()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			return Call{Name: name, Args: args}, nil
		}
		return p.parseVariable(false)
	default:
		return nil, newTemplateErr("unexpected token in expression")
	}
}

// variable = ("$" ident ("." ident | "[" key "]")*) | ident ("." ident)*
func (p *parser) parseVariable(dollar bool) (Expr, error) {
	if dollar {
		p.advance() // $
	}
	rootTok, err := p.expect(tokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	v := Variable{Dollar: dollar, Root: rootTok.text}
	for {
		switch p.cur().kind {
		case tokDot:
			p.advance()
			nameTok, err := p.expect(tokIdent, "field name")
			if err != nil {
				return nil, err
			}
			v.Segments = append(v.Segments, Segment{Kind: SegDot, Name: nameTok.text})
		case tokLBracket:
			p.advance()
			seg, err := p.parseKeySegment()
			if err != nil {
				return nil, err
			}
			v.Segments = append(v.Segments, seg)
			if _, err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
		default:
			return v, nil
		}
	}
}

// key = string | integer | ":" ident
func (p *parser) parseKeySegment() (Segment, error) {
	switch p.cur().kind {
	case tokString:
		return Segment{Kind: SegIndex, Key: p.advance().text}, nil
	case tokNumber:
		return Segment{Kind: SegIndex, Key: int(p.advance().num)}, nil
	case tokColon:
		p.advance()
		nameTok, err := p.expect(tokIdent, "atom name")
		if err != nil {
			return Segment{}, err
		}
		return Segment{Kind: SegIndex, Name: nameTok.text, Key: nameTok.text}, nil
	default:
		return Segment{}, newTemplateErr("invalid index key")
	}
}

// args = expr ("," expr)*
func (p *parser) parseArgsMaybeEmpty() ([]Expr, error) {
	if p.cur().kind == tokRParen {
		return nil, nil
	}
	var args []Expr
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	args = append(args, first)
	for p.cur().kind == tokComma {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return args, nil
}
