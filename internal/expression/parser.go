package expression

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrDivisionByZero is returned when a divisor evaluates to zero.
var ErrDivisionByZero = errors.New("division by zero")

// ErrNonFinite is returned when evaluation overflows to an infinite or NaN value.
var ErrNonFinite = errors.New("result is not a finite number")

// SyntaxError describes a tokenizer or parser failure at a rune offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// Node is an arithmetic expression tree node. The only node types are number
// literals, unary sign operators and binary operators.
type Node interface {
	Eval() (float64, error)
	String() string
}

type numberNode struct {
	value float64
}

func (n numberNode) Eval() (float64, error) { return n.value, nil }

func (n numberNode) String() string { return strconv.FormatFloat(n.value, 'g', -1, 64) }

type unaryNode struct {
	op      tokenKind
	operand Node
}

func (n unaryNode) Eval() (float64, error) {
	v, err := n.operand.Eval()
	if err != nil {
		return 0, err
	}
	if n.op == tokMinus {
		return -v, nil
	}
	return v, nil
}

func (n unaryNode) String() string {
	sign := "+"
	if n.op == tokMinus {
		sign = "-"
	}
	return "(" + sign + n.operand.String() + ")"
}

type binaryNode struct {
	op          tokenKind
	left, right Node
}

func (n binaryNode) Eval() (float64, error) {
	l, err := n.left.Eval()
	if err != nil {
		return 0, err
	}
	r, err := n.right.Eval()
	if err != nil {
		return 0, err
	}

	var v float64
	switch n.op {
	case tokPlus:
		v = l + r
	case tokMinus:
		v = l - r
	case tokStar:
		v = l * r
	case tokSlash:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		v = l / r
	default:
		return 0, fmt.Errorf("unknown operator %s", n.op)
	}

	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNonFinite
	}
	return v, nil
}

func (n binaryNode) String() string {
	var op string
	switch n.op {
	case tokPlus:
		op = "+"
	case tokMinus:
		op = "-"
	case tokStar:
		op = "*"
	case tokSlash:
		op = "/"
	}
	return "(" + n.left.String() + " " + op + " " + n.right.String() + ")"
}

// Parse builds an expression tree from s using the grammar
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('+' | '-') unary | primary
//	primary := NUMBER | '(' expr ')'
//
// The whole input must be consumed.
func Parse(s string) (Node, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s", tok.kind)}
	}
	return node, nil
}

// maxDepth bounds nesting of parentheses and unary signs.
const maxDepth = 256

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokPlus && op != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokStar && op != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (Node, error) {
	tok := p.peek()
	if tok.kind != tokPlus && tok.kind != tokMinus {
		return p.primary()
	}

	if p.depth >= maxDepth {
		return nil, &SyntaxError{Pos: tok.pos, Msg: "expression nested too deeply"}
	}
	p.depth++
	defer func() { p.depth-- }()

	p.next()
	operand, err := p.unary()
	if err != nil {
		return nil, err
	}
	return unaryNode{op: tok.kind, operand: operand}, nil
}

func (p *parser) primary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return numberNode{value: tok.value}, nil
	case tokLParen:
		if p.depth >= maxDepth {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "expression nested too deeply"}
		}
		p.depth++
		defer func() { p.depth-- }()

		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Msg: fmt.Sprintf("expected ')', got %s", closing.kind)}
		}
		return inner, nil
	default:
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s", tok.kind)}
	}
}
