// Package stockexpr evaluates the arithmetic a stock counter types in place
// of a closing count, e.g. "3 + 7/8 + 2*0.5".
package stockexpr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty          = errors.New("empty expression")
	ErrDivisionByZero = errors.New("division by zero")
)

// SyntaxError reports the byte offset at which parsing failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("stock expression: %s at position %d", e.Msg, e.Pos)
}

// Evaluate parses expr with the usual precedence (* and / bind tighter than
// + and -, both left associative) and returns its value.
func Evaluate(expr string) (decimal.Decimal, error) {
	if strings.TrimSpace(expr) == "" {
		return decimal.Zero, ErrEmpty
	}
	p := &parser{src: expr}
	value, err := p.additive()
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return decimal.Zero, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", p.src[p.pos])}
	}
	return value, nil
}

// IsComplete reports whether expr can be evaluated yet. Input that ends in an
// operator is still being typed.
func IsComplete(expr string) bool {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return false
	}
	return !strings.ContainsAny(trimmed[len(trimmed)-1:], "+-*/")
}

type parser struct {
	src string
	pos int
}

func (p *parser) additive() (decimal.Decimal, error) {
	left, err := p.multiplicative()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op, ok := p.operator("+-")
		if !ok {
			return left, nil
		}
		right, err := p.multiplicative()
		if err != nil {
			return decimal.Zero, err
		}
		if op == '+' {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

func (p *parser) multiplicative() (decimal.Decimal, error) {
	left, err := p.primary()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op, ok := p.operator("*/")
		if !ok {
			return left, nil
		}
		right, err := p.primary()
		if err != nil {
			return decimal.Zero, err
		}
		if op == '*' {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		left = left.Div(right)
	}
}

func (p *parser) primary() (decimal.Decimal, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return decimal.Zero, &SyntaxError{Pos: p.pos, Msg: "unexpected end of expression"}
	}
	if p.src[p.pos] == '(' {
		p.pos++
		value, err := p.additive()
		if err != nil {
			return decimal.Zero, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return decimal.Zero, &SyntaxError{Pos: p.pos, Msg: "missing closing parenthesis"}
		}
		p.pos++
		return value, nil
	}
	return p.number()
}

func (p *parser) number() (decimal.Decimal, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' && !seenDot {
			seenDot = true
			p.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	literal := p.src[start:p.pos]
	if literal == "" || literal == "." || strings.HasSuffix(literal, ".") {
		return decimal.Zero, &SyntaxError{Pos: start, Msg: "expected number"}
	}
	if literal[0] == '.' {
		literal = "0" + literal
	}
	value, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Zero, &SyntaxError{Pos: start, Msg: "invalid number"}
	}
	return value, nil
}

func (p *parser) operator(ops string) (byte, bool) {
	p.skipSpace()
	if p.pos < len(p.src) && strings.IndexByte(ops, p.src[p.pos]) >= 0 {
		op := p.src[p.pos]
		p.pos++
		return op, true
	}
	return 0, false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}
