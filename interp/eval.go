package interp

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
)

// EvalString evaluates one expression or assignment of the guest's small
// surface language: integer/float/string/bool literals, nothing, array
// literals, global references, calls on base-namespace functions, binary
// + - * on numbers, and `name = expr` assignments (which bind a global and
// evaluate to nothing, as assignments used for setup should not leak
// handles).
func (in *Interp) EvalString(src string) (guest.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, bridgeerrors.ErrClosed
	}

	p := &parser{src: src}
	p.skipSpace()
	if p.done() {
		return nil, &bridgeerrors.EvalError{Src: src, Err: fmt.Errorf("empty input")}
	}

	// Assignment: ident "=" expr (but not "==").
	if name, rest, ok := splitAssignment(src); ok {
		p = &parser{src: rest}
		val, err := p.parseExpr(in)
		if err != nil {
			return nil, &bridgeerrors.EvalError{Src: src, Err: err}
		}
		p.skipSpace()
		if !p.done() {
			return nil, &bridgeerrors.EvalError{Src: src, Err: fmt.Errorf("trailing input at offset %d", p.pos)}
		}
		in.globals[name] = val
		return in.nothing, nil
	}

	val, err := p.parseExpr(in)
	if err != nil {
		return nil, &bridgeerrors.EvalError{Src: src, Err: err}
	}
	p.skipSpace()
	if !p.done() {
		return nil, &bridgeerrors.EvalError{Src: src, Err: fmt.Errorf("trailing input at offset %d", p.pos)}
	}
	return val, nil
}

// splitAssignment detects a top-level `ident = expr` form.
func splitAssignment(src string) (name, rest string, ok bool) {
	i := strings.IndexByte(src, '=')
	if i <= 0 || i+1 >= len(src) || src[i+1] == '=' {
		return "", "", false
	}
	name = strings.TrimSpace(src[:i])
	if !isIdent(name) {
		return "", "", false
	}
	return name, src[i+1:], true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || r == '!' || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

// parseExpr handles left-associative + - over terms.
func (p *parser) parseExpr(in *Interp) (*object, error) {
	left, err := p.parseTerm(in)
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm(in)
		if err != nil {
			return nil, err
		}
		left, err = arith(in, op, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseTerm(in *Interp) (*object, error) {
	left, err := p.parsePrimary(in)
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() != '*' {
			return left, nil
		}
		p.pos++
		right, err := p.parsePrimary(in)
		if err != nil {
			return nil, err
		}
		left, err = arith(in, '*', left, right)
		if err != nil {
			return nil, err
		}
	}
}

func arith(in *Interp, op byte, a, b *object) (*object, error) {
	ints := a.kind.IsInteger() && b.kind.IsInteger()
	floats := (a.kind == guest.KindFloat64 || a.kind.IsInteger()) &&
		(b.kind == guest.KindFloat64 || b.kind.IsInteger())
	if !floats {
		return nil, fmt.Errorf("operator %c needs numeric operands, got %s and %s", op, a.kind, b.kind)
	}
	if ints {
		var n int64
		switch op {
		case '+':
			n = a.i64 + b.i64
		case '-':
			n = a.i64 - b.i64
		case '*':
			n = a.i64 * b.i64
		}
		return in.alloc(&object{kind: guest.KindInt64, i64: n}), nil
	}
	fa, fb := a.f64, b.f64
	if a.kind.IsInteger() {
		fa = float64(a.i64)
	}
	if b.kind.IsInteger() {
		fb = float64(b.i64)
	}
	var f float64
	switch op {
	case '+':
		f = fa + fb
	case '-':
		f = fa - fb
	case '*':
		f = fa * fb
	}
	return in.alloc(&object{kind: guest.KindFloat64, f64: f}), nil
}

func (p *parser) parsePrimary(in *Interp) (*object, error) {
	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("unexpected end of input")
	}
	c := p.peek()

	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr(in)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing ) at offset %d", p.pos)
		}
		p.pos++
		return v, nil

	case c == '[':
		return p.parseArray(in)

	case c == '"':
		return p.parseString(in)

	case c == '-' || unicode.IsDigit(rune(c)):
		return p.parseNumber(in)

	case unicode.IsLetter(rune(c)) || c == '_':
		return p.parseIdentOrCall(in)

	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *parser) parseArray(in *Interp) (*object, error) {
	p.pos++ // consume [
	var elems []*object
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return in.alloc(&object{kind: guest.KindArray, arr: elems}), nil
	}
	for {
		v, err := p.parseExpr(in)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return in.alloc(&object{kind: guest.KindArray, arr: elems}), nil
		default:
			return nil, fmt.Errorf("expected , or ] at offset %d", p.pos)
		}
	}
}

func (p *parser) parseString(in *Interp) (*object, error) {
	p.pos++ // consume opening quote
	var sb strings.Builder
	for !p.done() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return in.alloc(&object{kind: guest.KindString, str: sb.String()}), nil
		case '\\':
			if p.done() {
				return nil, fmt.Errorf("unterminated escape")
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteByte(e)
			default:
				return nil, fmt.Errorf("unknown escape \\%c", e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return nil, fmt.Errorf("unterminated string literal")
}

func (p *parser) parseNumber(in *Interp) (*object, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for !p.done() {
		c := p.src[p.pos]
		if unicode.IsDigit(rune(c)) {
			p.pos++
		} else if c == '.' && !isFloat {
			isFloat = true
			p.pos++
		} else {
			break
		}
	}
	text := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q", text)
		}
		return in.alloc(&object{kind: guest.KindFloat64, f64: f}), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad integer literal %q", text)
	}
	return in.alloc(&object{kind: guest.KindInt64, i64: n}), nil
}

func (p *parser) parseIdentOrCall(in *Interp) (*object, error) {
	start := p.pos
	for !p.done() {
		r := rune(p.src[p.pos])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '!' {
			p.pos++
		} else {
			break
		}
	}
	name := p.src[start:p.pos]

	switch name {
	case "nothing":
		return in.nothing, nil
	case "true":
		return in.alloc(&object{kind: guest.KindBool, b: true}), nil
	case "false":
		return in.alloc(&object{kind: guest.KindBool, b: false}), nil
	}

	p.skipSpace()
	if p.peek() != '(' {
		if g, ok := in.globals[name]; ok {
			return g, nil
		}
		if b, ok := in.builtins[name]; ok {
			return b, nil
		}
		return nil, fmt.Errorf("undefined name %q", name)
	}

	// Call form.
	fn, ok := in.builtins[name]
	if !ok {
		if g, okG := in.globals[name]; okG && g.kind == guest.KindFunction {
			fn = g
		} else {
			return nil, fmt.Errorf("undefined function %q", name)
		}
	}

	p.pos++ // consume (
	var args []*object
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
	} else {
		for {
			v, err := p.parseExpr(in)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
			case ')':
				p.pos++
			default:
				return nil, fmt.Errorf("expected , or ) at offset %d", p.pos)
			}
			if p.src[p.pos-1] == ')' {
				break
			}
		}
	}
	return fn.fn(in, args)
}
