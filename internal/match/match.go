// Package match compiles entity predicates such as
// "$type=MOB & !$name=cow*" used by follow and attack.
package match

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"voxelcraft.ai/vcterm/internal/world"
)

var (
	// ErrMalformedPredicate is returned by Parse.
	ErrMalformedPredicate = errors.New("malformed entity predicate")
	// ErrInvalidPredicate is returned when a predicate cannot be evaluated
	// against an entity.
	ErrInvalidPredicate = errors.New("invalid entity predicate")
)

type op int

const (
	opEq op = iota + 1
	opNe
	opLt
	opGt
	opLe
	opGe
)

var opText = map[op]string{opEq: "=", opNe: "!=", opLt: "<", opGt: ">", opLe: "<=", opGe: ">="}

type nodeKind int

const (
	nodeConst nodeKind = iota + 1
	nodeCmp
	nodeNot
	nodeAnd
	nodeOr
)

type node struct {
	kind nodeKind

	val bool // nodeConst

	attr  string // nodeCmp
	op    op
	value string
	num   float64

	sub1, sub2 *node
}

var attributes = map[string]struct{}{
	"id": {}, "type": {}, "name": {}, "tag": {}, "item": {},
	"x": {}, "y": {}, "z": {}, "count": {}, "height": {},
}

// Predicate is a compiled expression.
type Predicate struct {
	src  string
	root *node
}

func (p *Predicate) String() string { return p.src }

// Matcher adapts the predicate to world.Matcher.
func (p *Predicate) Matcher() world.Matcher { return p.Eval }

// Eval reports whether e satisfies the predicate.
func (p *Predicate) Eval(e world.Entity) (bool, error) {
	return eval(p.root, e)
}

// Parse compiles src.
//
//	E → T ('|' E)?
//	T → F ('&' T)?
//	F → '!' F | '(' E ')' | true | false | '$' attr op value
func Parse(src string) (*Predicate, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPredicate)
	}
	p := &parser{src: s}
	root, err := p.parseE()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos != len(p.src) {
		return nil, p.errf("unexpected %q", p.src[p.pos:])
	}
	return &Predicate{src: s, root: root}, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("%w: at %d: %s", ErrMalformedPredicate, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) parseE() (*node, error) {
	left, err := p.parseT()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.peek() == '|' {
		p.pos++
		right, err := p.parseE()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeOr, sub1: left, sub2: right}, nil
	}
	return left, nil
}

func (p *parser) parseT() (*node, error) {
	left, err := p.parseF()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.peek() == '&' {
		p.pos++
		right, err := p.parseT()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeAnd, sub1: left, sub2: right}, nil
	}
	return left, nil
}

func (p *parser) parseF() (*node, error) {
	p.skipSpaces()
	switch c := p.peek(); {
	case c == '!':
		p.pos++
		sub, err := p.parseF()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeNot, sub1: sub}, nil
	case c == '(':
		p.pos++
		sub, err := p.parseE()
		if err != nil {
			return nil, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return nil, p.errf("missing )")
		}
		p.pos++
		return sub, nil
	case c == '$':
		p.pos++
		return p.parseCmp()
	case c == 0:
		return nil, p.errf("unexpected end")
	default:
		word := p.readValue()
		switch strings.ToLower(word) {
		case "true":
			return &node{kind: nodeConst, val: true}, nil
		case "false":
			return &node{kind: nodeConst, val: false}, nil
		}
		return nil, p.errf("expected $attribute, got %q", word)
	}
}

func (p *parser) parseCmp() (*node, error) {
	start := p.pos
	for p.pos < len(p.src) && isAttrByte(p.src[p.pos]) {
		p.pos++
	}
	attr := strings.ToLower(p.src[start:p.pos])
	if _, ok := attributes[attr]; !ok {
		return nil, p.errf("unknown attribute %q", attr)
	}
	o, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	value := p.readValue()
	if value == "" {
		return nil, p.errf("missing value for $%s", attr)
	}
	n := &node{kind: nodeCmp, attr: attr, op: o, value: value}
	switch o {
	case opEq, opNe:
		if _, err := path.Match(strings.ToLower(value), ""); err != nil {
			return nil, p.errf("bad pattern %q", value)
		}
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, p.errf("$%s %s needs a number, got %q", attr, opText[o], value)
		}
		n.num = f
	}
	return n, nil
}

func (p *parser) parseOp() (op, error) {
	p.skipSpaces()
	two := ""
	if p.pos+2 <= len(p.src) {
		two = p.src[p.pos : p.pos+2]
	}
	switch two {
	case "!=":
		p.pos += 2
		return opNe, nil
	case "<=":
		p.pos += 2
		return opLe, nil
	case ">=":
		p.pos += 2
		return opGe, nil
	}
	switch p.peek() {
	case '=':
		p.pos++
		return opEq, nil
	case '<':
		p.pos++
		return opLt, nil
	case '>':
		p.pos++
		return opGt, nil
	}
	return 0, p.errf("expected comparison operator")
}

// readValue consumes up to the next operator or closing paren.
func (p *parser) readValue() string {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '&', '|', ')':
			return strings.TrimSpace(p.src[start:p.pos])
		}
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

func isAttrByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func eval(n *node, e world.Entity) (bool, error) {
	switch n.kind {
	case nodeConst:
		return n.val, nil
	case nodeNot:
		v, err := eval(n.sub1, e)
		return !v, err
	case nodeAnd:
		l, err := eval(n.sub1, e)
		if err != nil || !l {
			return false, err
		}
		return eval(n.sub2, e)
	case nodeOr:
		l, err := eval(n.sub1, e)
		if err != nil || l {
			return l, err
		}
		return eval(n.sub2, e)
	case nodeCmp:
		return compare(n, e)
	}
	return false, fmt.Errorf("%w: bad node", ErrInvalidPredicate)
}

func attrValues(attr string, e world.Entity) []string {
	switch attr {
	case "id":
		return []string{e.ID}
	case "type":
		return []string{e.Type}
	case "name":
		return []string{e.Name}
	case "item":
		return []string{e.Item}
	case "tag":
		return e.Tags
	case "x":
		return []string{strconv.FormatFloat(e.Pos.X, 'f', -1, 64)}
	case "y":
		return []string{strconv.FormatFloat(e.Pos.Y, 'f', -1, 64)}
	case "z":
		return []string{strconv.FormatFloat(e.Pos.Z, 'f', -1, 64)}
	case "count":
		return []string{strconv.Itoa(e.Count)}
	case "height":
		return []string{strconv.FormatFloat(e.Height, 'f', -1, 64)}
	}
	return nil
}

// compare is true when any value of a multi-valued attribute (tags) matches.
// For != it is true when no value matches.
func compare(n *node, e world.Entity) (bool, error) {
	values := attrValues(n.attr, e)
	if n.op == opNe {
		for _, v := range values {
			if globMatch(n.value, v) {
				return false, nil
			}
		}
		return true, nil
	}
	for _, v := range values {
		if n.op == opEq {
			if globMatch(n.value, v) {
				return true, nil
			}
			continue
		}
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, fmt.Errorf("%w: $%s %s %s on %q", ErrInvalidPredicate, n.attr, opText[n.op], n.value, v)
		}
		var ok bool
		switch n.op {
		case opLt:
			ok = f < n.num
		case opGt:
			ok = f > n.num
		case opLe:
			ok = f <= n.num
		case opGe:
			ok = f >= n.num
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func globMatch(pattern, v string) bool {
	ok, _ := path.Match(strings.ToLower(pattern), strings.ToLower(v))
	return ok
}
