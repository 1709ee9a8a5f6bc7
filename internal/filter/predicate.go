package filter

import (
	"LightCount/internal/model"
	"fmt"
)

// Field keywords accepted by the compiler.
const (
	FieldIP   = "ip"
	FieldNet  = "net"
	FieldNode = "node"
	FieldVlan = "vlan"
	FieldHost = "host"
)

const fullMask = ^uint32(0)

type termKind int

const (
	termCond termKind = iota
	termAnd
	termOr
	termNot
	termOpen
	termClose
)

type term struct {
	kind termKind
	cond Cond
}

// Cond is a single canonicalised field comparison.
type Cond struct {
	Field  string
	Negate bool
	// Value is the canonical comparison value: the address for ip and host,
	// the masked network for net, the node id or the vlan id.
	Value uint32
	// Mask is applied to the stored ip before comparing, for net only.
	Mask uint32
	// Label is the resolved, human-readable form of Value.
	Label string
}

func (c Cond) sql() (string, []interface{}) {
	op := "="
	if c.Negate {
		op = "<>"
	}
	switch c.Field {
	case FieldNet:
		return fmt.Sprintf("bitAnd(ip, ?) %s ?", op), []interface{}{c.Mask, c.Value}
	case FieldNode:
		return fmt.Sprintf("node_id %s ?", op), []interface{}{c.Value}
	case FieldVlan:
		return fmt.Sprintf("vlan_id %s ?", op), []interface{}{uint16(c.Value)}
	default:
		return fmt.Sprintf("ip %s ?", op), []interface{}{c.Value}
	}
}

// Match evaluates the comparison against a stored row.
func (c Cond) Match(row model.RawRow) bool {
	var eq bool
	switch c.Field {
	case FieldNet:
		eq = row.IP&c.Mask == c.Value
	case FieldNode:
		eq = row.NodeID == c.Value
	case FieldVlan:
		eq = uint32(row.VlanID) == c.Value
	default:
		eq = row.IP == c.Value
	}
	return eq != c.Negate
}

func (c Cond) human() string {
	if c.Negate {
		return "not " + c.Field + " " + c.Label
	}
	return c.Field + " " + c.Label
}

// Predicate is a compiled filter expression. It implements model.Condition.
type Predicate struct {
	terms []term
	human string
}

// MatchAll returns the predicate of the empty expression.
func MatchAll() *Predicate {
	return &Predicate{human: "everything"}
}

// IsMatchAll reports whether the predicate has no conditions.
func (p *Predicate) IsMatchAll() bool {
	return len(p.terms) == 0
}

// Human returns the normalised, human-readable form of the expression.
func (p *Predicate) Human() string {
	return p.human
}

func (p *Predicate) String() string {
	return p.human
}

// Conditions returns the field comparisons in expression order.
func (p *Predicate) Conditions() []Cond {
	var conds []Cond
	for _, t := range p.terms {
		if t.kind == termCond {
			conds = append(conds, t.cond)
		}
	}
	return conds
}

// Where renders the predicate as a parenthesised SQL expression.
func (p *Predicate) Where() (string, []interface{}) {
	if len(p.terms) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(p.terms))
	var args []interface{}
	for _, t := range p.terms {
		switch t.kind {
		case termCond:
			clause, condArgs := t.cond.sql()
			parts = append(parts, clause)
			args = append(args, condArgs...)
		case termAnd:
			parts = append(parts, "AND")
		case termOr:
			parts = append(parts, "OR")
		case termNot:
			parts = append(parts, "NOT")
		case termOpen:
			parts = append(parts, "(")
		case termClose:
			parts = append(parts, ")")
		}
	}
	return "(" + joinTokens(parts) + ")", args
}

// Match evaluates the predicate against a row with SQL precedence
// (NOT binds tighter than AND, AND tighter than OR).
func (p *Predicate) Match(row model.RawRow) bool {
	if len(p.terms) == 0 {
		return true
	}
	e := evaluator{terms: p.terms, row: row}
	return e.or()
}

type evaluator struct {
	terms []term
	pos   int
	row   model.RawRow
}

func (e *evaluator) next(kind termKind) bool {
	if e.pos < len(e.terms) && e.terms[e.pos].kind == kind {
		e.pos++
		return true
	}
	return false
}

func (e *evaluator) or() bool {
	v := e.and()
	for e.next(termOr) {
		rhs := e.and()
		v = v || rhs
	}
	return v
}

func (e *evaluator) and() bool {
	v := e.unary()
	for e.next(termAnd) {
		rhs := e.unary()
		v = v && rhs
	}
	return v
}

func (e *evaluator) unary() bool {
	t := e.terms[e.pos]
	e.pos++
	switch t.kind {
	case termNot:
		return !e.unary()
	case termOpen:
		v := e.or()
		e.next(termClose)
		return v
	default:
		return t.cond.Match(e.row)
	}
}
