package filter

import (
	"LightCount/internal/model"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// HostResolver resolves host names for the host field. *net.Resolver
// satisfies it.
type HostResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Compiler turns filter expressions into predicates.
type Compiler struct {
	nodes model.NodeResolver
	hosts HostResolver
}

// NewCompiler creates a compiler resolving node names through nodes and
// host names through hosts. A nil hosts uses the system resolver.
func NewCompiler(nodes model.NodeResolver, hosts HostResolver) *Compiler {
	if hosts == nil {
		hosts = net.DefaultResolver
	}
	return &Compiler{nodes: nodes, hosts: hosts}
}

// Parse compiles text. The empty expression matches everything.
//
//	expr  := NOT* field value (AND|OR expr)*
//	field := ip | net | node | vlan | host
//
// Parentheses may appear wherever a field may start.
func (c *Compiler) Parse(ctx context.Context, text string) (*Predicate, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return MatchAll(), nil
	}

	p := &parser{
		ctx:       ctx,
		compiler:  c,
		state:     expectFieldOrOperator,
		nodeIDs:   make(map[string]uint32),
		nodeNames: make(map[uint32]string),
	}
	for _, tok := range tokens {
		if err := p.step(tok); err != nil {
			return nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return &Predicate{terms: p.terms, human: joinTokens(p.human)}, nil
}

type state int

const (
	expectFieldOrOperator state = iota
	expectValue
	expectBoolOrClose
	stateError
)

// parser holds the state of a single Parse call, including the node lookup
// cache for that call.
type parser struct {
	ctx      context.Context
	compiler *Compiler

	state  state
	field  string
	negate bool
	depth  int

	terms []term
	human []string

	nodeIDs   map[string]uint32
	nodeNames map[uint32]string
}

func (p *parser) step(tok string) error {
	switch p.state {
	case expectFieldOrOperator:
		return p.fieldOrOperator(tok)
	case expectValue:
		return p.value(tok)
	case expectBoolOrClose:
		return p.boolOrClose(tok)
	}
	return &model.ParseError{Token: tok, Msg: "expression already rejected"}
}

func (p *parser) fail(tok, format string, args ...interface{}) error {
	p.state = stateError
	return &model.ParseError{Token: tok, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) push(t term, human string) {
	p.terms = append(p.terms, t)
	p.human = append(p.human, human)
}

func (p *parser) fieldOrOperator(tok string) error {
	kw := strings.ToLower(tok)
	switch {
	case kw == "not":
		p.negate = !p.negate
	case kw == "(":
		if p.negate {
			p.push(term{kind: termNot}, "not")
			p.negate = false
		}
		p.depth++
		p.push(term{kind: termOpen}, "(")
	case isField(kw):
		p.field = kw
		p.state = expectValue
	default:
		return p.fail(tok, "expected one of ip, net, node, vlan, host, 'not' or '('")
	}
	return nil
}

func (p *parser) value(tok string) error {
	if isKeyword(strings.ToLower(tok)) {
		return p.fail(tok, "field %q needs a value", p.field)
	}
	cond, err := p.compile(p.field, tok)
	if err != nil {
		p.state = stateError
		return err
	}
	cond.Negate = p.negate
	p.negate = false
	p.push(term{kind: termCond, cond: cond}, cond.human())
	p.state = expectBoolOrClose
	return nil
}

func (p *parser) boolOrClose(tok string) error {
	switch strings.ToLower(tok) {
	case "and":
		p.push(term{kind: termAnd}, "and")
		p.state = expectFieldOrOperator
	case "or":
		p.push(term{kind: termOr}, "or")
		p.state = expectFieldOrOperator
	case ")":
		if p.depth == 0 {
			return p.fail(tok, "unbalanced parenthesis")
		}
		p.depth--
		p.push(term{kind: termClose}, ")")
	default:
		return p.fail(tok, "expected 'and', 'or' or ')'")
	}
	return nil
}

func (p *parser) finish() error {
	switch {
	case p.state == expectValue:
		return p.fail("", "field %q needs a value", p.field)
	case p.negate:
		return p.fail("", "'not' must be followed by a field or '('")
	case p.state != expectBoolOrClose:
		return p.fail("", "expression is incomplete")
	case p.depth != 0:
		return p.fail("", "unbalanced parentheses, %d left open", p.depth)
	}
	return nil
}

func (p *parser) compile(field, tok string) (Cond, error) {
	switch field {
	case FieldIP:
		ip, err := model.ParseIPv4(tok)
		if err != nil {
			return Cond{}, p.fail(tok, "invalid IP address")
		}
		return Cond{Field: FieldIP, Value: ip, Mask: fullMask, Label: model.FormatIPv4(ip)}, nil
	case FieldHost:
		return p.compileHost(tok)
	case FieldNet:
		return p.compileNet(tok)
	case FieldNode:
		return p.compileNode(tok)
	case FieldVlan:
		vlan, err := strconv.ParseUint(tok, 10, 16)
		if err != nil || vlan > 4095 {
			return Cond{}, p.fail(tok, "vlan must be a number between 0 and 4095")
		}
		return Cond{Field: FieldVlan, Value: uint32(vlan), Mask: fullMask, Label: strconv.FormatUint(vlan, 10)}, nil
	}
	return Cond{}, p.fail(tok, "unknown field %q", field)
}

func (p *parser) compileNet(tok string) (Cond, error) {
	addr, bits, ok := strings.Cut(tok, "/")
	if !ok {
		return Cond{}, p.fail(tok, "net must be written as address/mask")
	}
	ip, err := model.ParseIPv4(addr)
	if err != nil {
		return Cond{}, p.fail(tok, "invalid network address")
	}
	n, err := strconv.Atoi(bits)
	if err != nil || n < 0 || n > 32 {
		return Cond{}, p.fail(tok, "netmask must be between 0 and 32")
	}
	mask := netmask(n)
	network := ip & mask
	return Cond{
		Field: FieldNet,
		Value: network,
		Mask:  mask,
		Label: fmt.Sprintf("%s/%d", model.FormatIPv4(network), n),
	}, nil
}

func (p *parser) compileHost(tok string) (Cond, error) {
	hosts := p.compiler.hosts
	if ip, err := model.ParseIPv4(tok); err == nil {
		label := model.FormatIPv4(ip)
		if names, err := hosts.LookupAddr(p.ctx, label); err == nil && len(names) > 0 {
			label = fmt.Sprintf("%s (%s)", strings.TrimSuffix(names[0], "."), label)
		}
		return Cond{Field: FieldHost, Value: ip, Mask: fullMask, Label: label}, nil
	}

	addrs, err := hosts.LookupHost(p.ctx, tok)
	if err != nil {
		return Cond{}, p.fail(tok, "cannot resolve host: %v", err)
	}
	for _, a := range addrs {
		if ip, err := model.ParseIPv4(a); err == nil {
			return Cond{
				Field: FieldHost,
				Value: ip,
				Mask:  fullMask,
				Label: fmt.Sprintf("%s (%s)", tok, model.FormatIPv4(ip)),
			}, nil
		}
	}
	return Cond{}, p.fail(tok, "host has no IPv4 address")
}

func (p *parser) compileNode(tok string) (Cond, error) {
	if p.compiler.nodes == nil {
		return Cond{}, p.fail(tok, "node lookups are not available")
	}

	if id64, err := strconv.ParseUint(tok, 10, 32); err == nil {
		id := uint32(id64)
		label := tok
		name, err := p.nodeName(id)
		switch {
		case errors.Is(err, model.ErrNotFound):
		case err != nil:
			return Cond{}, err
		default:
			label = fmt.Sprintf("%s (%d)", name, id)
		}
		return Cond{Field: FieldNode, Value: id, Mask: fullMask, Label: label}, nil
	}

	id, err := p.nodeID(tok)
	if errors.Is(err, model.ErrNotFound) {
		return Cond{}, p.fail(tok, "unknown node")
	}
	if err != nil {
		return Cond{}, err
	}
	return Cond{Field: FieldNode, Value: id, Mask: fullMask, Label: fmt.Sprintf("%s (%d)", tok, id)}, nil
}

func (p *parser) nodeID(name string) (uint32, error) {
	if id, ok := p.nodeIDs[name]; ok {
		return id, nil
	}
	id, err := p.compiler.nodes.NodeID(p.ctx, name)
	if err != nil {
		return 0, err
	}
	p.nodeIDs[name] = id
	p.nodeNames[id] = name
	return id, nil
}

func (p *parser) nodeName(id uint32) (string, error) {
	if name, ok := p.nodeNames[id]; ok {
		return name, nil
	}
	name, err := p.compiler.nodes.NodeName(p.ctx, id)
	if err != nil {
		return "", err
	}
	p.nodeNames[id] = name
	p.nodeIDs[name] = id
	return name, nil
}

func netmask(bits int) uint32 {
	if bits == 0 {
		return 0
	}
	return fullMask << (32 - bits)
}

func isField(kw string) bool {
	switch kw {
	case FieldIP, FieldNet, FieldNode, FieldVlan, FieldHost:
		return true
	}
	return false
}

func isKeyword(kw string) bool {
	switch kw {
	case "not", "and", "or", "(", ")":
		return true
	}
	return isField(kw)
}
