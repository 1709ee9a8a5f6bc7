package filter

// ValuesName labels the traffic a predicate selects. Plain conjunctions of at
// most one ip (or host), vlan and node comparison are spelled out the way the
// reports have always shown them ("10.0.0.1 with vlan# 4 MON core1 (3)");
// anything more involved is labelled with its human-readable expression.
func ValuesName(p *Predicate) string {
	if p.IsMatchAll() {
		return "everything"
	}

	var ip, vlan, node *Cond
	for _, t := range p.terms {
		if t.kind == termAnd {
			continue
		}
		if t.kind != termCond || t.cond.Negate {
			return p.human
		}
		c := t.cond
		switch c.Field {
		case FieldIP, FieldHost:
			if ip != nil {
				return p.human
			}
			ip = &c
		case FieldVlan:
			if vlan != nil {
				return p.human
			}
			vlan = &c
		case FieldNode:
			if node != nil {
				return p.human
			}
			node = &c
		default:
			return p.human
		}
	}

	var name string
	switch {
	case ip != nil:
		name = ip.Label
		if vlan != nil {
			name += " with vlan# " + vlan.Label
		}
	case vlan != nil:
		name = "vlan# " + vlan.Label
	}
	if node != nil {
		if name != "" {
			name += " "
		}
		name += "MON " + node.Label
	}
	return name
}
