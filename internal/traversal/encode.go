package traversal

import (
	"strconv"
	"strings"

	"github.com/roach88/traverse/internal/ir"
)

// Encode returns the canonical structural form of the chain: one object per
// step with its kind and whichever payload fields are set. Step handles are
// excluded, so equal structures encode identically across compilations.
func (c *Chain) Encode() ir.IRArray {
	out := make(ir.IRArray, 0, len(c.steps))
	for _, s := range c.steps {
		out = append(out, s.Encode())
	}
	return out
}

// Encode returns the canonical structural form of a single step.
func (s *Step) Encode() ir.IRObject {
	obj := ir.IRObject{"kind": ir.IRString(s.kind.String())}
	if len(s.labels) > 0 {
		obj["labels"] = stringsToIR(s.labels)
	}
	if len(s.args) > 0 {
		obj["args"] = stringsToIR(s.args)
	}
	if s.value != nil {
		obj["value"] = s.value
	}
	if s.pred != nil {
		obj["predicate"] = s.pred.encode()
	}
	if s.kind == KindRange {
		obj["range"] = ir.Ints(s.low, s.high)
	}
	if len(s.children) > 0 {
		children := make(ir.IRArray, len(s.children))
		for i, child := range s.children {
			children[i] = child.Encode()
		}
		obj["children"] = children
	}
	return obj
}

// Fingerprint returns the content hash of the chain structure.
func (c *Chain) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainChain, c.Encode())
}

// String renders the chain in traversal notation, for example
// out(knows).range(0,1).count().is(eq(0)). An empty chain renders as "__".
func (c *Chain) String() string {
	if len(c.steps) == 0 {
		return "__"
	}
	parts := make([]string, len(c.steps))
	for i, s := range c.steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

func (s *Step) String() string {
	var b strings.Builder
	b.WriteString(s.kind.String())
	b.WriteByte('(')
	switch {
	case s.pred != nil:
		b.WriteString(s.pred.String())
	case s.kind == KindRange:
		b.WriteString(strconv.FormatInt(s.low, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(s.high, 10))
	case len(s.children) > 0:
		for i, child := range s.children {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(child.String())
		}
	default:
		b.WriteString(strings.Join(s.args, ","))
		if s.value != nil {
			if len(s.args) > 0 {
				b.WriteByte(',')
			}
			b.WriteString(ir.String(s.value))
		}
	}
	b.WriteByte(')')
	for _, l := range s.labels {
		b.WriteString(".as(")
		b.WriteString(l)
		b.WriteByte(')')
	}
	return b.String()
}

func stringsToIR(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}
