package source

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/traverse/internal/traversal"
)

// stepSpec is the decoded form of one #Step.
type stepSpec struct {
	field     string
	pos       token.Pos
	kind      traversal.Kind
	args      []string
	ids       []int64
	value     any
	pred      *traversal.P
	low, high int64
	hasHigh   bool
	as        []string
	children  [][]stepSpec
}

func decodeSteps(v cue.Value, field string) ([]stepSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []stepSpec
	for i := 0; iter.Next(); i++ {
		s, err := decodeStep(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStep(v cue.Value, field string) (stepSpec, error) {
	s := stepSpec{field: field, pos: v.Pos(), high: traversal.Unbounded}

	name, err := v.LookupPath(cue.ParsePath("step")).String()
	if err != nil {
		return s, formatCUEError(err)
	}
	kind, ok := traversal.ParseKind(name)
	if !ok {
		return s, &SourceError{Field: field + ".step", Message: fmt.Sprintf("unknown step %q", name), Pos: s.pos}
	}
	s.kind = kind

	if s.args, err = stringList(v, "args"); err != nil {
		return s, err
	}
	if s.as, err = stringList(v, "as"); err != nil {
		return s, err
	}
	if ids := v.LookupPath(cue.ParsePath("ids")); ids.Exists() {
		iter, err := ids.List()
		if err != nil {
			return s, formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return s, formatCUEError(err)
			}
			s.ids = append(s.ids, n)
		}
	}
	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		if s.value, err = native(val); err != nil {
			return s, err
		}
	}
	if p := v.LookupPath(cue.ParsePath("predicate")); p.Exists() {
		compare, err := p.LookupPath(cue.ParsePath("compare")).String()
		if err != nil {
			return s, formatCUEError(err)
		}
		operand, err := native(p.LookupPath(cue.ParsePath("value")))
		if err != nil {
			return s, err
		}
		pred, err := traversal.NewP(compare, operand)
		if err != nil {
			return s, &SourceError{Field: field + ".predicate", Message: err.Error(), Pos: p.Pos()}
		}
		s.pred = &pred
	}
	if low := v.LookupPath(cue.ParsePath("low")); low.Exists() {
		if s.low, err = low.Int64(); err != nil {
			return s, formatCUEError(err)
		}
	}
	if high := v.LookupPath(cue.ParsePath("high")); high.Exists() {
		if s.high, err = high.Int64(); err != nil {
			return s, formatCUEError(err)
		}
		s.hasHigh = true
	}
	if children := v.LookupPath(cue.ParsePath("children")); children.Exists() {
		iter, err := children.List()
		if err != nil {
			return s, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			child, err := decodeSteps(iter.Value(), fmt.Sprintf("%s.children[%d]", field, i))
			if err != nil {
				return s, err
			}
			s.children = append(s.children, child)
		}
	}
	return s, s.check()
}

// check enforces the per-kind shape the schema cannot express.
func (s stepSpec) check() error {
	fail := func(format string, args ...any) error {
		return &SourceError{Field: s.field, Message: fmt.Sprintf(format, args...), Pos: s.pos}
	}
	switch s.kind {
	case traversal.KindHas:
		if len(s.args) != 1 {
			return fail("has needs exactly one property key")
		}
		if len(s.children) > 0 {
			return fail("has takes a value, use hasTraversal for a child traversal")
		}
		if s.value == nil {
			return fail("has needs a value")
		}
	case traversal.KindIs:
		if s.pred == nil && s.value == nil {
			return fail("is needs a predicate or a value")
		}
	case traversal.KindRange:
		if !s.hasHigh {
			return fail("range needs high (-1 for unbounded)")
		}
		if s.high != traversal.Unbounded && s.high < s.low {
			return fail("range high %d is below low %d", s.high, s.low)
		}
	case traversal.KindStore:
		if len(s.args) != 1 {
			return fail("store needs exactly one key")
		}
	case traversal.KindHasTraversal, traversal.KindWhere:
		if len(s.children) != 1 {
			return fail("%s needs exactly one child traversal", s.kind)
		}
	case traversal.KindAnd, traversal.KindOr:
		if len(s.children) == 1 {
			return fail("%s needs zero children (infix) or at least two", s.kind)
		}
	}
	if len(s.children) > 0 && s.kind.Category() != traversal.CategoryFilter {
		return fail("%s does not take child traversals", s.kind)
	}
	return nil
}

// builderFor replays decoded steps onto a traversal builder.
func builderFor(specs []stepSpec) (*traversal.Builder, error) {
	b := traversal.New()
	for _, s := range specs {
		children := make([]*traversal.Builder, len(s.children))
		for i, child := range s.children {
			cb, err := builderFor(child)
			if err != nil {
				return nil, err
			}
			children[i] = cb
		}

		switch s.kind {
		case traversal.KindStart:
			b.Start()
		case traversal.KindV:
			b.V(s.ids...)
		case traversal.KindOut:
			b.Out(s.args...)
		case traversal.KindIn:
			b.In(s.args...)
		case traversal.KindBoth:
			b.Both(s.args...)
		case traversal.KindOutE:
			b.OutE(s.args...)
		case traversal.KindInE:
			b.InE(s.args...)
		case traversal.KindInV:
			b.InV()
		case traversal.KindOutV:
			b.OutV()
		case traversal.KindHas:
			b.Has(s.args[0], s.value)
		case traversal.KindHasTraversal:
			b.HasTraversal(children[0])
		case traversal.KindWhere:
			b.Where(children[0])
		case traversal.KindValues:
			b.Values(s.args...)
		case traversal.KindCount:
			b.Count()
		case traversal.KindIs:
			if s.pred != nil {
				b.Is(*s.pred)
			} else {
				b.Is(s.value)
			}
		case traversal.KindRange:
			b.Range(s.low, s.high)
		case traversal.KindIdentity:
			b.Identity()
		case traversal.KindStore:
			b.Store(s.args[0])
		case traversal.KindAnd, traversal.KindAndMarker:
			b.And(children...)
		case traversal.KindOr, traversal.KindOrMarker:
			b.Or(children...)
		default:
			return nil, &SourceError{Field: s.field, Message: fmt.Sprintf("step %s cannot be built", s.kind), Pos: s.pos}
		}
		if len(s.as) > 0 {
			b.As(s.as...)
		}
	}
	return b, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// native converts a concrete CUE scalar or list into Go values accepted by
// ir.FromAny. Floats are rejected.
func native(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out []any
		for iter.Next() {
			elem, err := native(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	}
	return nil, &SourceError{Field: "value", Message: fmt.Sprintf("unsupported value kind %s", v.Kind()), Pos: v.Pos()}
}
