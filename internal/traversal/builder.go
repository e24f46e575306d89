package traversal

import (
	"fmt"

	"github.com/roach88/traverse/internal/ir"
)

// Builder assembles a chain step by step in fluent style. It is the
// minimal build-phase surface needed to produce chains for compilation.
//
// Errors are accumulated and reported by Build, so call sites can chain
// calls without checking each one.
//
// Example:
//
//	chain, err := traversal.New().V().Out("knows").Count().Is(traversal.Eq(0)).Build()
type Builder struct {
	chain *Chain
	err   error
}

// New starts a root chain.
func New() *Builder {
	return &Builder{chain: NewChain()}
}

// Anon starts an anonymous chain destined to become a child of another step.
func Anon() *Builder {
	return New()
}

func (b *Builder) add(s *Step) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.chain.Add(s); err != nil {
		b.err = fmt.Errorf("add %s: %w", s.kind, err)
	}
	return b
}

func (b *Builder) addParent(kind Kind, children ...*Builder) *Builder {
	if b.err != nil {
		return b
	}
	chains := make([]*Chain, len(children))
	for i, child := range children {
		c, err := child.Build()
		if err != nil {
			b.err = fmt.Errorf("%s child %d: %w", kind, i, err)
			return b
		}
		chains[i] = c
	}
	s, err := NewParentStep(kind, chains...)
	if err != nil {
		b.err = fmt.Errorf("%s: %w", kind, err)
		return b
	}
	return b.add(s)
}

// Start adds an explicit start-of-traversal step.
func (b *Builder) Start() *Builder { return b.add(NewStep(KindStart)) }

// V adds a graph start step over all vertices, or over the given vertex ids.
func (b *Builder) V(ids ...int64) *Builder {
	s := NewStep(KindV)
	if len(ids) > 0 {
		s.value = ir.Ints(ids...)
	}
	return b.add(s)
}

// Out adds an out-adjacent-vertex step over the given edge labels (all when empty).
func (b *Builder) Out(labels ...string) *Builder { return b.add(NewStep(KindOut, labels...)) }

// In adds an in-adjacent-vertex step.
func (b *Builder) In(labels ...string) *Builder { return b.add(NewStep(KindIn, labels...)) }

// Both adds a both-directions adjacent-vertex step.
func (b *Builder) Both(labels ...string) *Builder { return b.add(NewStep(KindBoth, labels...)) }

// OutE adds an outgoing-edge step.
func (b *Builder) OutE(labels ...string) *Builder { return b.add(NewStep(KindOutE, labels...)) }

// InE adds an incoming-edge step.
func (b *Builder) InE(labels ...string) *Builder { return b.add(NewStep(KindInE, labels...)) }

// InV adds an edge-to-head-vertex step.
func (b *Builder) InV() *Builder { return b.add(NewStep(KindInV)) }

// OutV adds an edge-to-tail-vertex step.
func (b *Builder) OutV() *Builder { return b.add(NewStep(KindOutV)) }

// Has adds a property equality filter.
func (b *Builder) Has(key string, value any) *Builder {
	v, err := ir.FromAny(value)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("has(%s): %w", key, err)
		return b
	}
	return b.add(NewHasStep(key, v))
}

// HasTraversal adds a filter that passes elements for which child yields a result.
func (b *Builder) HasTraversal(child *Builder) *Builder {
	return b.addParent(KindHasTraversal, child)
}

// Where is HasTraversal under the name used for correlated filters.
func (b *Builder) Where(child *Builder) *Builder {
	return b.addParent(KindWhere, child)
}

// Values adds a property-value step.
func (b *Builder) Values(keys ...string) *Builder { return b.add(NewStep(KindValues, keys...)) }

// Count adds a counting barrier.
func (b *Builder) Count() *Builder { return b.add(NewStep(KindCount)) }

// Is adds a value filter. A P is used as-is; any other value means Eq(value).
func (b *Builder) Is(value any) *Builder {
	if p, ok := value.(P); ok {
		return b.add(NewIsStep(p))
	}
	v, err := ir.FromAny(value)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("is: %w", err)
		return b
	}
	return b.add(NewIsStep(P{Compare: CompareEq, Value: v}))
}

// Range adds a range[low, high) barrier.
func (b *Builder) Range(low, high int64) *Builder { return b.add(NewRangeStep(low, high)) }

// Limit adds range[0, n).
func (b *Builder) Limit(n int64) *Builder { return b.Range(0, n) }

// Identity adds an identity step.
func (b *Builder) Identity() *Builder { return b.add(NewIdentityStep()) }

// Store adds a side effect collecting every element under key.
func (b *Builder) Store(key string) *Builder { return b.add(NewStep(KindStore, key)) }

// As labels the most recently added step.
func (b *Builder) As(labels ...string) *Builder {
	if b.err != nil {
		return b
	}
	last := b.chain.Last()
	if last == nil {
		b.err = fmt.Errorf("as(%v): no step to label", labels)
		return b
	}
	last.AddLabels(labels...)
	return b
}

// And adds an explicit conjunction over the given operands. With no
// operands it adds an AND marker, the infix form resolved at compile time:
// New().Out().And().In() means out() AND in().
func (b *Builder) And(operands ...*Builder) *Builder {
	if len(operands) == 0 {
		return b.add(NewStep(KindAndMarker))
	}
	return b.addParent(KindAnd, operands...)
}

// Or is the disjunctive counterpart of And.
func (b *Builder) Or(operands ...*Builder) *Builder {
	if len(operands) == 0 {
		return b.add(NewStep(KindOrMarker))
	}
	return b.addParent(KindOr, operands...)
}

// Build returns the chain or the first error recorded while building.
// A builder's chain can be taken only once.
func (b *Builder) Build() (*Chain, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.chain == nil {
		return nil, fmt.Errorf("builder already consumed")
	}
	c := b.chain
	b.chain = nil
	return c, nil
}

// MustBuild is like Build but panics on error. Use in tests and for
// literal chains known to be valid.
func (b *Builder) MustBuild() *Chain {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}
