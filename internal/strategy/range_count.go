package strategy

import (
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/traversal"
)

// RangeByIsCountStrategy bounds a count that is only compared against a
// constant. count().is(p) becomes range(low,high).count().is(p) with the
// smallest [low, high) that cannot change the outcome of p, so the
// upstream scan stops early.
//
// Nested chains run per element under both engines and are always
// rewritten. Whether the root chain is rewritten is decided per engine by
// RangePolicies.
type RangeByIsCountStrategy struct{}

// RangeByIsCount is the process-wide RangeByIsCountStrategy instance.
var RangeByIsCount Strategy = RangeByIsCountStrategy{}

// RangePolicy says where bound pushdown may apply for one engine.
type RangePolicy struct {
	// Root allows rewriting the top-level chain.
	Root bool
	// Nested allows rewriting chains owned by steps.
	Nested bool
}

// RangePolicies is the per-engine pushdown policy. An engine may bound the
// root chain only if it evaluates root barriers over the whole traversal
// set. The computer engine halts traversers at the first root barrier and
// runs the rest of the chain once over all of them after the last
// superstep, so a root range is global there as well.
var RangePolicies = map[traversal.EngineKind]RangePolicy{
	traversal.EngineStandard: {Root: true, Nested: true},
	traversal.EngineComputer: {Root: true, Nested: true},
}

func (RangeByIsCountStrategy) Name() string { return "RangeByIsCountStrategy" }

func (RangeByIsCountStrategy) Phase() Phase { return PhaseOptimization }

// Prior runs identity removal first so identity(...) between count and is
// does not hide the pattern.
func (RangeByIsCountStrategy) Prior() []string { return []string{"IdentityRemovalStrategy"} }

func (RangeByIsCountStrategy) Posterior() []string { return nil }

func (RangeByIsCountStrategy) Apply(chain *traversal.Chain) error {
	engine := chain.Engine()
	if engine == traversal.EngineUnset {
		engine = traversal.EngineStandard
	}
	policy := RangePolicies[engine]

	for _, c := range chain.Chains() {
		if (c.IsRoot() && !policy.Root) || (!c.IsRoot() && !policy.Nested) {
			continue
		}
		if err := boundCounts(c); err != nil {
			return err
		}
	}
	return nil
}

// boundCounts rewrites every count().is(p) pair directly in c.
func boundCounts(c *traversal.Chain) error {
	for _, count := range c.StepsOfKind(traversal.KindCount) {
		is := c.Next(count)
		if is == nil || is.Kind() != traversal.KindIs || is.Predicate() == nil {
			continue
		}
		if prev := c.Prev(count); prev != nil && prev.Kind() == traversal.KindRange {
			continue
		}
		low, high, ok := CountBound(*is.Predicate())
		if !ok {
			continue
		}
		if err := c.Insert(traversal.NewRangeStep(low, high), c.IndexOf(count)); err != nil {
			return err
		}
		slog.Debug("bounded count",
			"predicate", is.Predicate().String(),
			"low", low,
			"high", high,
		)
	}
	return nil
}

// CountBound returns the smallest [low, high) such that counting at most
// high-1 elements decides p the same way as counting all of them. The
// second result is false when no finite bound exists or the operand is not
// a non-negative count.
func CountBound(p traversal.P) (low, high int64, ok bool) {
	switch p.Compare {
	case traversal.CompareEq, traversal.CompareLte, traversal.CompareGt:
		v, ok := countOperand(p.Value)
		if !ok {
			return 0, 0, false
		}
		return above(v)
	case traversal.CompareLt, traversal.CompareGte:
		v, ok := countOperand(p.Value)
		if !ok {
			return 0, 0, false
		}
		return 0, v, true
	case traversal.CompareInside, traversal.CompareOutside:
		vs, ok := countOperands(p.Value)
		if !ok || len(vs) != 2 {
			return 0, 0, false
		}
		if p.Compare == traversal.CompareInside {
			return 0, vs[1], true
		}
		return above(vs[1])
	case traversal.CompareWithin, traversal.CompareWithout:
		vs, ok := countOperands(p.Value)
		if !ok || len(vs) == 0 {
			return 0, 0, false
		}
		maxV := slices.Max(vs)
		if p.Compare == traversal.CompareWithin {
			return above(maxV)
		}
		return 0, maxV, true
	}
	// neq has no finite bound.
	return 0, 0, false
}

// above returns the bound [0, v+1). There is none when v+1 overflows.
func above(v int64) (low, high int64, ok bool) {
	if v == math.MaxInt64 {
		return 0, 0, false
	}
	return 0, v + 1, true
}

func countOperand(v ir.IRValue) (int64, bool) {
	n, ok := ir.AsInt(v)
	return n, ok && n >= 0
}

func countOperands(v ir.IRValue) ([]int64, bool) {
	ns, ok := ir.AsInts(v)
	if !ok {
		return nil, false
	}
	for _, n := range ns {
		if n < 0 {
			return nil, false
		}
	}
	return ns, true
}
