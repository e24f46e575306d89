package strategy

import (
	"fmt"

	"github.com/roach88/traverse/internal/traversal"
)

// ConjunctionStrategy folds AND/OR markers into explicit And/Or steps.
//
// For each marker, the consecutive legal steps after it become the right
// operand and the consecutive legal steps before it become the left operand;
// the marker is then replaced in place by the conjunction step owning both.
// AND markers are folded across the whole chain tree before OR markers, so
// AND binds tighter: a.and().b.or().c folds to or(and(a,b),c).
type ConjunctionStrategy struct{}

// Conjunction is the process-wide ConjunctionStrategy instance.
var Conjunction Strategy = ConjunctionStrategy{}

func (ConjunctionStrategy) Name() string { return "ConjunctionStrategy" }

func (ConjunctionStrategy) Phase() Phase { return PhaseDecoration }

func (ConjunctionStrategy) Apply(chain *traversal.Chain) error {
	if err := foldMarkers(chain, traversal.KindAndMarker, traversal.KindAnd); err != nil {
		return err
	}
	return foldMarkers(chain, traversal.KindOrMarker, traversal.KindOr)
}

// legalOperand reports whether s may be captured into a conjunction operand.
// Evaluated against the live chain, so a nil neighbor means end of chain.
func legalOperand(s *traversal.Step) bool {
	return s != nil && !s.Kind().IsMarker() && s.Category() != traversal.CategoryStart
}

// foldMarkers folds every marker of one kind in c and in every chain nested
// below it. The scan is live: each iteration looks up the leftmost remaining
// marker after the previous rewrite.
func foldMarkers(c *traversal.Chain, marker, conjunction traversal.Kind) error {
	for m := c.FirstOfKind(marker); m != nil; m = c.FirstOfKind(marker) {
		if err := foldMarker(c, m, conjunction); err != nil {
			return err
		}
	}
	for _, s := range c.Steps() {
		for _, child := range s.Children() {
			if err := foldMarkers(child, marker, conjunction); err != nil {
				return err
			}
		}
	}
	return nil
}

func foldMarker(c *traversal.Chain, m *traversal.Step, conjunction traversal.Kind) error {
	right := traversal.NewChain()
	for next := c.Next(m); legalOperand(next); next = c.Next(m) {
		if err := moveStep(c, next, right, right.Len()); err != nil {
			return err
		}
	}

	left := traversal.NewChain()
	for prev := c.Prev(m); legalOperand(prev); prev = c.Prev(m) {
		if err := moveStep(c, prev, left, 0); err != nil {
			return err
		}
	}

	folded, err := traversal.NewParentStep(conjunction, left, right)
	if err != nil {
		return fmt.Errorf("fold %s: %w", m.Kind(), err)
	}
	folded.AddLabels(m.Labels()...)
	if err := c.Replace(m, folded); err != nil {
		return fmt.Errorf("fold %s: %w", m.Kind(), err)
	}
	return nil
}

func moveStep(from *traversal.Chain, s *traversal.Step, to *traversal.Chain, index int) error {
	taken, err := from.Take(s)
	if err != nil {
		return fmt.Errorf("capture operand %s: %w", s.Kind(), err)
	}
	return to.AddAt(taken, index)
}
