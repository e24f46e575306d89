package strategy

import "github.com/roach88/traverse/internal/traversal"

// IdentityRemovalStrategy drops unlabeled identity steps. A labeled or
// materialized identity step is kept, and so is an identity step that is
// the only step of its chain, since an empty operand means something else.
type IdentityRemovalStrategy struct{}

// IdentityRemoval is the process-wide IdentityRemovalStrategy instance.
var IdentityRemoval Strategy = IdentityRemovalStrategy{}

func (IdentityRemovalStrategy) Name() string { return "IdentityRemovalStrategy" }

func (IdentityRemovalStrategy) Phase() Phase { return PhaseOptimization }

func (IdentityRemovalStrategy) Apply(chain *traversal.Chain) error {
	for _, c := range chain.Chains() {
		for _, s := range c.StepsOfKind(traversal.KindIdentity) {
			if s.HasLabels() || s.Materialized() || c.Len() == 1 {
				continue
			}
			if err := c.Remove(s); err != nil {
				return err
			}
		}
	}
	return nil
}
