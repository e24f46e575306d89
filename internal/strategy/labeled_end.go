package strategy

import "github.com/roach88/traverse/internal/traversal"

// LabeledEndStrategy keeps a labeled terminal step addressable. When the
// root chain ends in a labeled step, an identity step carrying the same
// labels is appended; the labeled step keeps its labels. A chain that
// already ends in such an appended identity step is left alone.
type LabeledEndStrategy struct{}

// LabeledEnd is the process-wide LabeledEndStrategy instance.
var LabeledEnd Strategy = LabeledEndStrategy{}

func (LabeledEndStrategy) Name() string { return "LabeledEndStrategy" }

func (LabeledEndStrategy) Phase() Phase { return PhaseFinalization }

func (LabeledEndStrategy) Apply(chain *traversal.Chain) error {
	last := chain.Last()
	if last == nil || !last.HasLabels() || last.Materialized() {
		return nil
	}
	return chain.Add(traversal.NewMaterializedIdentityStep(last.Labels()...))
}
