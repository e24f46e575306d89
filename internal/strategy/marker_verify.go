package strategy

import (
	"fmt"

	"github.com/roach88/traverse/internal/traversal"
)

// MarkerVerificationStrategy fails compilation when any conjunction marker
// survives into the verification phase, anywhere in the chain tree.
type MarkerVerificationStrategy struct{}

// MarkerVerification is the process-wide MarkerVerificationStrategy instance.
var MarkerVerification Strategy = MarkerVerificationStrategy{}

func (MarkerVerificationStrategy) Name() string { return "MarkerVerificationStrategy" }

func (MarkerVerificationStrategy) Phase() Phase { return PhaseVerification }

func (MarkerVerificationStrategy) Apply(chain *traversal.Chain) error {
	var found *traversal.Step
	chain.Walk(func(s *traversal.Step) bool {
		if s.Category() == traversal.CategoryMarker {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return &InvariantError{
		Invariant: "no-markers-after-decoration",
		Step:      found.ID(),
		Message:   fmt.Sprintf("%s survived conjunction folding in %s", found.Kind(), found.Owner()),
	}
}
