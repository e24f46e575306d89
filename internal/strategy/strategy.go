package strategy

import (
	"fmt"
	"strings"

	"github.com/roach88/traverse/internal/traversal"
)

// Phase groups strategies. Phases run in a fixed total order; ordering
// relations only apply between strategies of the same phase.
type Phase int

const (
	PhaseDecoration Phase = iota + 1
	PhaseOptimization
	PhaseFinalization
	PhaseVerification
)

// Phases lists every phase in application order.
var Phases = []Phase{PhaseDecoration, PhaseOptimization, PhaseFinalization, PhaseVerification}

func (p Phase) String() string {
	switch p {
	case PhaseDecoration:
		return "decoration"
	case PhaseOptimization:
		return "optimization"
	case PhaseFinalization:
		return "finalization"
	case PhaseVerification:
		return "verification"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= PhaseDecoration && p <= PhaseVerification
}

// ParsePhase resolves a phase from its name.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Strategy rewrites a chain in place.
//
// Strategies are stateless singletons: one instance is created per process
// and shared by every registry and every compilation. Apply must not keep
// state between calls. The engine a chain is compiled for is available as
// chain.Engine().
type Strategy interface {
	// Name identifies the strategy in ordering relations and errors.
	// Names are unique within a registry.
	Name() string

	// Phase returns the phase the strategy belongs to.
	Phase() Phase

	// Apply rewrites the chain. It is called exactly once per compilation.
	Apply(chain *traversal.Chain) error
}

// Ordered is implemented by strategies that constrain their position
// within their phase.
type Ordered interface {
	// Prior names strategies this one must run after.
	Prior() []string

	// Posterior names strategies this one must run before.
	Posterior() []string
}
