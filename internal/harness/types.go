package harness

import (
	"github.com/roach88/traverse/internal/traversal"
)

// Plan is what one engine did with the scenario's traversal.
type Plan struct {
	// Engine is the engine the chain was compiled for.
	Engine traversal.EngineKind `json:"engine"`

	// Compiled is the rendered chain after every strategy ran.
	Compiled string `json:"compiled"`

	// Results are the rendered results in the order the engine produced them.
	Results []string `json:"results"`

	// SideEffects holds what store(key) steps collected, rendered.
	SideEffects map[string][]string `json:"side_effects,omitempty"`

	// Supersteps is the number of supersteps a computer job ran. Zero for
	// the standard engine.
	Supersteps int `json:"supersteps,omitempty"`

	chain *traversal.Chain
}

// Chain returns the compiled chain behind the plan.
func (p *Plan) Chain() *traversal.Chain { return p.chain }

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Plans holds one entry per engine, in scenario order.
	Plans []*Plan `json:"plans"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Plans:  []*Plan{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPlan records the plan of one engine.
func (r *Result) AddPlan(p *Plan) {
	r.Plans = append(r.Plans, p)
}

// Plan returns the plan for engine, or nil when the scenario did not run it.
func (r *Result) Plan(engine traversal.EngineKind) *Plan {
	for _, p := range r.Plans {
		if p.Engine == engine {
			return p
		}
	}
	return nil
}
