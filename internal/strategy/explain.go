package strategy

import (
	"context"

	"github.com/roach88/traverse/internal/traversal"
)

// Explanation records how compilation rewrote one chain.
type Explanation struct {
	Engine   traversal.EngineKind `json:"engine"`
	Original string               `json:"original"`
	Steps    []ExplanationStep    `json:"steps"`
	Final    string               `json:"final"`
}

// ExplanationStep is the chain as it stood after one strategy applied.
type ExplanationStep struct {
	Strategy string `json:"strategy"`
	Phase    string `json:"phase"`
	Chain    string `json:"chain"`
	Changed  bool   `json:"changed"`
}

// Explain compiles chain exactly as Compile does and records the rendered
// chain after every strategy. When compilation fails the explanation holds
// the strategies that applied before the failure.
func (r *Registry) Explain(ctx context.Context, chain *traversal.Chain, engine traversal.EngineKind) (*Explanation, error) {
	ex := &Explanation{Engine: engine, Steps: []ExplanationStep{}}
	if chain != nil {
		ex.Original = chain.String()
	}
	prev := ex.Original
	err := r.compile(ctx, chain, engine, func(s Strategy, c *traversal.Chain) {
		rendered := c.String()
		ex.Steps = append(ex.Steps, ExplanationStep{
			Strategy: s.Name(),
			Phase:    s.Phase().String(),
			Chain:    rendered,
			Changed:  rendered != prev,
		})
		prev = rendered
	})
	ex.Final = prev
	return ex, err
}
