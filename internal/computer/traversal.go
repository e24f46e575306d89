package computer

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/engine"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/source"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/traversal"
)

// TraversalProgramName is the computer.program value of TraversalProgram.
const TraversalProgramName = "traversal"

// Memory keys written by TraversalProgram.
const (
	// HaltedKey collects the traversers that reached the first root barrier.
	HaltedKey = "traversal.halted"

	// ResultsKey holds the final results after the suffix has run.
	ResultsKey = "traversal.results"

	sideEffectPrefix = "traversal.sideEffect."
)

// TraversalProgram executes a chain compiled for the Computer engine.
//
// The root chain is split at its first barrier step. Steps before it run
// at the vertex holding each traverser; a traverser that lands on another
// vertex is sent there as a message. Traversers that reach the barrier
// halt and are collected in memory. Finish runs the remaining steps in the
// Standard engine over the collected traversers.
type TraversalProgram struct {
	steps   []*traversal.Step
	barrier int
	ids     []int64
}

// travMessage carries a traverser to the vertex it stands on.
type travMessage struct {
	t    engine.Traverser
	next int
}

// NewTraversalProgram prepares a compiled chain for execution. The chain
// must be compiled for the Computer engine and start with V().
func NewTraversalProgram(chain *traversal.Chain) (*TraversalProgram, error) {
	if chain == nil || chain.State() != traversal.StateCompiled {
		return nil, fmt.Errorf("traversal program needs a compiled chain")
	}
	if chain.Engine() != traversal.EngineComputer {
		return nil, fmt.Errorf("traversal program needs a chain compiled for the computer engine, got %s", chain.Engine())
	}
	first := chain.First()
	if first == nil || first.Kind() != traversal.KindV {
		return nil, fmt.Errorf("computer traversals must start with V()")
	}
	p := &TraversalProgram{steps: chain.Steps(), barrier: chain.Len()}
	for i, s := range p.steps {
		if s.Category() == traversal.CategoryBarrier {
			p.barrier = i
			break
		}
	}
	if v := first.Value(); v != nil {
		p.ids, _ = ir.AsInts(v)
	}
	return p, nil
}

// NewTraversalProgramFromConfig is the ProgramFactory of TraversalProgram.
// It reads the traversal from traversal.source and compiles it with the
// default strategies for the Computer engine.
func NewTraversalProgramFromConfig(cfg config.Config) (VertexProgram, error) {
	text, ok := cfg.Get(config.KeySource)
	if !ok {
		return nil, fmt.Errorf("%s is not set", config.KeySource)
	}
	t, err := source.ParseTraversal(config.KeySource, text)
	if err != nil {
		return nil, err
	}
	chain, err := t.Build()
	if err != nil {
		return nil, err
	}
	if err := strategy.DefaultRegistry().Compile(context.Background(), chain, traversal.EngineComputer); err != nil {
		return nil, err
	}
	return NewTraversalProgram(chain)
}

// Barrier returns the index of the first root barrier step, or the chain
// length when there is none.
func (p *TraversalProgram) Barrier() int { return p.barrier }

func (p *TraversalProgram) Setup(mem Memory) error {
	mem.Set(HaltedKey)
	return nil
}

func (p *TraversalProgram) Execute(ctx context.Context, v *Vertex, m Messenger, mem Memory) error {
	defer v.VoteToHalt()

	if mem.Superstep() == 0 && p.selects(v.ID) {
		start := engine.NewTraverser(v.Vertex).Mark(p.steps[0].Labels()...)
		if err := p.advance(ctx, v, start, 1, m, mem); err != nil {
			return err
		}
	}
	for _, msg := range m.Incoming() {
		tm, ok := msg.Payload.(travMessage)
		if !ok {
			return fmt.Errorf("unexpected message payload %T", msg.Payload)
		}
		if err := p.advance(ctx, v, tm.t, tm.next, m, mem); err != nil {
			return err
		}
	}
	return nil
}

// Terminate leaves termination to halt votes: the job ends once no
// traverser is in flight.
func (p *TraversalProgram) Terminate(Memory) bool { return false }

// Finish runs the steps from the first barrier on over the halted
// traversers and stores the results under ResultsKey.
func (p *TraversalProgram) Finish(ctx context.Context, g graph.Graph, mem Memory) error {
	halted := mem.Get(HaltedKey)
	starts := make([]engine.Traverser, 0, len(halted))
	for _, h := range halted {
		starts = append(starts, h.(engine.Traverser))
	}
	x, err := engine.NewStandard(g).Pipe(p.steps[p.barrier:], starts)
	if err != nil {
		return err
	}
	results, err := x.Results(ctx)
	if err != nil {
		return err
	}
	out := make([]any, len(results))
	for i, t := range results {
		out[i] = t
	}
	mem.Set(ResultsKey, out...)
	for key, ts := range x.SideEffects() {
		for _, t := range ts {
			mem.Add(sideEffectPrefix+key, t)
		}
	}
	return nil
}

func (p *TraversalProgram) selects(id int64) bool {
	return len(p.ids) == 0 || slices.Contains(p.ids, id)
}

// advance runs t from step next while it stays at v. Traversers that land
// on another vertex are sent there; traversers that reach the barrier halt.
func (p *TraversalProgram) advance(ctx context.Context, v *Vertex, t engine.Traverser, next int, m Messenger, mem Memory) error {
	std := engine.NewStandard(v.Graph())
	type work struct {
		t    engine.Traverser
		next int
	}
	queue := []work{{t, next}}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if w.next >= p.barrier {
			mem.Add(HaltedKey, w.t)
			continue
		}
		x, err := std.Pipe(p.steps[w.next:w.next+1], []engine.Traverser{w.t})
		if err != nil {
			return err
		}
		results, err := x.Results(ctx)
		if err != nil {
			return err
		}
		for key, ts := range x.SideEffects() {
			for _, st := range ts {
				mem.Add(sideEffectPrefix+key, st)
			}
		}
		for _, r := range results {
			if rv, ok := r.Vertex(); ok && rv.ID != v.ID {
				m.Send(rv.ID, travMessage{t: r, next: w.next + 1})
				continue
			}
			queue = append(queue, work{r, w.next + 1})
		}
	}
	return nil
}

// TraversalResults returns the final traversers of a TraversalProgram job.
func TraversalResults(res Result) []engine.Traverser {
	raw := res.Memory[ResultsKey]
	out := make([]engine.Traverser, 0, len(raw))
	for _, r := range raw {
		if t, ok := r.(engine.Traverser); ok {
			out = append(out, t)
		}
	}
	return out
}

// TraversalSideEffect returns what store(key) steps collected during a job.
func TraversalSideEffect(res Result, key string) []engine.Traverser {
	raw := res.Memory[sideEffectPrefix+key]
	out := make([]engine.Traverser, 0, len(raw))
	for _, r := range raw {
		if t, ok := r.(engine.Traverser); ok {
			out = append(out, t)
		}
	}
	return out
}
