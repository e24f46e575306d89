package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/traversal"
)

// Stats counts, per step, how many traversers the step produced. Steps of
// child chains are included under their own ids.
type Stats map[traversal.StepID]int64

// Standard executes compiled chains against a graph.
type Standard struct {
	g graph.Graph
}

// NewStandard creates a Standard engine reading from g.
func NewStandard(g graph.Graph) *Standard {
	return &Standard{g: g}
}

// Execute starts executing a root chain compiled for the Standard engine.
// The chain moves to Executing and, once the execution is drained or fails,
// to Done or Failed.
//
// With no starts the chain is fed a single seed traverser, which is what
// a chain beginning with V() expects.
func (e *Standard) Execute(chain *traversal.Chain, starts ...Traverser) (*Execution, error) {
	if chain == nil || !chain.IsRoot() {
		return nil, &RuntimeError{Code: ErrCodeNotCompiled, Message: "only a root chain can be executed"}
	}
	if st := chain.State(); st != traversal.StateCompiled {
		return nil, &RuntimeError{Code: ErrCodeNotCompiled, Message: fmt.Sprintf("chain is %s, want compiled", st)}
	}
	if kind := chain.Engine(); kind != traversal.EngineStandard {
		return nil, &RuntimeError{Code: ErrCodeEngineMismatch, Message: fmt.Sprintf("chain compiled for %s engine", kind)}
	}
	if err := chain.Transition(traversal.StateExecuting); err != nil {
		return nil, err
	}

	if len(starts) == 0 {
		starts = []Traverser{Seed()}
	}
	x, err := e.pipe(chain.Steps(), starts)
	if err != nil {
		_ = chain.Transition(traversal.StateFailed)
		return nil, err
	}
	x.chain = chain
	slog.Debug("execution started", "chain", chain.String(), "starts", len(starts))
	return x, nil
}

// Pipe runs a contiguous run of compiled steps over exactly the given
// starts with no lifecycle bookkeeping. The computer engine uses it to run
// single steps at a vertex and to finish a traversal after its last
// superstep.
func (e *Standard) Pipe(steps []*traversal.Step, starts []Traverser) (*Execution, error) {
	return e.pipe(steps, starts)
}

// Seed returns the traverser that feeds a root chain: it stands on nothing,
// so the first step must be a start step such as V().
func Seed() Traverser { return Traverser{} }

func (e *Standard) pipe(steps []*traversal.Step, starts []Traverser) (*Execution, error) {
	x := &Execution{
		g:           e.g,
		stats:       Stats{},
		sideEffects: map[string][]Traverser{},
	}
	root, err := x.build(steps, &sliceIter{items: starts})
	if err != nil {
		return nil, err
	}
	x.root = root
	return x, nil
}

// Execution is one running pipeline.
type Execution struct {
	g           graph.Graph
	chain       *traversal.Chain
	root        iterator
	stats       Stats
	sideEffects map[string][]Traverser
	done        bool
	err         error
}

// Next pulls the next result. It returns false once the pipeline is
// exhausted; after an error every call returns the same error.
func (x *Execution) Next(ctx context.Context) (Traverser, bool, error) {
	if x.done {
		return Traverser{}, false, x.err
	}
	if err := ctx.Err(); err != nil {
		x.finish(err)
		return Traverser{}, false, err
	}
	t, ok, err := x.root.next(ctx)
	if err != nil {
		x.finish(err)
		return Traverser{}, false, err
	}
	if !ok {
		x.finish(nil)
		return Traverser{}, false, nil
	}
	return t, true, nil
}

// Results drains the pipeline.
func (x *Execution) Results(ctx context.Context) ([]Traverser, error) {
	var out []Traverser
	for {
		t, ok, err := x.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}

// Stats returns a snapshot of the per-step production counts.
func (x *Execution) Stats() Stats { return maps.Clone(x.stats) }

// SideEffect returns what store(key) steps collected so far.
func (x *Execution) SideEffect(key string) []Traverser {
	return append([]Traverser(nil), x.sideEffects[key]...)
}

// SideEffects returns every side-effect collection by key.
func (x *Execution) SideEffects() map[string][]Traverser {
	out := make(map[string][]Traverser, len(x.sideEffects))
	for k, v := range x.sideEffects {
		out[k] = append([]Traverser(nil), v...)
	}
	return out
}

func (x *Execution) finish(err error) {
	x.done = true
	x.err = err
	if x.chain == nil {
		return
	}
	to := traversal.StateDone
	if err != nil {
		to = traversal.StateFailed
	}
	if terr := x.chain.Transition(to); terr != nil {
		slog.Warn("execution transition failed", "to", to, "error", terr)
	}
	slog.Debug("execution finished", "chain", x.chain.String(), "state", to, "error", err)
}

func (x *Execution) build(steps []*traversal.Step, src iterator) (iterator, error) {
	it := src
	for _, s := range steps {
		next, err := x.stepIterator(s, it)
		if err != nil {
			return nil, err
		}
		it = &stepIter{inner: next, step: s.ID(), labels: s.Labels(), stats: x.stats}
	}
	return it, nil
}

func (x *Execution) stepIterator(s *traversal.Step, up iterator) (iterator, error) {
	switch s.Kind() {
	case traversal.KindStart, traversal.KindIdentity:
		return up, nil
	case traversal.KindV:
		return &flatMapIter{up: up, fn: x.vertices(s)}, nil
	case traversal.KindOut:
		return &flatMapIter{up: up, fn: x.adjacent(s, graph.DirOut)}, nil
	case traversal.KindIn:
		return &flatMapIter{up: up, fn: x.adjacent(s, graph.DirIn)}, nil
	case traversal.KindBoth:
		return &flatMapIter{up: up, fn: x.adjacent(s, graph.DirBoth)}, nil
	case traversal.KindOutE:
		return &flatMapIter{up: up, fn: x.incident(s, graph.DirOut)}, nil
	case traversal.KindInE:
		return &flatMapIter{up: up, fn: x.incident(s, graph.DirIn)}, nil
	case traversal.KindInV:
		return &flatMapIter{up: up, fn: x.endpoint(s, func(e graph.Edge) int64 { return e.InV })}, nil
	case traversal.KindOutV:
		return &flatMapIter{up: up, fn: x.endpoint(s, func(e graph.Edge) int64 { return e.OutV })}, nil
	case traversal.KindValues:
		return &flatMapIter{up: up, fn: x.values(s)}, nil
	case traversal.KindHas:
		return &filterIter{up: up, fn: has(s)}, nil
	case traversal.KindIs:
		return &filterIter{up: up, fn: is(s)}, nil
	case traversal.KindHasTraversal, traversal.KindWhere, traversal.KindAnd:
		return &filterIter{up: up, fn: x.children(s, true)}, nil
	case traversal.KindOr:
		return &filterIter{up: up, fn: x.children(s, false)}, nil
	case traversal.KindStore:
		return &filterIter{up: up, fn: x.store(s)}, nil
	case traversal.KindRange:
		low, high := s.Bounds()
		return &rangeIter{up: up, low: low, high: high}, nil
	case traversal.KindCount:
		return &countIter{up: up}, nil
	case traversal.KindAndMarker, traversal.KindOrMarker:
		return nil, stepError(ErrCodeUnresolvedMarker, s, "conjunction marker reached the engine")
	}
	return nil, stepError(ErrCodeUnsupportedStep, s, "no iterator for %s", s.Kind())
}

func (x *Execution) vertices(s *traversal.Step) func(context.Context, Traverser) ([]Traverser, error) {
	var ids []int64
	if v := s.Value(); v != nil {
		ids, _ = ir.AsInts(v)
	}
	return func(ctx context.Context, t Traverser) ([]Traverser, error) {
		vs, err := x.g.Vertices(ctx, ids...)
		if err != nil {
			return nil, err
		}
		out := make([]Traverser, len(vs))
		for i, v := range vs {
			out[i] = t.split(v)
		}
		return out, nil
	}
}

func (x *Execution) adjacent(s *traversal.Step, dir graph.Direction) func(context.Context, Traverser) ([]Traverser, error) {
	labels := s.Args()
	return func(ctx context.Context, t Traverser) ([]Traverser, error) {
		v, ok := t.Vertex()
		if !ok {
			return nil, stepError(ErrCodeTypeMismatch, s, "%s needs a vertex, got %s", s.Kind(), t)
		}
		edges, err := x.g.Edges(ctx, v.ID, dir, labels...)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return nil, nil
		}
		// edges[:split] are outgoing from v, the rest incoming.
		split := len(edges)
		switch dir {
		case graph.DirIn:
			split = 0
		case graph.DirBoth:
			split = outCount(edges, v.ID)
		}
		others := make([]int64, len(edges))
		for i, e := range edges {
			if i < split {
				others[i] = e.InV
			} else {
				others[i] = e.OutV
			}
		}
		byID, err := x.lookup(ctx, others)
		if err != nil {
			return nil, err
		}
		out := make([]Traverser, 0, len(others))
		for _, id := range others {
			if w, ok := byID[id]; ok {
				out = append(out, t.split(w))
			}
		}
		return out, nil
	}
}

// outCount returns how many leading edges of a DirBoth result are outgoing
// from v. Graph.Edges lists outgoing edges first.
func outCount(edges []graph.Edge, v int64) int {
	n := 0
	for n < len(edges) && edges[n].OutV == v {
		n++
	}
	return n
}

func (x *Execution) incident(s *traversal.Step, dir graph.Direction) func(context.Context, Traverser) ([]Traverser, error) {
	labels := s.Args()
	return func(ctx context.Context, t Traverser) ([]Traverser, error) {
		v, ok := t.Vertex()
		if !ok {
			return nil, stepError(ErrCodeTypeMismatch, s, "%s needs a vertex, got %s", s.Kind(), t)
		}
		edges, err := x.g.Edges(ctx, v.ID, dir, labels...)
		if err != nil {
			return nil, err
		}
		out := make([]Traverser, len(edges))
		for i, e := range edges {
			out[i] = t.split(e)
		}
		return out, nil
	}
}

func (x *Execution) endpoint(s *traversal.Step, end func(graph.Edge) int64) func(context.Context, Traverser) ([]Traverser, error) {
	return func(ctx context.Context, t Traverser) ([]Traverser, error) {
		e, ok := t.Edge()
		if !ok {
			return nil, stepError(ErrCodeTypeMismatch, s, "%s needs an edge, got %s", s.Kind(), t)
		}
		vs, err := x.g.Vertices(ctx, end(e))
		if err != nil || len(vs) == 0 {
			return nil, err
		}
		return []Traverser{t.split(vs[0])}, nil
	}
}

func (x *Execution) lookup(ctx context.Context, ids []int64) (map[int64]graph.Vertex, error) {
	vs, err := x.g.Vertices(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]graph.Vertex, len(vs))
	for _, v := range vs {
		byID[v.ID] = v
	}
	return byID, nil
}

func (x *Execution) values(s *traversal.Step) func(context.Context, Traverser) ([]Traverser, error) {
	keys := s.Args()
	return func(_ context.Context, t Traverser) ([]Traverser, error) {
		el, ok := t.Object().(graph.Element)
		if !ok {
			return nil, stepError(ErrCodeTypeMismatch, s, "values needs an element, got %s", t)
		}
		want := keys
		if len(want) == 0 {
			want = propertyKeys(el)
		}
		var out []Traverser
		for _, k := range want {
			if v, ok := el.Property(k); ok {
				out = append(out, t.split(v))
			}
		}
		return out, nil
	}
}

func propertyKeys(el graph.Element) []string {
	switch e := el.(type) {
	case graph.Vertex:
		return e.Properties.SortedKeys()
	case graph.Edge:
		return e.Properties.SortedKeys()
	}
	return nil
}

func has(s *traversal.Step) func(context.Context, Traverser) (bool, error) {
	args := s.Args()
	want := s.Value()
	return func(_ context.Context, t Traverser) (bool, error) {
		el, ok := t.Object().(graph.Element)
		if !ok || len(args) == 0 {
			return false, nil
		}
		got, ok := el.Property(args[0])
		if !ok {
			return false, nil
		}
		return want == nil || ir.Equal(got, want), nil
	}
}

func is(s *traversal.Step) func(context.Context, Traverser) (bool, error) {
	p := s.Predicate()
	return func(_ context.Context, t Traverser) (bool, error) {
		v, ok := t.Value()
		if !ok || p == nil {
			return false, nil
		}
		return p.Test(v), nil
	}
}

func (x *Execution) store(s *traversal.Step) func(context.Context, Traverser) (bool, error) {
	key := ""
	if args := s.Args(); len(args) > 0 {
		key = args[0]
	}
	return func(_ context.Context, t Traverser) (bool, error) {
		x.sideEffects[key] = append(x.sideEffects[key], t)
		return true, nil
	}
}

// children filters on the child chains of s. With all set every child must
// yield a result for the element (and, where, hasTraversal); otherwise one
// is enough (or). Each child is pulled at most once per element.
func (x *Execution) children(s *traversal.Step, all bool) func(context.Context, Traverser) (bool, error) {
	children := s.Children()
	return func(ctx context.Context, t Traverser) (bool, error) {
		for _, child := range children {
			ok, err := x.yields(ctx, child, t)
			if err != nil {
				return false, err
			}
			if ok != all {
				return ok, nil
			}
		}
		return all, nil
	}
}

func (x *Execution) yields(ctx context.Context, child *traversal.Chain, t Traverser) (bool, error) {
	it, err := x.build(child.Steps(), &sliceIter{items: []Traverser{t}})
	if err != nil {
		return false, err
	}
	_, ok, err := it.next(ctx)
	return ok, err
}
