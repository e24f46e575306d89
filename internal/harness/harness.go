package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/traverse/internal/computer"
	"github.com/roach88/traverse/internal/engine"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/source"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/testutil"
	"github.com/roach88/traverse/internal/traversal"
)

// Harness runs scenarios against a strategy registry.
type Harness struct {
	registry *strategy.Registry
}

// Option configures a Harness.
type Option func(*Harness)

// WithRegistry compiles scenario traversals with r instead of the default
// strategies.
func WithRegistry(r *strategy.Registry) Option {
	return func(h *Harness) {
		h.registry = r
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{registry: strategy.DefaultRegistry()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with the default strategies.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a scenario and returns the result.
//
// Each engine gets a fresh chain built from the scenario source and a
// fresh copy of the graph, so runs never observe each other.
//
// Execution flow:
//  1. Load the traversal from the scenario source
//  2. For each engine: build, compile, execute, record the plan
//  3. Evaluate assertions against the recorded plans
//
// Errors loading inputs, compiling, or executing are returned as errors;
// failed assertions are reported in the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	t, err := findTraversal(scenario.Source, scenario.Traversal)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, kind := range scenario.engines() {
		g, err := loadGraph(ctx, scenario.Graph)
		if err != nil {
			return nil, fmt.Errorf("load graph: %w", err)
		}
		chain, err := t.Build()
		if err != nil {
			return nil, err
		}
		if err := h.registry.Compile(ctx, chain, kind); err != nil {
			return nil, fmt.Errorf("compile for %s: %w", kind, err)
		}

		plan := &Plan{Engine: kind, Compiled: chain.String(), chain: chain}
		switch kind {
		case traversal.EngineComputer:
			err = runComputer(ctx, scenario, chain, g, plan)
		default:
			err = runStandard(ctx, chain, g, plan)
		}
		if err != nil {
			return nil, fmt.Errorf("execute on %s: %w", kind, err)
		}
		slog.Debug("scenario plan",
			"scenario", scenario.Name,
			"engine", kind.String(),
			"compiled", plan.Compiled,
			"results", len(plan.Results),
		)
		result.AddPlan(plan)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func runStandard(ctx context.Context, chain *traversal.Chain, g graph.Graph, plan *Plan) error {
	x, err := engine.NewStandard(g).Execute(chain)
	if err != nil {
		return err
	}
	results, err := x.Results(ctx)
	if err != nil {
		return err
	}
	plan.Results = render(results)
	for key, ts := range x.SideEffects() {
		plan.addSideEffect(key, render(ts))
	}
	return nil
}

func runComputer(ctx context.Context, scenario *Scenario, chain *traversal.Chain, g graph.Graph, plan *Plan) error {
	prog, err := computer.NewTraversalProgram(chain)
	if err != nil {
		return err
	}
	workers := scenario.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	jobID := testutil.NewFixedJobIDs(scenario.Name).Generate()
	res, err := computer.NewRunner(computer.WithWorkers(workers)).
		Run(ctx, jobID, computer.TraversalProgramName, prog, g)
	if err != nil {
		return err
	}
	plan.Results = render(computer.TraversalResults(res))
	plan.Supersteps = res.Supersteps
	for _, key := range storeKeys(chain) {
		if ts := computer.TraversalSideEffect(res, key); len(ts) > 0 {
			plan.addSideEffect(key, render(ts))
		}
	}
	return nil
}

func (p *Plan) addSideEffect(key string, values []string) {
	if p.SideEffects == nil {
		p.SideEffects = make(map[string][]string)
	}
	p.SideEffects[key] = values
}

// storeKeys returns the side-effect keys of every store step in the chain tree.
func storeKeys(chain *traversal.Chain) []string {
	var keys []string
	chain.Walk(func(s *traversal.Step) bool {
		if s.Kind() == traversal.KindStore {
			for _, k := range s.Args() {
				if !slices.Contains(keys, k) {
					keys = append(keys, k)
				}
			}
		}
		return true
	})
	return keys
}

func findTraversal(path, name string) (*source.Traversal, error) {
	traversals, err := source.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	for _, t := range traversals {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("traversal %q not found in %s", name, path)
}

func loadGraph(ctx context.Context, path string) (*graph.MemGraph, error) {
	if path == "" {
		return testutil.NewModernGraph(ctx)
	}
	return graph.LoadFixtureFile(ctx, path)
}

func render(ts []engine.Traverser) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
