package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/traverse/internal/metrics"
	"github.com/roach88/traverse/internal/traversal"
)

// Registry holds a strategy set and its derived application order.
//
// The order is computed on first use and memoized; Register invalidates it.
// Once the set is stable the registry is safe to share across concurrent
// compilations, because strategies are stateless and each compilation owns
// its chain.
//
// INVARIANTS:
//   - strategy names are unique; registration order never changes
//   - the derived order is a pure function of the registered set
type Registry struct {
	mu         sync.Mutex
	strategies []Strategy
	names      map[string]bool

	order    []Strategy
	orderErr error
	derived  bool

	metrics *metrics.Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics records compilation counts and strategy timings in m.
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{names: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds strategies in order. A strategy whose name is already
// registered is skipped, so registering the same set twice is a no-op.
func (r *Registry) Register(strategies ...Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range strategies {
		if s == nil {
			return &ConfigError{Code: ErrCodeInvalidStrategy, Message: "nil strategy"}
		}
		if s.Name() == "" {
			return &ConfigError{Code: ErrCodeInvalidStrategy, Message: fmt.Sprintf("strategy %T has no name", s)}
		}
		if !s.Phase().Valid() {
			return &ConfigError{
				Code:    ErrCodeInvalidStrategy,
				Message: fmt.Sprintf("strategy %s has undefined phase %s", s.Name(), s.Phase()),
			}
		}
		if r.names[s.Name()] {
			slog.Debug("strategy already registered", "strategy", s.Name())
			continue
		}
		r.names[s.Name()] = true
		r.strategies = append(r.strategies, s)
		r.derived = false
	}
	return nil
}

// Strategies returns the registered strategies in registration order.
func (r *Registry) Strategies() []Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Order returns the application order, deriving it on first use.
// A configuration error is memoized along with the order, so a broken set
// fails every compilation the same way.
func (r *Registry) Order() ([]Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.derived {
		r.order, r.orderErr = deriveOrder(r.strategies)
		r.derived = true
		if r.orderErr == nil {
			slog.Debug("strategy order derived", "strategies", len(r.order))
		}
	}
	if r.orderErr != nil {
		return nil, r.orderErr
	}
	out := make([]Strategy, len(r.order))
	copy(out, r.order)
	return out, nil
}

// Compile binds the chain to engine and applies every strategy exactly
// once, in order. The chain must be a root chain in the Building state.
//
// Ordering errors are returned before the chain is touched. A failing
// strategy aborts compilation immediately; earlier rewrites are not rolled
// back and the chain is moved to the Failed state. On success the chain is
// Compiled and frozen.
func (r *Registry) Compile(ctx context.Context, chain *traversal.Chain, engine traversal.EngineKind) error {
	return r.compile(ctx, chain, engine, nil)
}

// compile is Compile with an optional observer called after each strategy
// applies successfully.
func (r *Registry) compile(ctx context.Context, chain *traversal.Chain, engine traversal.EngineKind,
	observe func(Strategy, *traversal.Chain)) (err error) {
	defer func() { r.metrics.RecordCompilation(engine.String(), err) }()

	if chain == nil {
		return &CompileError{Code: ErrCodeNotRoot, Err: traversal.ErrNilStep}
	}
	if !chain.IsRoot() {
		return &CompileError{Code: ErrCodeNotRoot, Err: fmt.Errorf("chain is owned by step %d", chain.Owner().ID())}
	}
	if chain.Frozen() {
		return &CompileError{Code: ErrCodeAlreadyCompiled, Err: fmt.Errorf("chain is %s", chain.State())}
	}

	order, err := r.Order()
	if err != nil {
		return err
	}
	if err := chain.BindEngine(engine); err != nil {
		return &ConfigError{Code: ErrCodeInvalidEngine, Message: err.Error()}
	}

	for _, s := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = chain.Transition(traversal.StateFailed)
			return &CompileError{Code: ErrCodeCancelled, Strategy: s.Name(), Phase: s.Phase(), Err: ctxErr}
		}

		start := time.Now()
		applyErr := s.Apply(chain)
		r.metrics.ObserveStrategy(s.Name(), s.Phase().String(), time.Since(start))

		if applyErr != nil {
			slog.Error("strategy failed",
				"strategy", s.Name(),
				"phase", s.Phase().String(),
				"error", applyErr,
			)
			_ = chain.Transition(traversal.StateFailed)
			return &CompileError{Code: ErrCodeStrategyFailed, Strategy: s.Name(), Phase: s.Phase(), Err: applyErr}
		}
		if observe != nil {
			observe(s, chain)
		}
	}

	if err := chain.Transition(traversal.StateCompiled); err != nil {
		return &CompileError{Code: ErrCodeAlreadyCompiled, Err: err}
	}
	slog.Debug("chain compiled", "engine", engine.String(), "chain", chain.String())
	return nil
}
