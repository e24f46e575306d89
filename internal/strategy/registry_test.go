package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/traverse/internal/metrics"
	tr "github.com/roach88/traverse/internal/traversal"
)

// TestOrderPhasesFirst tests that phase order dominates registration order.
func TestOrderPhasesFirst(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "verify", phase: PhaseVerification},
		&fakeStrategy{name: "final", phase: PhaseFinalization},
		&fakeStrategy{name: "opt", phase: PhaseOptimization},
		&fakeStrategy{name: "decorate", phase: PhaseDecoration},
	))

	order, err := r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"decorate", "opt", "final", "verify"}, names(order))
}

// TestOrderTieBreak tests that unconstrained strategies keep registration order.
func TestOrderTieBreak(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "c", phase: PhaseOptimization},
		&fakeStrategy{name: "a", phase: PhaseOptimization},
		&fakeStrategy{name: "b", phase: PhaseOptimization},
	))

	order, err := r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(order))
}

// TestOrderRelations tests prior and posterior constraints within a phase.
func TestOrderRelations(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "a", phase: PhaseOptimization, prior: []string{"c"}},
		&fakeStrategy{name: "b", phase: PhaseOptimization},
		&fakeStrategy{name: "c", phase: PhaseOptimization},
		&fakeStrategy{name: "d", phase: PhaseOptimization, posterior: []string{"b"}},
	))

	order, err := r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d", "b"}, names(order))
}

// TestOrderDeterministic tests that recomputing the order yields the same sequence.
func TestOrderDeterministic(t *testing.T) {
	build := func() []string {
		r := NewRegistry()
		require.NoError(t, r.Register(
			&fakeStrategy{name: "x", phase: PhaseDecoration, posterior: []string{"z"}},
			&fakeStrategy{name: "y", phase: PhaseDecoration},
			&fakeStrategy{name: "z", phase: PhaseDecoration},
			&fakeStrategy{name: "w", phase: PhaseDecoration, prior: []string{"y"}},
		))
		order, err := r.Order()
		require.NoError(t, err)
		return names(order)
	}
	first := build()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, build())
	}
}

// TestOrderCycle tests that a cycle is a configuration error naming its path.
func TestOrderCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "a", phase: PhaseOptimization, prior: []string{"b"}},
		&fakeStrategy{name: "b", phase: PhaseOptimization, prior: []string{"c"}},
		&fakeStrategy{name: "c", phase: PhaseOptimization, prior: []string{"a"}},
		&fakeStrategy{name: "ok", phase: PhaseDecoration},
	))

	_, err := r.Order()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	var cfg *ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, PhaseOptimization, cfg.Phase)
	assert.Equal(t, []string{"a", "c", "b", "a"}, cfg.Path)

	_, again := r.Order()
	assert.Equal(t, err, again, "configuration errors are memoized")
}

// TestOrderSelfCycle tests a strategy that names itself.
func TestOrderSelfCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeStrategy{name: "self", phase: PhaseFinalization, posterior: []string{"self"}}))

	_, err := r.Order()
	var cfg *ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, ErrCodeOrderingCycle, cfg.Code)
	assert.Equal(t, []string{"self", "self"}, cfg.Path)
}

// TestOrderCrossPhase tests that relations may not cross phases.
func TestOrderCrossPhase(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "early", phase: PhaseDecoration},
		&fakeStrategy{name: "late", phase: PhaseVerification, posterior: []string{"early"}},
	))

	_, err := r.Order()
	assert.Equal(t, ErrCodeCrossPhase, Code(err))
	assert.True(t, IsConfigError(err))
	assert.False(t, IsCycleError(err))
}

// TestOrderIgnoresUnregistered tests that relations to unknown strategies are dropped.
func TestOrderIgnoresUnregistered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "a", phase: PhaseOptimization, prior: []string{"missing"}},
		&fakeStrategy{name: "b", phase: PhaseOptimization, posterior: []string{"gone"}},
	))

	order, err := r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(order))
}

// TestRegisterIdempotent tests duplicate registration and memo invalidation.
func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &fakeStrategy{name: "a", phase: PhaseOptimization}
	require.NoError(t, r.Register(a, a))
	require.NoError(t, r.Register(&fakeStrategy{name: "a", phase: PhaseDecoration}))
	assert.Len(t, r.Strategies(), 1)

	order, err := r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(order))

	require.NoError(t, r.Register(&fakeStrategy{name: "first", phase: PhaseDecoration}))
	order, err = r.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "a"}, names(order))
}

// TestRegisterInvalid tests rejected registrations.
func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, ErrCodeInvalidStrategy, Code(r.Register(nil)))
	assert.Equal(t, ErrCodeInvalidStrategy, Code(r.Register(&fakeStrategy{phase: PhaseDecoration})))
	assert.Equal(t, ErrCodeInvalidStrategy, Code(r.Register(&fakeStrategy{name: "x"})))
	assert.Empty(t, r.Strategies())
}

// TestCompileAppliesInOrderOnce tests that each strategy runs exactly once, in order.
func TestCompileAppliesInOrderOnce(t *testing.T) {
	var calls []string
	record := func(name string) func(*tr.Chain) error {
		return func(*tr.Chain) error {
			calls = append(calls, name)
			return nil
		}
	}
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "v", phase: PhaseVerification, apply: record("v")},
		&fakeStrategy{name: "o2", phase: PhaseOptimization, apply: record("o2"), prior: []string{"o1"}},
		&fakeStrategy{name: "o1", phase: PhaseOptimization, apply: record("o1")},
		&fakeStrategy{name: "d", phase: PhaseDecoration, apply: record("d")},
	))

	c := tr.New().Out().MustBuild()
	require.NoError(t, r.Compile(context.Background(), c, tr.EngineStandard))
	assert.Equal(t, []string{"d", "o1", "o2", "v"}, calls)
	assert.Equal(t, tr.StateCompiled, c.State())
	assert.Equal(t, tr.EngineStandard, c.Engine())
	assert.True(t, c.Frozen())
}

// TestCompileFailFast tests that the first failing strategy aborts without rollback.
func TestCompileFailFast(t *testing.T) {
	boom := errors.New("boom")
	ranAfter := false
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "grow", phase: PhaseDecoration, apply: func(c *tr.Chain) error {
			return c.Add(tr.NewStep(tr.KindIn))
		}},
		&fakeStrategy{name: "fail", phase: PhaseOptimization, apply: func(*tr.Chain) error { return boom }},
		&fakeStrategy{name: "after", phase: PhaseFinalization, apply: func(*tr.Chain) error {
			ranAfter = true
			return nil
		}},
	))

	c := tr.New().Out().MustBuild()
	err := r.Compile(context.Background(), c, tr.EngineStandard)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeStrategyFailed, ce.Code)
	assert.Equal(t, "fail", ce.Strategy)
	assert.Equal(t, PhaseOptimization, ce.Phase)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ranAfter)
	assert.Equal(t, "out().in()", c.String(), "earlier rewrites are not rolled back")
	assert.Equal(t, tr.StateFailed, c.State())
}

// TestCompileCycleBeforeMutation tests that ordering errors leave the chain untouched.
func TestCompileCycleBeforeMutation(t *testing.T) {
	touched := false
	touch := func(*tr.Chain) error {
		touched = true
		return nil
	}
	r := NewRegistry()
	require.NoError(t, r.Register(
		&fakeStrategy{name: "d", phase: PhaseDecoration, apply: touch},
		&fakeStrategy{name: "a", phase: PhaseVerification, prior: []string{"b"}},
		&fakeStrategy{name: "b", phase: PhaseVerification, prior: []string{"a"}},
	))

	c := tr.New().Out().MustBuild()
	err := r.Compile(context.Background(), c, tr.EngineComputer)
	assert.True(t, IsCycleError(err))
	assert.False(t, touched)
	assert.Equal(t, tr.StateBuilding, c.State())
	assert.Equal(t, tr.EngineUnset, c.Engine())
}

// TestCompileRejects tests misuse of Compile.
func TestCompileRejects(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()

	c := tr.New().Out().MustBuild()
	require.NoError(t, r.Compile(ctx, c, tr.EngineStandard))
	assert.Equal(t, ErrCodeAlreadyCompiled, Code(r.Compile(ctx, c, tr.EngineStandard)))

	parent := tr.New().Where(tr.Anon().Out()).MustBuild()
	assert.Equal(t, ErrCodeNotRoot, Code(r.Compile(ctx, parent.First().Child(0), tr.EngineStandard)))

	assert.Equal(t, ErrCodeNotRoot, Code(r.Compile(ctx, nil, tr.EngineStandard)))

	bound := tr.New().Out().MustBuild()
	require.NoError(t, bound.BindEngine(tr.EngineComputer))
	assert.Equal(t, ErrCodeInvalidEngine, Code(r.Compile(ctx, bound, tr.EngineStandard)))

	assert.Equal(t, ErrCodeInvalidEngine, Code(r.Compile(ctx, tr.New().Out().MustBuild(), tr.EngineUnset)))
}

// TestCompileCancelled tests that a cancelled context stops compilation between strategies.
func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := tr.New().Out().And().In().MustBuild()
	err := DefaultRegistry().Compile(ctx, c, tr.EngineStandard)
	assert.Equal(t, ErrCodeCancelled, Code(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, tr.StateFailed, c.State())
}

// TestCompileConcurrent tests that one registry serves concurrent compilations.
func TestCompileConcurrent(t *testing.T) {
	r := DefaultRegistry()
	const workers = 16

	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := tr.New().Out().And().In().Count().Is(tr.Lt(3)).MustBuild()
			if err := r.Compile(context.Background(), c, tr.EngineStandard); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = c.String()
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, "and(out(),in().range(0,3).count().is(lt(3)))", got)
	}
}

// TestCompileMetrics tests that compilations and strategy timings are recorded.
func TestCompileMetrics(t *testing.T) {
	m := metrics.New(nil)
	r := DefaultRegistry(WithMetrics(m))

	require.NoError(t, r.Compile(context.Background(), tr.New().Out().MustBuild(), tr.EngineStandard))
	_ = r.Compile(context.Background(), tr.New().Out().MustBuild(), tr.EngineUnset)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("standard", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("unset", metrics.OutcomeFailed)))
	assert.Equal(t, len(Defaults()), testutil.CollectAndCount(m.StrategyDurationSeconds))
}
