package computer

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/engine"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/testutil"
	tr "github.com/roach88/traverse/internal/traversal"
)

func compileFor(t *testing.T, b func() *tr.Builder, kind tr.EngineKind) *tr.Chain {
	t.Helper()
	c := b().MustBuild()
	require.NoError(t, strategy.DefaultRegistry().Compile(context.Background(), c, kind))
	return c
}

func renderAll(ts []engine.Traverser) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func runStandard(t *testing.T, g graph.Graph, c *tr.Chain) []engine.Traverser {
	t.Helper()
	x, err := engine.NewStandard(g).Execute(c)
	require.NoError(t, err)
	out, err := x.Results(context.Background())
	require.NoError(t, err)
	return out
}

func runComputer(t *testing.T, g graph.Graph, c *tr.Chain, workers int) Result {
	t.Helper()
	prog, err := NewTraversalProgram(c)
	require.NoError(t, err)
	res, err := NewRunner(WithWorkers(workers)).Run(context.Background(), "job", TraversalProgramName, prog, g)
	require.NoError(t, err)
	return res
}

// TestTraversalMatchesStandard tests that both engines agree on results.
func TestTraversalMatchesStandard(t *testing.T) {
	tests := []struct {
		name    string
		chain   func() *tr.Builder
		want    []string
		ordered bool
	}{
		{"count", func() *tr.Builder { return tr.New().V().Count() }, []string{"6"}, true},
		{"count is zero", func() *tr.Builder { return tr.New().V().Out().Count().Is(tr.Eq(0)) }, []string{}, true},
		{"count created", func() *tr.Builder { return tr.New().V().Out("created").Count() }, []string{"4"}, true},
		{"two hops", func() *tr.Builder { return tr.New().V().Both().Both().Count() }, []string{"30"}, true},
		{"edge hop", func() *tr.Builder { return tr.New().V().OutE("created").InV().Count() }, []string{"4"}, true},
		{
			"nested bound",
			func() *tr.Builder { return tr.New().V().Where(tr.Anon().Out().Count().Is(tr.Gt(1))).Values("name") },
			[]string{"josh", "marko"},
			false,
		},
		{
			"sinks",
			func() *tr.Builder { return tr.New().V().HasTraversal(tr.Anon().Out().Count().Is(tr.Eq(0))).Count() },
			[]string{"3"},
			true,
		},
		{
			"selected start",
			func() *tr.Builder { return tr.New().V(1).Out("knows").Values("age") },
			[]string{"27", "32"},
			false,
		},
		{"root range", func() *tr.Builder { return tr.New().V().Range(0, 2) }, []string{"v[1]", "v[2]"}, true},
		{
			"conjunction",
			func() *tr.Builder { return tr.New().V().Has("age", 29).And().Out("knows").Count() },
			[]string{"1"},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testutil.ModernGraph(t)
			std := renderAll(runStandard(t, g, compileFor(t, tt.chain, tr.EngineStandard)))

			for _, workers := range []int{1, 3} {
				res := runComputer(t, g, compileFor(t, tt.chain, tr.EngineComputer), workers)
				got := renderAll(TraversalResults(res))
				if !tt.ordered {
					slices.Sort(got)
					slices.Sort(std)
				}
				assert.Equal(t, tt.want, got, "computer workers=%d", workers)
				assert.Equal(t, std, got, "standard vs computer workers=%d", workers)
			}
		})
	}
}

// TestTraversalProgramSplit tests where the root chain is split.
func TestTraversalProgramSplit(t *testing.T) {
	build := func() *tr.Builder { return tr.New().V().Out().Count().Is(tr.Eq(0)) }

	c := compileFor(t, build, tr.EngineComputer)
	assert.Equal(t, "V().out().range(0,1).count().is(eq(0))", c.String())
	p, err := NewTraversalProgram(c)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Barrier())

	p, err = NewTraversalProgram(compileFor(t, func() *tr.Builder { return tr.New().V().Out() }, tr.EngineComputer))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Barrier())
}

// TestTraversalProgramRejects tests chains the program cannot run.
func TestTraversalProgramRejects(t *testing.T) {
	_, err := NewTraversalProgram(tr.New().V().MustBuild())
	assert.ErrorContains(t, err, "compiled chain")

	_, err = NewTraversalProgram(compileFor(t, func() *tr.Builder { return tr.New().V() }, tr.EngineStandard))
	assert.ErrorContains(t, err, "computer engine")

	_, err = NewTraversalProgram(compileFor(t, func() *tr.Builder { return tr.New().Start().Out() }, tr.EngineComputer))
	assert.ErrorContains(t, err, "start with V()")
}

// TestTraversalLabelsAndSideEffects tests that paths and stores survive messaging.
func TestTraversalLabelsAndSideEffects(t *testing.T) {
	c := compileFor(t, func() *tr.Builder {
		return tr.New().V(1).As("src").Out("knows").Store("friends").As("dst")
	}, tr.EngineComputer)
	res := runComputer(t, testutil.ModernGraph(t), c, 2)

	got := TraversalResults(res)
	require.Len(t, got, 2)
	for _, tv := range got {
		src, ok := tv.Labeled("src")
		require.True(t, ok)
		assert.Equal(t, int64(1), src.(graph.Vertex).ID)
		dst, ok := tv.Labeled("dst")
		require.True(t, ok)
		assert.Equal(t, tv.Object(), dst)
	}
	assert.ElementsMatch(t, []string{"v[2]", "v[4]"}, renderAll(TraversalSideEffect(res, "friends")))
}

// TestSubmitTraversal tests running a traversal from configuration.
func TestSubmitTraversal(t *testing.T) {
	cfg := config.New(
		config.KeyEngine, "computer",
		config.KeyProgram, TraversalProgramName,
		config.KeySource, `{steps: [
			{step: "V"},
			{step: "has", args: ["label"], value: "person"},
			{step: "out", args: ["created"]},
			{step: "count"},
		]}`,
	)
	res, err := New(WithJobIDs(testutil.NewFixedJobIDs(""))).
		Submit(context.Background(), cfg, testutil.ModernGraph(t)).
		Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-job", res.JobID)

	got := TraversalResults(res)
	require.Len(t, got, 1)
	v, _ := got[0].Value()
	assert.Equal(t, ir.IRInt(4), v)

	_, err = New().Submit(context.Background(),
		config.New(config.KeyProgram, TraversalProgramName), testutil.ModernGraph(t)).Wait(context.Background())
	assert.ErrorContains(t, err, config.KeySource)
}
