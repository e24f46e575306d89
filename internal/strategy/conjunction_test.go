package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tr "github.com/roach88/traverse/internal/traversal"
)

// TestConjunctionFolding tests marker folding over representative chains.
func TestConjunctionFolding(t *testing.T) {
	tests := []struct {
		name  string
		chain *tr.Chain
		want  string
	}{
		{"and", tr.New().Out("a").And().In("b").MustBuild(), "and(out(a),in(b))"},
		{"or", tr.New().Out().Or().In().MustBuild(), "or(out(),in())"},
		{"multi-step operands", tr.New().Out().Has("k", 1).And().In().Count().MustBuild(), "and(out().has(k,1),in().count())"},
		{"and binds before or", tr.New().Out().And().In().Or().Both().MustBuild(), "or(and(out(),in()),both())"},
		{"or then and", tr.New().Out().Or().In().And().Both().MustBuild(), "or(out(),and(in(),both()))"},
		{"start step bounds left operand", tr.New().V().And().Out().MustBuild(), "V().and(__,out())"},
		{"empty left operand", tr.New().And().Out().MustBuild(), "and(__,out())"},
		{"empty right operand", tr.New().Out().Or().MustBuild(), "or(out(),__)"},
		{"both operands empty", tr.New().And().MustBuild(), "and(__,__)"},
		{"adjacent markers", tr.New().Out().And().Or().In().MustBuild(), "or(and(out(),__),in())"},
		{"chained ands", tr.New().Out().And().In().And().Both().MustBuild(), "and(and(out(),in()),both())"},
		{"nested", tr.New().Out().Where(tr.Anon().In().Or().Both()).MustBuild(), "out().where(or(in(),both()))"},
		{"no markers", tr.New().Out().Count().MustBuild(), "out().count()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustApply(t, Conjunction, tt.chain)
			assert.Equal(t, tt.want, tt.chain.String())
			assert.Zero(t, countKind(tt.chain, tr.KindAndMarker))
			assert.Zero(t, countKind(tt.chain, tr.KindOrMarker))
		})
	}
}

// TestConjunctionOperandOwnership tests that captured steps move into operand chains.
func TestConjunctionOperandOwnership(t *testing.T) {
	c := tr.New().Out().And().In().MustBuild()
	out, in := c.At(0), c.At(2)

	mustApply(t, Conjunction, c)

	require.Equal(t, 1, c.Len())
	and := c.First()
	assert.Equal(t, tr.KindAnd, and.Kind())
	require.Len(t, and.Children(), 2)
	left, right := and.Child(0), and.Child(1)
	assert.Same(t, left, out.Owner())
	assert.Same(t, right, in.Owner())
	assert.Same(t, and, left.Owner())
	assert.Same(t, c, right.Root())
}

// TestConjunctionNoMarkersRemainInTree tests the post-condition over nested chains.
func TestConjunctionNoMarkersRemainInTree(t *testing.T) {
	c := tr.New().
		Out().And().In().
		HasTraversal(tr.Anon().Out().Or().In().Where(tr.Anon().Both().And().Out())).
		Or().Both().
		MustBuild()

	mustApply(t, Conjunction, c)

	for _, chain := range c.Chains() {
		assert.Empty(t, chain.StepsOfCategory(tr.CategoryMarker), "markers left in %s", chain)
	}
	assert.Equal(t, "or(and(out(),in().hasTraversal(or(out(),in().where(and(both(),out()))))),both())", c.String())
}

// TestConjunctionIdempotent tests that re-running on a folded chain is a no-op.
func TestConjunctionIdempotent(t *testing.T) {
	c := tr.New().Out().And().In().Or().Both().MustBuild()
	mustApply(t, Conjunction, c)

	before := stepIDs(c)
	rendered := c.String()
	mustApply(t, Conjunction, c)

	assert.Equal(t, before, stepIDs(c))
	assert.Equal(t, rendered, c.String())
}

// TestConjunctionKeepsMarkerLabels tests that a labeled marker passes its labels on.
func TestConjunctionKeepsMarkerLabels(t *testing.T) {
	c := tr.New().Out().And().As("both").In().MustBuild()
	mustApply(t, Conjunction, c)
	assert.Equal(t, []string{"both"}, c.First().Labels())
}
