package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tr "github.com/roach88/traverse/internal/traversal"
)

// TestLabeledEndAppendsIdentity tests label materialization on a labeled terminal step.
func TestLabeledEndAppendsIdentity(t *testing.T) {
	c := tr.New().Out().As("L").MustBuild()
	labeled := c.Last()

	mustApply(t, LabeledEnd, c)

	require.Equal(t, 2, c.Len())
	last := c.Last()
	assert.NotSame(t, labeled, last)
	assert.Equal(t, tr.KindIdentity, last.Kind())
	assert.Equal(t, []string{"L"}, last.Labels())
	assert.True(t, last.Materialized())
	assert.Equal(t, []string{"L"}, labeled.Labels())
}

// TestLabeledEndIdempotent tests that a second run adds nothing.
func TestLabeledEndIdempotent(t *testing.T) {
	c := tr.New().Out().As("a", "b").MustBuild()
	mustApply(t, LabeledEnd, c)
	mustApply(t, LabeledEnd, c)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "out().as(a).as(b).identity().as(a).as(b)", c.String())
}

// TestLabeledEndNoop tests that unlabeled and empty chains are unchanged.
func TestLabeledEndNoop(t *testing.T) {
	c := tr.New().Out().As("x").In().MustBuild()
	before := stepIDs(c)
	mustApply(t, LabeledEnd, c)
	assert.Equal(t, before, stepIDs(c))

	empty := tr.NewChain()
	mustApply(t, LabeledEnd, empty)
	assert.Equal(t, 0, empty.Len())
}

// TestLabeledEndRootOnly tests that nested chains are not materialized.
func TestLabeledEndRootOnly(t *testing.T) {
	c := tr.New().Out().Where(tr.Anon().In().As("n")).MustBuild()
	mustApply(t, LabeledEnd, c)
	assert.Equal(t, "out().where(in().as(n))", c.String())
}
