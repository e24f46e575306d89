package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tr "github.com/roach88/traverse/internal/traversal"
)

// TestIdentityRemoval tests which identity steps are dropped.
func TestIdentityRemoval(t *testing.T) {
	tests := []struct {
		name  string
		chain *tr.Chain
		want  string
	}{
		{"unlabeled", tr.New().Out().Identity().Count().MustBuild(), "out().count()"},
		{"labeled kept", tr.New().Out().Identity().As("x").Count().MustBuild(), "out().identity().as(x).count()"},
		{"sole step kept", tr.New().Identity().MustBuild(), "identity()"},
		{"runs of identities", tr.New().Identity().Identity().Identity().MustBuild(), "identity()"},
		{"nested", tr.New().Out().Where(tr.Anon().Identity().In()).MustBuild(), "out().where(in())"},
		{"nested sole step", tr.New().Out().Where(tr.Anon().Identity()).MustBuild(), "out().where(identity())"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustApply(t, IdentityRemoval, tt.chain)
			assert.Equal(t, tt.want, tt.chain.String())
		})
	}
}

// TestIdentityRemovalKeepsMaterialized tests that a materialized identity survives.
func TestIdentityRemovalKeepsMaterialized(t *testing.T) {
	c := tr.New().Out().MustBuild()
	assert.NoError(t, c.Add(tr.NewMaterializedIdentityStep()))
	mustApply(t, IdentityRemoval, c)
	assert.Equal(t, 2, c.Len())
}
