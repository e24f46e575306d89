package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainText(t *testing.T) {
	src := writeSource(t, testSource)

	out, err := execute(t, "explain", "-t", "sink", src)
	require.NoError(t, err)

	assert.Contains(t, out, "sink [standard]")
	assert.Contains(t, out, "original: V([2]).out().count().is(eq(0))")
	assert.Contains(t, out, "* RangeByIsCountStrategy")
	assert.Contains(t, out, "  ConjunctionStrategy")
	assert.Contains(t, out, "final: V([2]).out().range(0,1).count().is(eq(0))")
}

func TestExplainJSON(t *testing.T) {
	src := writeSource(t, testSource)

	out, err := execute(t, "--format", "json", "explain", "-t", "sink", "--engine", "computer", src)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Name     string `json:"name"`
			Engine   string `json:"engine"`
			Original string `json:"original"`
			Final    string `json:"final"`
			Steps    []struct {
				Strategy string `json:"strategy"`
				Phase    string `json:"phase"`
				Changed  bool   `json:"changed"`
			} `json:"steps"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sink", resp.Data.Name)
	assert.Equal(t, "computer", resp.Data.Engine)
	assert.Equal(t, "V([2]).out().count().is(eq(0))", resp.Data.Original)
	assert.Equal(t, "V([2]).out().range(0,1).count().is(eq(0))", resp.Data.Final)
	require.Len(t, resp.Data.Steps, 5)
	assert.Equal(t, "decoration", resp.Data.Steps[0].Phase)
	assert.Equal(t, "verification", resp.Data.Steps[4].Phase)
	for _, step := range resp.Data.Steps {
		assert.Equal(t, step.Strategy == "RangeByIsCountStrategy", step.Changed, step.Strategy)
	}
}

func TestExplainRequiresTraversal(t *testing.T) {
	src := writeSource(t, testSource)

	out, err := execute(t, "explain", src)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "2 traversals declared")
}

func TestExplainSingleTraversal(t *testing.T) {
	src := writeSource(t, `traversal: only: steps: [{step: "V"}, {step: "identity"}, {step: "out"}]`)

	out, err := execute(t, "explain", src)
	require.NoError(t, err)
	assert.Contains(t, out, "* IdentityRemovalStrategy")
	assert.Contains(t, out, "final: V().out()")
}
