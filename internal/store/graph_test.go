package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/ir"
)

func seedGraph(t *testing.T, g *Graph) {
	t.Helper()
	ctx := context.Background()
	vertices := []graph.Vertex{
		{ID: 2, Label: "person", Properties: ir.IRObject{"name": ir.IRString("vadas"), "age": ir.IRInt(27)}},
		{ID: 1, Label: "person", Properties: ir.IRObject{"name": ir.IRString("marko")}},
		{ID: 3, Label: "software"},
	}
	for _, v := range vertices {
		require.NoError(t, g.AddVertex(ctx, v))
	}
	edges := []graph.Edge{
		{ID: 9, Label: "created", OutV: 1, InV: 3},
		{ID: 7, Label: "knows", OutV: 1, InV: 2, Properties: ir.IRObject{"since": ir.IRInt(2010)}},
		{ID: 8, Label: "knows", OutV: 2, InV: 1},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(ctx, e))
	}
}

// TestGraphVertices tests vertex reads, ordering and property decoding.
func TestGraphVertices(t *testing.T) {
	g := createTestStore(t).Graph()
	seedGraph(t, g)
	ctx := context.Background()

	all, err := g.Vertices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, ir.IRInt(27), all[1].Properties["age"])
	assert.Equal(t, ir.IRObject{}, all[2].Properties)

	some, err := g.Vertices(ctx, 3, 99, 2)
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, []int64{2, 3}, []int64{some[0].ID, some[1].ID})
}

// TestGraphEdges tests incident edge reads in every direction.
func TestGraphEdges(t *testing.T) {
	g := createTestStore(t).Graph()
	seedGraph(t, g)
	ctx := context.Background()

	ids := func(edges []graph.Edge) []int64 {
		out := []int64{}
		for _, e := range edges {
			out = append(out, e.ID)
		}
		return out
	}

	out, err := g.Edges(ctx, 1, graph.DirOut)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, ids(out))
	assert.Equal(t, ir.IRInt(2010), out[0].Properties["since"])

	knows, err := g.Edges(ctx, 1, graph.DirBoth, "knows")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids(knows))

	in, err := g.Edges(ctx, 3, graph.DirIn, "knows", "created")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids(in))

	none, err := g.Edges(ctx, 3, graph.DirOut)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestGraphConstraints tests that constraint violations map to graph errors.
func TestGraphConstraints(t *testing.T) {
	g := createTestStore(t).Graph()
	seedGraph(t, g)
	ctx := context.Background()

	assert.ErrorIs(t, g.AddVertex(ctx, graph.Vertex{ID: 1, Label: "dup"}), graph.ErrDuplicateID)
	assert.ErrorIs(t, g.AddEdge(ctx, graph.Edge{ID: 7, Label: "dup", OutV: 1, InV: 2}), graph.ErrDuplicateID)
	assert.ErrorIs(t, g.AddEdge(ctx, graph.Edge{ID: 50, Label: "x", OutV: 1, InV: 404}), graph.ErrMissingVertex)
}

// TestGraphMatchesMemGraph tests that the store and the in-memory graph answer alike.
func TestGraphMatchesMemGraph(t *testing.T) {
	sg := createTestStore(t).Graph()
	mg := graph.NewMemGraph()
	seedGraph(t, sg)
	ctx := context.Background()
	vs, err := sg.Vertices(ctx)
	require.NoError(t, err)
	for _, v := range vs {
		require.NoError(t, mg.AddVertex(ctx, v))
	}
	for _, v := range vs {
		es, err := sg.Edges(ctx, v.ID, graph.DirOut)
		require.NoError(t, err)
		for _, e := range es {
			require.NoError(t, mg.AddEdge(ctx, e))
		}
	}

	for _, v := range vs {
		for _, dir := range []graph.Direction{graph.DirOut, graph.DirIn, graph.DirBoth} {
			want, err := mg.Edges(ctx, v.ID, dir)
			require.NoError(t, err)
			got, err := sg.Edges(ctx, v.ID, dir)
			require.NoError(t, err)
			assert.Equal(t, len(want), len(got), "vertex %d %s", v.ID, dir)
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
			}
		}
	}
}
