package graph

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemGraph is an in-memory Graph. Safe for concurrent use.
type MemGraph struct {
	mu       sync.RWMutex
	vertices map[int64]Vertex
	edges    map[int64]Edge
	outE     map[int64][]int64
	inE      map[int64][]int64
}

// NewMemGraph creates an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		vertices: make(map[int64]Vertex),
		edges:    make(map[int64]Edge),
		outE:     make(map[int64][]int64),
		inE:      make(map[int64][]int64),
	}
}

// AddVertex inserts a vertex.
func (g *MemGraph) AddVertex(_ context.Context, v Vertex) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.vertices[v.ID]; ok {
		return fmt.Errorf("%w: vertex %d", ErrDuplicateID, v.ID)
	}
	g.vertices[v.ID] = v
	return nil
}

// AddEdge inserts an edge between two existing vertices.
func (g *MemGraph) AddEdge(_ context.Context, e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[e.ID]; ok {
		return fmt.Errorf("%w: edge %d", ErrDuplicateID, e.ID)
	}
	for _, end := range []int64{e.OutV, e.InV} {
		if _, ok := g.vertices[end]; !ok {
			return fmt.Errorf("%w: edge %d references vertex %d", ErrMissingVertex, e.ID, end)
		}
	}
	g.edges[e.ID] = e
	g.outE[e.OutV] = insertSorted(g.outE[e.OutV], e.ID)
	g.inE[e.InV] = insertSorted(g.inE[e.InV], e.ID)
	return nil
}

func insertSorted(ids []int64, id int64) []int64 {
	i, _ := slices.BinarySearch(ids, id)
	return slices.Insert(ids, i, id)
}

// Vertices implements Graph.
func (g *MemGraph) Vertices(ctx context.Context, ids ...int64) ([]Vertex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(ids) == 0 {
		out := make([]Vertex, 0, len(g.vertices))
		for _, v := range g.vertices {
			out = append(out, v)
		}
		slices.SortFunc(out, func(a, b Vertex) int { return cmpID(a.ID, b.ID) })
		return out, nil
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	out := make([]Vertex, 0, len(sorted))
	for _, id := range sorted {
		if v, ok := g.vertices[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Edges implements Graph.
func (g *MemGraph) Edges(ctx context.Context, vertex int64, dir Direction, labels ...string) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Edge
	collect := func(ids []int64) {
		for _, id := range ids {
			e := g.edges[id]
			if len(labels) == 0 || slices.Contains(labels, e.Label) {
				out = append(out, e)
			}
		}
	}
	switch dir {
	case DirOut:
		collect(g.outE[vertex])
	case DirIn:
		collect(g.inE[vertex])
	case DirBoth:
		collect(g.outE[vertex])
		collect(g.inE[vertex])
	default:
		return nil, fmt.Errorf("invalid direction %s", dir)
	}
	return out, nil
}

// Len returns the vertex and edge counts.
func (g *MemGraph) Len() (vertices, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices), len(g.edges)
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
