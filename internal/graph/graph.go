// Package graph defines the property graph the engines traverse.
//
// Engines depend only on the Graph interface. MemGraph is the in-memory
// implementation used by tests and the CLI; store.Graph persists the same
// model in SQLite.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/traverse/internal/ir"
)

// Direction selects which incident edges of a vertex are read.
type Direction int

const (
	DirOut Direction = iota + 1
	DirIn
	DirBoth
)

func (d Direction) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirIn:
		return "in"
	case DirBoth:
		return "both"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

var (
	// ErrDuplicateID is returned when adding an element whose id is taken.
	ErrDuplicateID = errors.New("graph: duplicate element id")

	// ErrMissingVertex is returned when an edge names an unknown endpoint.
	ErrMissingVertex = errors.New("graph: edge endpoint does not exist")
)

// Vertex is a labeled vertex with properties.
type Vertex struct {
	ID         int64
	Label      string
	Properties ir.IRObject
}

// Edge is a directed, labeled edge from OutV to InV.
type Edge struct {
	ID         int64
	Label      string
	OutV       int64
	InV        int64
	Properties ir.IRObject
}

// Element is implemented by Vertex and Edge.
type Element interface {
	ElementID() int64
	ElementLabel() string
	Property(key string) (ir.IRValue, bool)
}

func (v Vertex) ElementID() int64     { return v.ID }
func (v Vertex) ElementLabel() string { return v.Label }

// Property returns the named property. "id" and "label" resolve to the
// element id and label when no property shadows them.
func (v Vertex) Property(key string) (ir.IRValue, bool) {
	return property(v.Properties, key, v.ID, v.Label)
}

func (e Edge) ElementID() int64     { return e.ID }
func (e Edge) ElementLabel() string { return e.Label }

// Property returns the named property, with the same id/label fallback as Vertex.
func (e Edge) Property(key string) (ir.IRValue, bool) {
	return property(e.Properties, key, e.ID, e.Label)
}

func property(props ir.IRObject, key string, id int64, label string) (ir.IRValue, bool) {
	if v, ok := props[key]; ok {
		return v, true
	}
	switch key {
	case "id":
		return ir.IRInt(id), true
	case "label":
		return ir.IRString(label), true
	}
	return nil, false
}

// Graph is the read side consumed by both engines. Implementations must be
// safe for concurrent readers, since the computer engine reads from one
// goroutine per partition.
type Graph interface {
	// Vertices returns the vertices with the given ids in ascending id
	// order, or every vertex when ids is empty. Unknown ids are skipped.
	Vertices(ctx context.Context, ids ...int64) ([]Vertex, error)

	// Edges returns the edges incident to vertex in the given direction,
	// optionally restricted to labels, in ascending id order. For DirBoth
	// the outgoing edges come first.
	Edges(ctx context.Context, vertex int64, dir Direction, labels ...string) ([]Edge, error)
}

// Writer is the load side shared by MemGraph and the SQLite store.
type Writer interface {
	AddVertex(ctx context.Context, v Vertex) error
	AddEdge(ctx context.Context, e Edge) error
}
