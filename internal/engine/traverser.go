package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/ir"
)

// Traverser is one unit of work flowing through a pipeline: the object it
// currently stands on plus the labeled objects it passed on the way.
//
// The object is a graph.Vertex, a graph.Edge, an ir.IRValue, or nil for
// the seed traverser that feeds a root chain. Traversers are values; every
// step that moves one produces a new traverser sharing the old path prefix.
type Traverser struct {
	obj  any
	path []PathEntry
}

// PathEntry records the object a traverser held when it left a labeled step.
type PathEntry struct {
	Label  string
	Object any
}

// NewTraverser creates a traverser standing on obj with an empty path.
func NewTraverser(obj any) Traverser {
	return Traverser{obj: obj}
}

// Object returns the object the traverser stands on.
func (t Traverser) Object() any { return t.obj }

// Vertex returns the vertex the traverser stands on.
func (t Traverser) Vertex() (graph.Vertex, bool) {
	v, ok := t.obj.(graph.Vertex)
	return v, ok
}

// Edge returns the edge the traverser stands on.
func (t Traverser) Edge() (graph.Edge, bool) {
	e, ok := t.obj.(graph.Edge)
	return e, ok
}

// Value returns the traverser's object as a comparable value. Elements
// compare by id; the seed has no value.
func (t Traverser) Value() (ir.IRValue, bool) {
	switch o := t.obj.(type) {
	case ir.IRValue:
		return o, true
	case graph.Element:
		return ir.IRInt(o.ElementID()), true
	}
	return nil, false
}

// Path returns a copy of the labeled path.
func (t Traverser) Path() []PathEntry { return slices.Clone(t.path) }

// Labeled returns the object most recently recorded under label.
func (t Traverser) Labeled(label string) (any, bool) {
	for i := len(t.path) - 1; i >= 0; i-- {
		if t.path[i].Label == label {
			return t.path[i].Object, true
		}
	}
	return nil, false
}

// split moves the traverser to obj, keeping its path.
func (t Traverser) split(obj any) Traverser {
	return Traverser{obj: obj, path: t.path}
}

// Mark records the current object under each label. The path is copied so
// sibling traversers split from the same parent never see each other's labels.
func (t Traverser) Mark(labels ...string) Traverser {
	if len(labels) == 0 {
		return t
	}
	path := slices.Grow(slices.Clone(t.path), len(labels))
	for _, l := range labels {
		path = append(path, PathEntry{Label: l, Object: t.obj})
	}
	return Traverser{obj: t.obj, path: path}
}

func (t Traverser) String() string {
	switch o := t.obj.(type) {
	case nil:
		return "seed"
	case graph.Vertex:
		return fmt.Sprintf("v[%d]", o.ID)
	case graph.Edge:
		return fmt.Sprintf("e[%d][%d-%s->%d]", o.ID, o.OutV, o.Label, o.InV)
	case ir.IRValue:
		return ir.String(o)
	}
	return fmt.Sprintf("%v", t.obj)
}
