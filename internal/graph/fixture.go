package graph

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/traverse/internal/ir"
)

// Fixture is the YAML form of a small property graph:
//
//	vertices:
//	  - {id: 1, label: person, properties: {name: marko, age: 29}}
//	edges:
//	  - {id: 7, label: knows, out: 1, in: 2}
type Fixture struct {
	Vertices []FixtureVertex `yaml:"vertices"`
	Edges    []FixtureEdge   `yaml:"edges"`
}

// FixtureVertex is one vertex entry of a Fixture.
type FixtureVertex struct {
	ID         int64          `yaml:"id"`
	Label      string         `yaml:"label"`
	Properties map[string]any `yaml:"properties"`
}

// FixtureEdge is one edge entry of a Fixture.
type FixtureEdge struct {
	ID         int64          `yaml:"id"`
	Label      string         `yaml:"label"`
	Out        int64          `yaml:"out"`
	In         int64          `yaml:"in"`
	Properties map[string]any `yaml:"properties"`
}

// ParseFixture decodes a YAML fixture. Unknown fields are rejected.
func ParseFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode graph fixture: %w", err)
	}
	return &f, nil
}

// LoadFixtureFile reads a YAML fixture file into a new MemGraph.
func LoadFixtureFile(ctx context.Context, path string) (*MemGraph, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := ParseFixture(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g := NewMemGraph()
	if err := f.Load(ctx, g); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Load writes every vertex, then every edge, into w.
func (f *Fixture) Load(ctx context.Context, w Writer) error {
	for _, fv := range f.Vertices {
		props, err := toProperties(fv.Properties)
		if err != nil {
			return fmt.Errorf("vertex %d: %w", fv.ID, err)
		}
		if err := w.AddVertex(ctx, Vertex{ID: fv.ID, Label: fv.Label, Properties: props}); err != nil {
			return err
		}
	}
	for _, fe := range f.Edges {
		props, err := toProperties(fe.Properties)
		if err != nil {
			return fmt.Errorf("edge %d: %w", fe.ID, err)
		}
		e := Edge{ID: fe.ID, Label: fe.Label, OutV: fe.Out, InV: fe.In, Properties: props}
		if err := w.AddEdge(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func toProperties(m map[string]any) (ir.IRObject, error) {
	props := make(ir.IRObject, len(m))
	for k, v := range m {
		iv, err := ir.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		props[k] = iv
	}
	return props, nil
}
