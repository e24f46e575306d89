// Package testutil holds graph fixtures and deterministic helpers shared by
// package tests.
package testutil

import (
	"bytes"
	"context"
	_ "embed"
	"testing"

	"github.com/roach88/traverse/internal/graph"
)

//go:embed testdata/modern.yaml
var modernYAML []byte

// ModernYAML returns the raw YAML of the modern graph fixture.
func ModernYAML() []byte {
	return bytes.Clone(modernYAML)
}

// ModernFixture parses the modern graph fixture.
func ModernFixture(t testing.TB) *graph.Fixture {
	t.Helper()
	f, err := graph.ParseFixture(bytes.NewReader(modernYAML))
	if err != nil {
		t.Fatalf("parse modern fixture: %v", err)
	}
	return f
}

// NewModernGraph builds the modern graph outside of a test, for callers
// such as the conformance harness that report errors instead of failing.
func NewModernGraph(ctx context.Context) (*graph.MemGraph, error) {
	f, err := graph.ParseFixture(bytes.NewReader(modernYAML))
	if err != nil {
		return nil, err
	}
	g := graph.NewMemGraph()
	if err := f.Load(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ModernGraph returns a fresh in-memory copy of the modern graph:
// six vertices (four people, two software) and six edges.
func ModernGraph(t testing.TB) *graph.MemGraph {
	t.Helper()
	g := graph.NewMemGraph()
	LoadModern(t, g)
	return g
}

// LoadModern writes the modern graph into w.
func LoadModern(t testing.TB, w graph.Writer) {
	t.Helper()
	if err := ModernFixture(t).Load(context.Background(), w); err != nil {
		t.Fatalf("load modern fixture: %v", err)
	}
}
