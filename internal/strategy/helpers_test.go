package strategy

import (
	"testing"

	"github.com/roach88/traverse/internal/traversal"
)

// fakeStrategy is a configurable strategy for registry tests.
type fakeStrategy struct {
	name      string
	phase     Phase
	prior     []string
	posterior []string
	apply     func(*traversal.Chain) error
}

func (f *fakeStrategy) Name() string        { return f.name }
func (f *fakeStrategy) Phase() Phase        { return f.phase }
func (f *fakeStrategy) Prior() []string     { return f.prior }
func (f *fakeStrategy) Posterior() []string { return f.posterior }

func (f *fakeStrategy) Apply(c *traversal.Chain) error {
	if f.apply == nil {
		return nil
	}
	return f.apply(c)
}

func names(strategies []Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.Name()
	}
	return out
}

func stepIDs(c *traversal.Chain) []traversal.StepID {
	var ids []traversal.StepID
	c.Walk(func(s *traversal.Step) bool {
		ids = append(ids, s.ID())
		return true
	})
	return ids
}

func countKind(c *traversal.Chain, kind traversal.Kind) int {
	n := 0
	c.Walk(func(s *traversal.Step) bool {
		if s.Kind() == kind {
			n++
		}
		return true
	})
	return n
}

func mustApply(t *testing.T, s Strategy, c *traversal.Chain) {
	t.Helper()
	if err := s.Apply(c); err != nil {
		t.Fatalf("%s.Apply: %v", s.Name(), err)
	}
}
