package engine

import (
	"context"

	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/traversal"
)

// iterator is the demand-pull contract between adjacent steps: a step
// produces its next traverser by pulling from its predecessor.
type iterator interface {
	next(ctx context.Context) (Traverser, bool, error)
}

// sliceIter feeds a fixed list of traversers into a pipeline.
type sliceIter struct {
	items []Traverser
}

func (it *sliceIter) next(context.Context) (Traverser, bool, error) {
	if len(it.items) == 0 {
		return Traverser{}, false, nil
	}
	t := it.items[0]
	it.items = it.items[1:]
	return t, true, nil
}

// stepIter wraps the iterator of one step: it labels every output and
// counts how many traversers the step produced.
type stepIter struct {
	inner  iterator
	step   traversal.StepID
	labels []string
	stats  Stats
}

func (it *stepIter) next(ctx context.Context) (Traverser, bool, error) {
	t, ok, err := it.inner.next(ctx)
	if err != nil || !ok {
		return Traverser{}, false, err
	}
	it.stats[it.step]++
	return t.Mark(it.labels...), true, nil
}

// flatMapIter emits zero or more outputs per input.
type flatMapIter struct {
	up  iterator
	fn  func(ctx context.Context, t Traverser) ([]Traverser, error)
	buf []Traverser
}

func (it *flatMapIter) next(ctx context.Context) (Traverser, bool, error) {
	for len(it.buf) == 0 {
		t, ok, err := it.up.next(ctx)
		if err != nil || !ok {
			return Traverser{}, false, err
		}
		out, err := it.fn(ctx, t)
		if err != nil {
			return Traverser{}, false, err
		}
		it.buf = out
	}
	t := it.buf[0]
	it.buf = it.buf[1:]
	return t, true, nil
}

// filterIter passes the inputs for which fn reports true.
type filterIter struct {
	up iterator
	fn func(ctx context.Context, t Traverser) (bool, error)
}

func (it *filterIter) next(ctx context.Context) (Traverser, bool, error) {
	for {
		t, ok, err := it.up.next(ctx)
		if err != nil || !ok {
			return Traverser{}, false, err
		}
		keep, err := it.fn(ctx, t)
		if err != nil {
			return Traverser{}, false, err
		}
		if keep {
			return t, true, nil
		}
	}
}

// rangeIter passes inputs with index in [low, high). Once high inputs
// have been read it reports exhaustion without pulling upstream again.
type rangeIter struct {
	up        iterator
	low, high int64
	seen      int64
}

func (it *rangeIter) next(ctx context.Context) (Traverser, bool, error) {
	for {
		if it.high != traversal.Unbounded && it.seen >= it.high {
			return Traverser{}, false, nil
		}
		t, ok, err := it.up.next(ctx)
		if err != nil || !ok {
			return Traverser{}, false, err
		}
		it.seen++
		if it.seen > it.low {
			return t, true, nil
		}
	}
}

// countIter drains its input and emits the number of traversers read.
type countIter struct {
	up   iterator
	done bool
}

func (it *countIter) next(ctx context.Context) (Traverser, bool, error) {
	if it.done {
		return Traverser{}, false, nil
	}
	var n int64
	for {
		_, ok, err := it.up.next(ctx)
		if err != nil {
			return Traverser{}, false, err
		}
		if !ok {
			break
		}
		n++
	}
	it.done = true
	return NewTraverser(ir.IRInt(n)), true, nil
}
