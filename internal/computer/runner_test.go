package computer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/metrics"
	"github.com/roach88/traverse/internal/testutil"
)

// maxProgram propagates the largest vertex id along edges in both
// directions until nothing changes.
type maxProgram struct {
	final *sync.Map
}

func (maxProgram) Setup(Memory) error { return nil }

func (p maxProgram) Execute(ctx context.Context, v *Vertex, m Messenger, mem Memory) error {
	defer v.VoteToHalt()
	changed := false
	if mem.Superstep() == 0 {
		v.State = v.ID
		changed = true
	}
	for _, msg := range m.Incoming() {
		if n := msg.Payload.(int64); n > v.State.(int64) {
			v.State = n
			changed = true
		}
	}
	p.final.Store(v.ID, v.State)
	if !changed {
		return nil
	}
	edges, err := v.Graph().Edges(ctx, v.ID, graph.DirBoth)
	if err != nil {
		return err
	}
	for _, e := range edges {
		other := e.InV
		if other == v.ID {
			other = e.OutV
		}
		m.Send(other, v.State)
	}
	return nil
}

func (maxProgram) Terminate(Memory) bool { return false }

// funcProgram adapts closures to VertexProgram.
type funcProgram struct {
	setup     func(Memory) error
	execute   func(context.Context, *Vertex, Messenger, Memory) error
	terminate func(Memory) bool
	master    func(int, Memory) error
}

func (p *funcProgram) Setup(mem Memory) error {
	if p.setup == nil {
		return nil
	}
	return p.setup(mem)
}

func (p *funcProgram) Execute(ctx context.Context, v *Vertex, m Messenger, mem Memory) error {
	return p.execute(ctx, v, m, mem)
}

func (p *funcProgram) Terminate(mem Memory) bool {
	return p.terminate != nil && p.terminate(mem)
}

type masterProgram struct {
	*funcProgram
}

func (p masterProgram) Master(superstep int, mem Memory) error {
	return p.master(superstep, mem)
}

func halting(context.Context, *Vertex, Messenger, Memory) error { return nil }

// TestRunnerPropagatesToFixpoint tests message passing until every vertex halts.
func TestRunnerPropagatesToFixpoint(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 16} {
		final := &sync.Map{}
		res, err := NewRunner(WithWorkers(workers)).Run(context.Background(), "job", "max", maxProgram{final: final}, testutil.ModernGraph(t))
		require.NoError(t, err, "workers=%d", workers)

		for id := int64(1); id <= 6; id++ {
			got, ok := final.Load(id)
			require.True(t, ok)
			assert.Equal(t, int64(6), got, "vertex %d workers=%d", id, workers)
		}
		// 6 reaches 3, then 1 and 4, then 2 and 5; the last superstep is silent.
		assert.Equal(t, 5, res.Supersteps, "workers=%d", workers)
	}
}

// TestRunnerHaltsImmediately tests a program whose vertices halt at once.
func TestRunnerHaltsImmediately(t *testing.T) {
	prog := &funcProgram{execute: func(_ context.Context, v *Vertex, _ Messenger, _ Memory) error {
		v.VoteToHalt()
		return nil
	}}
	res, err := NewRunner().Run(context.Background(), "job", "halt", prog, testutil.ModernGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Supersteps)
	assert.Equal(t, "job", res.JobID)
	assert.NoError(t, res.Err)
}

// TestRunnerSuperstepCap tests that a job that never halts fails at the cap.
func TestRunnerSuperstepCap(t *testing.T) {
	prog := &funcProgram{execute: halting}
	res, err := NewRunner(WithMaxSupersteps(3)).Run(context.Background(), "job-cap", "spin", prog, testutil.ModernGraph(t))
	require.Error(t, err)
	assert.True(t, IsSuperstepLimitError(err))

	var se *SuperstepLimitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "job-cap", se.JobID)
	assert.Equal(t, 3, se.Limit)
	assert.Equal(t, 3, se.Supersteps)
	assert.Equal(t, 3, res.Supersteps)
	assert.Equal(t, err, res.Err)
}

// TestRunnerTerminate tests that Terminate ends a job with active vertices.
func TestRunnerTerminate(t *testing.T) {
	prog := &funcProgram{
		execute:   halting,
		terminate: func(mem Memory) bool { return mem.Superstep() >= 2 },
	}
	res, err := NewRunner().Run(context.Background(), "job", "three", prog, testutil.ModernGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Supersteps)
}

// TestRunnerMessagesAtBarrier tests that messages arrive only in the next superstep.
func TestRunnerMessagesAtBarrier(t *testing.T) {
	var mu sync.Mutex
	seen := map[int][]Message{}
	prog := &funcProgram{execute: func(_ context.Context, v *Vertex, m Messenger, mem Memory) error {
		defer v.VoteToHalt()
		if v.ID == 2 {
			mu.Lock()
			seen[mem.Superstep()] = append(seen[mem.Superstep()], m.Incoming()...)
			mu.Unlock()
		}
		if mem.Superstep() == 0 && (v.ID == 1 || v.ID == 6) {
			m.Send(2, v.ID*10)
			m.Send(2, v.ID*10+1)
		}
		return nil
	}}
	res, err := NewRunner(WithWorkers(3)).Run(context.Background(), "job", "ping", prog, testutil.ModernGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Supersteps)

	assert.Empty(t, seen[0])
	assert.Equal(t, []Message{
		{From: 1, To: 2, Payload: int64(10)},
		{From: 1, To: 2, Payload: int64(11)},
		{From: 6, To: 2, Payload: int64(60)},
		{From: 6, To: 2, Payload: int64(61)},
	}, seen[1])
}

// TestRunnerMemoryVisibility tests that memory writes appear after the barrier.
func TestRunnerMemoryVisibility(t *testing.T) {
	var mu sync.Mutex
	visible := map[int]int{}
	prog := masterProgram{&funcProgram{
		setup: func(mem Memory) error {
			mem.Set("ticks")
			return nil
		},
		execute: func(_ context.Context, v *Vertex, _ Messenger, mem Memory) error {
			mu.Lock()
			visible[mem.Superstep()] = len(mem.Get("ticks"))
			mu.Unlock()
			mem.Add("ticks", v.ID)
			return nil
		},
		terminate: func(mem Memory) bool { return mem.Superstep() == 1 },
		master: func(superstep int, mem Memory) error {
			mem.Set("total", len(mem.Get("ticks")))
			return nil
		},
	}}
	res, err := NewRunner(WithWorkers(2)).Run(context.Background(), "job", "ticks", prog, testutil.ModernGraph(t))
	require.NoError(t, err)

	assert.Equal(t, 0, visible[0])
	assert.Equal(t, 6, visible[1])
	assert.Equal(t, []any{12}, res.Memory["total"])
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6)}, res.Memory["ticks"][:6])
}

// TestRunnerErrors tests program failures and bad messages.
func TestRunnerErrors(t *testing.T) {
	boom := errors.New("boom")

	prog := &funcProgram{execute: func(_ context.Context, v *Vertex, _ Messenger, _ Memory) error {
		if v.ID == 4 {
			return boom
		}
		return nil
	}}
	_, err := NewRunner().Run(context.Background(), "job", "boom", prog, testutil.ModernGraph(t))
	assert.True(t, IsProgramError(err))
	assert.ErrorIs(t, err, boom)
	var pe *ProgramError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(4), pe.Vertex)

	prog = &funcProgram{execute: func(_ context.Context, v *Vertex, m Messenger, _ Memory) error {
		m.Send(404, "lost")
		return nil
	}}
	_, err = NewRunner().Run(context.Background(), "job", "lost", prog, testutil.ModernGraph(t))
	assert.ErrorIs(t, err, ErrUnknownVertex)

	prog = &funcProgram{setup: func(Memory) error { return boom }, execute: halting}
	_, err = NewRunner().Run(context.Background(), "job", "setup", prog, testutil.ModernGraph(t))
	assert.ErrorIs(t, err, boom)
}

// TestRunnerCancelled tests that a cancelled context fails the job.
func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner().Run(ctx, "job", "cancelled", &funcProgram{execute: halting}, testutil.ModernGraph(t))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRunnerMetrics tests superstep and message counters.
func TestRunnerMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	prog := &funcProgram{execute: func(_ context.Context, v *Vertex, msgs Messenger, mem Memory) error {
		defer v.VoteToHalt()
		if mem.Superstep() == 0 {
			msgs.Send(1, struct{}{})
		}
		return nil
	}}
	_, err := NewRunner(WithRunnerMetrics(m)).Run(context.Background(), "job", "fanin", prog, testutil.ModernGraph(t))
	require.NoError(t, err)

	assert.Equal(t, float64(2), promtest.ToFloat64(m.SuperstepsTotal.WithLabelValues("fanin")))
	assert.Equal(t, float64(6), promtest.ToFloat64(m.MessagesTotal.WithLabelValues("fanin")))
}

func TestPartition(t *testing.T) {
	vs := make([]*Vertex, 7)
	for i := range vs {
		vs[i] = &Vertex{Vertex: graph.Vertex{ID: int64(i + 1)}}
	}
	sizes := func(parts [][]*Vertex) []int {
		out := []int{}
		for _, p := range parts {
			out = append(out, len(p))
		}
		return out
	}
	assert.Equal(t, []int{2, 2, 2, 1}, sizes(partition(vs, 4)))
	assert.Equal(t, []int{7}, sizes(partition(vs, 1)))
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1}, sizes(partition(vs, 10)))
	assert.Nil(t, partition(nil, 4))
}
