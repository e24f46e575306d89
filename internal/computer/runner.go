package computer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/metrics"
)

// DefaultWorkers is the number of partitions when none is configured.
const DefaultWorkers = 4

// Runner executes vertex programs over a graph, one goroutine per partition.
type Runner struct {
	workers       int
	maxSupersteps int
	metrics       *metrics.Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of partitions. Values below 1 mean 1.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = max(n, 1)
	}
}

// WithMaxSupersteps sets the superstep cap.
//
// Default: 100 (config.DefaultMaxSupersteps)
func WithMaxSupersteps(n int) RunnerOption {
	return func(r *Runner) {
		r.maxSupersteps = n
	}
}

// WithRunnerMetrics records supersteps and messages.
func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		workers:       DefaultWorkers,
		maxSupersteps: config.DefaultMaxSupersteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of a job.
type Result struct {
	JobID   string
	Program string

	// Supersteps is the number of supersteps that ran to their barrier.
	Supersteps int

	// Memory is the final memory, by key.
	Memory map[string][]any

	// Err is the error the job failed with, if any.
	Err error
}

// Run executes prog to completion. The returned Result carries the
// superstep count and memory reached so far even when err is non-nil.
func (r *Runner) Run(ctx context.Context, jobID, name string, prog VertexProgram, g graph.Graph) (res Result, err error) {
	res = Result{JobID: jobID, Program: name}
	mem := newSharedMemory()
	defer func() {
		res.Memory = mem.snapshot()
		res.Err = err
	}()

	all, err := g.Vertices(ctx)
	if err != nil {
		return res, fmt.Errorf("job %s: read vertices: %w", jobID, err)
	}
	vertices := make([]*Vertex, len(all))
	known := make(map[int64]bool, len(all))
	for i, v := range all {
		vertices[i] = &Vertex{Vertex: v, g: g}
		known[v.ID] = true
	}
	if err := prog.Setup(mem); err != nil {
		return res, &ProgramError{JobID: jobID, Phase: "setup", Err: err}
	}

	parts := partition(vertices, r.workers)
	quota := newSuperstepQuota(r.maxSupersteps)
	inbox := map[int64][]Message{}

	slog.Debug("job started", "job", jobID, "program", name, "vertices", len(vertices), "partitions", len(parts))

	for superstep := 0; ; superstep++ {
		if err := quota.Check(jobID); err != nil {
			return res, err
		}
		mem.superstep = superstep

		outs := make([]partitionOutput, len(parts))
		eg, gctx := errgroup.WithContext(ctx)
		for i, part := range parts {
			eg.Go(func() error {
				return runPartition(gctx, jobID, prog, part, inbox, mem, &outs[i])
			})
		}
		if err := eg.Wait(); err != nil {
			return res, err
		}

		// Barrier: deliver messages and apply memory writes in partition order.
		next := map[int64][]Message{}
		sent := 0
		for _, out := range outs {
			for _, m := range out.sent {
				if !known[m.To] {
					return res, fmt.Errorf("%w: %d (from %d at superstep %d)", ErrUnknownVertex, m.To, m.From, superstep)
				}
				next[m.To] = append(next[m.To], m)
				sent++
			}
			mem.apply(out.mem.ops)
		}
		inbox = next
		res.Supersteps = superstep + 1
		r.metrics.RecordSuperstep(name, sent)
		slog.Debug("superstep complete", "job", jobID, "superstep", superstep, "messages", sent)

		if master, ok := prog.(Master); ok {
			if err := master.Master(superstep, mem); err != nil {
				return res, &ProgramError{JobID: jobID, Superstep: superstep, Phase: "master", Err: err}
			}
		}
		if prog.Terminate(mem) {
			slog.Debug("program terminated job", "job", jobID, "superstep", superstep)
			break
		}
		if len(inbox) == 0 && allHalted(vertices) {
			break
		}
	}

	if f, ok := prog.(Finisher); ok {
		if err := f.Finish(ctx, g, mem); err != nil {
			return res, &ProgramError{JobID: jobID, Superstep: res.Supersteps, Phase: "finish", Err: err}
		}
	}
	return res, nil
}

type partitionOutput struct {
	sent []Message
	mem  partitionMemory
}

func runPartition(ctx context.Context, jobID string, prog VertexProgram, part []*Vertex,
	inbox map[int64][]Message, shared *sharedMemory, out *partitionOutput) error {
	out.mem.shared = shared
	for _, v := range part {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs := inbox[v.ID]
		if v.halted && len(msgs) == 0 {
			continue
		}
		v.halted = false
		box := &mailbox{from: v.ID, in: msgs, out: &out.sent}
		if err := prog.Execute(ctx, v, box, &out.mem); err != nil {
			return &ProgramError{JobID: jobID, Superstep: shared.superstep, Vertex: v.ID, Phase: "execute", Err: err}
		}
	}
	return nil
}

// partition splits vertices into at most n contiguous, non-empty runs.
func partition(vertices []*Vertex, n int) [][]*Vertex {
	if len(vertices) == 0 {
		return nil
	}
	size := (len(vertices) + n - 1) / n
	var parts [][]*Vertex
	for start := 0; start < len(vertices); start += size {
		parts = append(parts, vertices[start:min(start+size, len(vertices))])
	}
	return parts
}

func allHalted(vertices []*Vertex) bool {
	for _, v := range vertices {
		if !v.halted {
			return false
		}
	}
	return true
}
