package computer

import (
	"context"
	"log/slog"

	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/metrics"
)

// Computer submits jobs to the local runner.
type Computer struct {
	programs *Programs
	ids      JobIDGenerator
	metrics  *metrics.Metrics
}

// Option configures a Computer.
type Option func(*Computer)

// WithPrograms replaces the built-in program registry.
func WithPrograms(p *Programs) Option {
	return func(c *Computer) {
		c.programs = p
	}
}

// WithJobIDs replaces the UUIDv7 job id generator.
func WithJobIDs(g JobIDGenerator) Option {
	return func(c *Computer) {
		c.ids = g
	}
}

// WithMetrics records jobs and supersteps.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Computer) {
		c.metrics = m
	}
}

// New creates a Computer with the built-in programs.
func New(opts ...Option) *Computer {
	c := &Computer{
		programs: DefaultPrograms(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts a job for the program named by computer.program and returns
// immediately. Failures, including an unknown program or bad configuration,
// surface through the future. Jobs are never retried.
//
// ctx bounds the job itself; cancelling it fails the job at the next vertex.
func (c *Computer) Submit(ctx context.Context, cfg config.Config, g graph.Graph) *Future {
	f := &Future{id: c.ids.Generate(), done: make(chan struct{})}
	go func() {
		f.resolve(c.run(ctx, f.id, cfg, g))
	}()
	return f
}

func (c *Computer) run(ctx context.Context, id string, cfg config.Config, g graph.Graph) (res Result) {
	res = Result{JobID: id}
	defer func() {
		c.metrics.RecordJob(res.Program, res.Err)
		if res.Err != nil {
			slog.Error("job failed", "job", id, "program", res.Program, "supersteps", res.Supersteps, "error", res.Err)
			return
		}
		slog.Info("job finished", "job", id, "program", res.Program, "supersteps", res.Supersteps)
	}()

	name, prog, err := c.programs.New(cfg)
	res.Program = name
	if err != nil {
		res.Err = err
		return res
	}
	workers, err := cfg.Int(config.KeyWorkers, DefaultWorkers)
	if err != nil {
		res.Err = err
		return res
	}
	limit, err := cfg.Int(config.KeyMaxSupersteps, config.DefaultMaxSupersteps)
	if err != nil {
		res.Err = err
		return res
	}

	slog.Info("job submitted", "job", id, "program", name, "workers", workers, "max_supersteps", limit)
	runner := NewRunner(WithWorkers(workers), WithMaxSupersteps(limit), WithRunnerMetrics(c.metrics))
	res, _ = runner.Run(ctx, id, name, prog, g)
	return res
}

// Future resolves to the Result of a submitted job.
type Future struct {
	id   string
	done chan struct{}
	res  Result
}

// JobID returns the id assigned at submission.
func (f *Future) JobID() string { return f.id }

// Done is closed once the job has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx ends. Ending ctx stops the
// wait, not the job.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.res.Err
	case <-ctx.Done():
		return Result{JobID: f.id}, ctx.Err()
	}
}

func (f *Future) resolve(res Result) {
	f.res = res
	close(f.done)
}
