package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/traverse/internal/computer"
	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/engine"
	"github.com/roach88/traverse/internal/graph"
	"github.com/roach88/traverse/internal/metrics"
	"github.com/roach88/traverse/internal/store"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/testutil"
	"github.com/roach88/traverse/internal/traversal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Traversals    []string
	Engine        string
	Graph         string // YAML graph fixture
	Database      string // SQLite graph store
	Workers       int
	MaxSupersteps int
	Metrics       bool

	// JobIDs allows overriding the computer job id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	JobIDs computer.JobIDGenerator
}

// RunResult is the outcome of one executed traversal.
type RunResult struct {
	Name        string              `json:"name"`
	Engine      string              `json:"engine"`
	Compiled    string              `json:"compiled"`
	Results     []string            `json:"results"`
	SideEffects map[string][]string `json:"side_effects,omitempty"`
	JobID       string              `json:"job_id,omitempty"`
	Supersteps  int                 `json:"supersteps,omitempty"`
}

// RunReport holds every executed traversal.
type RunReport struct {
	Runs    []RunResult        `json:"runs"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommandWith(&RunOptions{RootOptions: rootOpts})
}

func newRunCommandWith(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Compile and execute traversals against a graph",
		Long: `Compile traversals and execute them on the standard or computer engine.

The graph is the built-in modern graph unless --graph names a YAML fixture
or --db names a SQLite graph store. With both, the fixture is imported into
the store before the traversals run.

Example:
  traverse run ./traversals.cue
  traverse run --engine computer --workers 8 -t lonely ./traversals
  traverse run --db ./graph.db --graph ./fixture.yaml ./traversals.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraversals(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Traversals, "traversal", "t", nil, "traversal names to run (default all)")
	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", "", "engine (standard|computer)")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "YAML graph fixture")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite graph store")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "computer partitions run in parallel (default from config)")
	cmd.Flags().IntVar(&opts.MaxSupersteps, "max-supersteps", 0, "computer superstep cap (default from config)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report compilation and job metrics")

	return cmd
}

func runTraversals(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCompileError(formatter, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Workers < 0 || opts.MaxSupersteps < 0 {
		return outputCompileError(formatter, ErrCodeConfig, "--workers and --max-supersteps must be non-negative", nil)
	}
	if opts.Workers > 0 {
		cfg = cfg.With(config.KeyWorkers, strconv.Itoa(opts.Workers))
	}
	if opts.MaxSupersteps > 0 {
		cfg = cfg.With(config.KeyMaxSupersteps, strconv.Itoa(opts.MaxSupersteps))
	}

	loaded, err := LoadTraversals(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	selected, err := loaded.Select(splitNames(opts.Traversals))
	if err != nil {
		return outputLoadError(formatter, err)
	}

	// Setup signal handling so a long computer job can be interrupted
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, closeGraph, err := opts.openGraph(ctx)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGraphLoad, err.Error(), nil)
	}
	defer func() {
		if closeErr := closeGraph(); closeErr != nil {
			slog.Error("error closing graph store", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := strategy.DefaultRegistry(strategy.WithMetrics(m))

	report := &RunReport{Runs: make([]RunResult, 0, len(selected))}
	for _, t := range selected {
		kind, err := resolveEngine(opts.Engine, t, cfg)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		chain, compiled, err := compileChain(ctx, registry, t, kind)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		formatter.VerboseLog("Running traversal: %s [%s] %s", t.Name, kind, compiled.Compiled)

		run := RunResult{Name: t.Name, Engine: kind.String(), Compiled: compiled.Compiled}
		switch kind {
		case traversal.EngineComputer:
			err = opts.runComputer(ctx, cfg, m, chain, g, &run)
		default:
			err = runStandard(ctx, chain, g, &run)
		}
		if err != nil {
			return outputRunError(formatter, t.Name, err)
		}
		report.Runs = append(report.Runs, run)
	}

	if opts.Metrics {
		report.Metrics, err = gatherTotals(reg)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("gathering metrics: %v", err), nil)
		}
	}

	return outputRunSuccess(formatter, report)
}

// openGraph returns the graph traversals run against and a func releasing it.
func (o *RunOptions) openGraph(ctx context.Context) (graph.Graph, func() error, error) {
	noop := func() error { return nil }
	if o.Database == "" {
		if o.Graph != "" {
			g, err := graph.LoadFixtureFile(ctx, o.Graph)
			if err != nil {
				return nil, noop, fmt.Errorf("loading graph fixture: %w", err)
			}
			return g, noop, nil
		}
		g, err := testutil.NewModernGraph(ctx)
		return g, noop, err
	}

	slog.Debug("opening graph store", "path", o.Database)
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, noop, fmt.Errorf("opening graph store: %w", err)
	}
	if o.Graph != "" {
		if err := importFixture(ctx, o.Graph, st.Graph()); err != nil {
			return nil, noop, errors.Join(err, st.Close())
		}
	}
	return st.Graph(), st.Close, nil
}

// importFixture writes a YAML fixture into w.
func importFixture(ctx context.Context, path string, w graph.Writer) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loading graph fixture: %w", err)
	}
	defer fh.Close()

	f, err := graph.ParseFixture(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Load(ctx, w); err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	slog.Debug("imported graph fixture", "path", path, "vertices", len(f.Vertices), "edges", len(f.Edges))
	return nil
}

func runStandard(ctx context.Context, chain *traversal.Chain, g graph.Graph, run *RunResult) error {
	exec, err := engine.NewStandard(g).Execute(chain)
	if err != nil {
		return err
	}
	results, err := exec.Results(ctx)
	if err != nil {
		return err
	}
	run.Results = render(results)
	for key, ts := range exec.SideEffects() {
		run.addSideEffect(key, render(ts))
	}
	return nil
}

func (o *RunOptions) runComputer(ctx context.Context, cfg config.Config, m *metrics.Metrics,
	chain *traversal.Chain, g graph.Graph, run *RunResult) error {
	// The chain is already compiled for the computer engine, so the job
	// runs it directly instead of recompiling traversal.source.
	programs := computer.NewPrograms()
	if err := programs.Register(computer.TraversalProgramName, func(config.Config) (computer.VertexProgram, error) {
		return computer.NewTraversalProgram(chain)
	}); err != nil {
		return err
	}

	copts := []computer.Option{computer.WithPrograms(programs), computer.WithMetrics(m)}
	if o.JobIDs != nil {
		copts = append(copts, computer.WithJobIDs(o.JobIDs))
	}
	future := computer.New(copts...).Submit(ctx, cfg.With(config.KeyProgram, computer.TraversalProgramName), g)
	run.JobID = future.JobID()

	res, err := future.Wait(ctx)
	run.Supersteps = res.Supersteps
	if err != nil {
		return err
	}
	run.Results = render(computer.TraversalResults(res))
	chain.Walk(func(s *traversal.Step) bool {
		if s.Kind() == traversal.KindStore {
			for _, key := range s.Args() {
				if ts := computer.TraversalSideEffect(res, key); len(ts) > 0 {
					run.addSideEffect(key, render(ts))
				}
			}
		}
		return true
	})
	return nil
}

func (r *RunResult) addSideEffect(key string, values []string) {
	if r.SideEffects == nil {
		r.SideEffects = make(map[string][]string)
	}
	r.SideEffects[key] = values
}

func render(ts []engine.Traverser) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// gatherTotals sums every sample of each metric family.
func gatherTotals(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				sum += float64(metric.GetHistogram().GetSampleCount())
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			}
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}

func outputRunSuccess(formatter *OutputFormatter, report *RunReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	for _, run := range report.Runs {
		fmt.Fprintf(formatter.Writer, "%s [%s] %s\n", run.Name, run.Engine, run.Compiled)
		if run.JobID != "" {
			fmt.Fprintf(formatter.Writer, "  job %s: %d superstep(s)\n", run.JobID, run.Supersteps)
		}
		fmt.Fprintf(formatter.Writer, "  => %v\n", run.Results)
		for _, key := range slices.Sorted(maps.Keys(run.SideEffects)) {
			fmt.Fprintf(formatter.Writer, "  %s = %v\n", key, run.SideEffects[key])
		}
	}

	if len(report.Metrics) > 0 {
		fmt.Fprintln(formatter.Writer, "\nMetrics:")
		for _, name := range slices.Sorted(maps.Keys(report.Metrics)) {
			fmt.Fprintf(formatter.Writer, "  %s %g\n", name, report.Metrics[name])
		}
	}
	return nil
}

// outputRunError reports an execution failure. Execution errors are
// failures of the traversal, not of the command (exit code 1).
func outputRunError(formatter *OutputFormatter, name string, err error) error {
	code := ErrorCode(err)
	if code == ErrCodeGeneric {
		code = ErrCodeExecutionFailed
	}
	msg := fmt.Sprintf("%s: %v", name, err)
	_ = formatter.Error(code, msg, nil)
	return WrapExitError(ExitFailure, fmt.Sprintf("%s: %s", code, msg), nil)
}
