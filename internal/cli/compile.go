package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/traverse/internal/ir"
	"github.com/roach88/traverse/internal/source"
	"github.com/roach88/traverse/internal/store"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/traversal"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Traversals []string // traversal names, all when empty
	Engine     string   // engine override
	DB         string   // plan cache database path
	Output     string   // output file path
}

// CompiledTraversal is one traversal after strategy application.
type CompiledTraversal struct {
	Name        string     `json:"name"`
	Engine      string     `json:"engine"`
	Fingerprint string     `json:"fingerprint"`
	Source      string     `json:"source"`
	Compiled    string     `json:"compiled"`
	Steps       ir.IRArray `json:"steps"`
	Cached      bool       `json:"cached,omitempty"` // served from the --db plan cache
}

// CompilationResult holds every compiled traversal.
type CompilationResult struct {
	Traversals []CompiledTraversal `json:"traversals"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "Compile traversals through the registered strategies",
		Long: `Compile the traversals declared in a CUE file or directory.

Each traversal is bound to an engine (--engine, then the engine named in
the source, then traversal.engine from configuration, then standard) and
rewritten by the default strategies in phase order. With --db the compiled
plans are cached in a SQLite database keyed by the fingerprint of the
uncompiled traversal and the engine; a traversal whose plan is already
cached by this compiler version is not recompiled.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(commandContext(cmd), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Traversals, "traversal", "t", nil, "traversal names to compile (default all)")
	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", "", "engine (standard|computer)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to cache compiled plans in")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCompileError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	loaded, err := LoadTraversals(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d traversal(s) in %d CUE file(s)", len(loaded.Traversals), loaded.FileCount)

	selected, err := loaded.Select(splitNames(opts.Traversals))
	if err != nil {
		return outputLoadError(formatter, err)
	}

	var cache *planCache
	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGraphLoad, fmt.Sprintf("opening plan cache: %v", err), nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing plan cache", "error", closeErr)
			}
		}()
		cache = &planCache{st: st}
	}

	registry := strategy.DefaultRegistry()
	result := &CompilationResult{Traversals: make([]CompiledTraversal, 0, len(selected))}
	for _, t := range selected {
		engine, err := resolveEngine(opts.Engine, t, cfg)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		chain, compiled, err := buildChain(t, engine)
		if err != nil {
			return outputLoadError(formatter, err)
		}

		if cache != nil {
			hit, err := cache.lookup(ctx, &compiled)
			if err != nil {
				return outputCompileError(formatter, ErrCodeGraphLoad, fmt.Sprintf("reading plan cache: %v", err), nil)
			}
			if hit {
				formatter.VerboseLog("Plan cache hit: %s (%s)", t.Name, engine)
				result.Traversals = append(result.Traversals, compiled)
				continue
			}
		}

		formatter.VerboseLog("Compiling traversal: %s (%s)", t.Name, engine)
		if err := compileBuilt(ctx, registry, t, chain, engine, &compiled); err != nil {
			return outputLoadError(formatter, err)
		}
		if cache != nil {
			if err := cache.store(ctx, compiled); err != nil {
				return outputCompileError(formatter, ErrCodeGraphLoad, fmt.Sprintf("caching plans: %v", err), nil)
			}
		}
		result.Traversals = append(result.Traversals, compiled)
	}

	if cache != nil {
		formatter.VerboseLog("Plan cache %s: %d hit(s), %d plan(s) written", opts.DB, cache.hits, cache.writes)
	}

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileChain builds a fresh chain for t and compiles it.
func compileChain(ctx context.Context, registry *strategy.Registry, t *source.Traversal, engine traversal.EngineKind) (*traversal.Chain, CompiledTraversal, error) {
	chain, compiled, err := buildChain(t, engine)
	if err != nil {
		return nil, CompiledTraversal{}, err
	}
	if err := compileBuilt(ctx, registry, t, chain, engine, &compiled); err != nil {
		return nil, CompiledTraversal{}, err
	}
	return chain, compiled, nil
}

// buildChain builds the uncompiled chain for t and fills in the fields
// that identify the input. The fingerprint is taken before compilation.
func buildChain(t *source.Traversal, engine traversal.EngineKind) (*traversal.Chain, CompiledTraversal, error) {
	chain, err := t.Build()
	if err != nil {
		return nil, CompiledTraversal{}, convertSourceError(err)
	}
	fingerprint, err := chain.Fingerprint()
	if err != nil {
		return nil, CompiledTraversal{}, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("fingerprint %s: %v", t.Name, err)}
	}
	return chain, CompiledTraversal{
		Name:        t.Name,
		Engine:      engine.String(),
		Fingerprint: fingerprint,
		Source:      chain.String(),
	}, nil
}

// compileBuilt runs the strategies over a chain from buildChain and
// records the result in c.
func compileBuilt(ctx context.Context, registry *strategy.Registry, t *source.Traversal, chain *traversal.Chain, engine traversal.EngineKind, c *CompiledTraversal) error {
	if err := registry.Compile(ctx, chain, engine); err != nil {
		return &LoadError{Code: ErrorCode(err), Message: fmt.Sprintf("%s: %v", t.Name, err), Pos: t.Pos}
	}
	c.Compiled = chain.String()
	c.Steps = chain.Encode()
	return nil
}

// planCache serves compiled plans from the store's plans table. A plan
// written by another compiler version is a miss and is replaced.
type planCache struct {
	st     *store.Store
	hits   int
	writes int
}

// lookup fills c from the cache when a current plan exists for its
// fingerprint and engine.
func (pc *planCache) lookup(ctx context.Context, c *CompiledTraversal) (bool, error) {
	p, ok, err := pc.st.ReadPlan(ctx, c.Fingerprint, c.Engine)
	if err != nil || !ok {
		return false, err
	}
	if p.CompilerVersion != ir.CompilerVersion {
		slog.Debug("stale cached plan", "fingerprint", c.Fingerprint, "engine", c.Engine, "version", p.CompilerVersion)
		return false, nil
	}
	c.Compiled = p.Rendered
	c.Steps = p.Compiled
	c.Cached = true
	pc.hits++
	return true, nil
}

func (pc *planCache) store(ctx context.Context, c CompiledTraversal) error {
	err := pc.st.WritePlan(ctx, store.Plan{
		Fingerprint:     c.Fingerprint,
		Engine:          c.Engine,
		Source:          c.Source,
		Compiled:        c.Steps,
		Rendered:        c.Compiled,
		CompilerVersion: ir.CompilerVersion,
	})
	if err != nil {
		return err
	}
	pc.writes++
	return nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d traversal(s)\n\n", len(result.Traversals))
	for _, c := range result.Traversals {
		fmt.Fprintf(formatter.Writer, "  %s [%s]\n", c.Name, c.Engine)
		fmt.Fprintf(formatter.Writer, "    source:   %s\n", c.Source)
		if c.Cached {
			fmt.Fprintf(formatter.Writer, "    compiled: %s (cached)\n", c.Compiled)
		} else {
			fmt.Fprintf(formatter.Writer, "    compiled: %s\n", c.Compiled)
		}
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled traversals to %s\n", outputFile)
	}
	return nil
}

// outputLoadError reports a load or compile failure with its code and position.
func outputLoadError(formatter *OutputFormatter, err error) error {
	le := convertSourceError(err)
	var details interface{}
	if le.Pos.IsValid() {
		details = map[string]interface{}{
			"file":   le.Pos.Filename(),
			"line":   le.Pos.Line(),
			"column": le.Pos.Column(),
		}
	}
	return outputCompileError(formatter, le.Code, le.Message, details)
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// writeCompiledToFile writes the compilation result to a file as indented JSON.
func writeCompiledToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling compiled traversals: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
