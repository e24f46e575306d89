package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/traverse/internal/strategy"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Traversal string
	Engine    string
}

// ExplainResult pairs a traversal name with its strategy trace.
type ExplainResult struct {
	Name string `json:"name"`
	*strategy.Explanation
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <source>",
		Short: "Show how each strategy rewrites a traversal",
		Long: `Compile one traversal and print the chain after every strategy,
in the order the registry applies them.

Example:
  traverse explain -t sink ./traversals.cue
  traverse explain -t sink --engine computer --format json ./traversals.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Traversal, "traversal", "t", "", "traversal to explain (required when the source declares several)")
	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", "", "engine (standard|computer)")

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCompileError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	loaded, err := LoadTraversals(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	var names []string
	if opts.Traversal != "" {
		names = []string{opts.Traversal}
	} else if len(loaded.Traversals) > 1 {
		return outputCompileError(formatter, ErrCodeUnknownTraversal,
			fmt.Sprintf("%d traversals declared, choose one with --traversal", len(loaded.Traversals)), nil)
	}
	selected, err := loaded.Select(names)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	t := selected[0]

	kind, err := resolveEngine(opts.Engine, t, cfg)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	chain, err := t.Build()
	if err != nil {
		return outputLoadError(formatter, err)
	}

	ex, err := strategy.DefaultRegistry().Explain(commandContext(cmd), chain, kind)
	result := &ExplainResult{Name: t.Name, Explanation: ex}
	if err != nil {
		// Show how far compilation got before reporting the failure.
		if formatter.Format != "json" {
			writeExplanation(formatter, result)
		}
		return outputLoadError(formatter, &LoadError{Code: ErrorCode(err), Message: fmt.Sprintf("%s: %v", t.Name, err), Pos: t.Pos})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeExplanation(formatter, result)
	return nil
}

func writeExplanation(formatter *OutputFormatter, r *ExplainResult) {
	fmt.Fprintf(formatter.Writer, "%s [%s]\n", r.Name, r.Engine)
	fmt.Fprintf(formatter.Writer, "  original: %s\n\n", r.Original)

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  STRATEGY\tPHASE\tCHAIN")
	for _, step := range r.Steps {
		marker := " "
		if step.Changed {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, step.Strategy, step.Phase, step.Chain)
	}
	_ = tw.Flush()

	fmt.Fprintf(formatter.Writer, "\n  final: %s\n", r.Final)
}
