package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/traverse/internal/computer"
	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/source"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/traversal"
)

// ValidationError is one problem found in a traversal source.
type ValidationError struct {
	Traversal string `json:"traversal,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Traversals int               `json:"traversals"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var engineFlag string

	cmd := &cobra.Command{
		Use:   "validate <source>",
		Short: "Check that traversals parse and compile",
		Long: `Validate the traversals declared in a CUE file or directory.

Every traversal is parsed against the traversal schema, built into a chain
and compiled for its engine. Traversals bound to the computer engine are
also checked for a V() start. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, engineFlag, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "engine (standard|computer)")

	return cmd
}

func runValidate(opts *RootOptions, engineFlag, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputValidateError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	loaded, err := LoadTraversals(path)
	if err != nil {
		le := convertSourceError(err)
		if le.Code != ErrCodeSourceInvalid {
			return outputValidateError(formatter, le.Code, le.Message, nil)
		}
		// A malformed source is a validation failure, not a command error.
		return outputValidationErrors(formatter, []ValidationError{toValidationError("", le)})
	}

	formatter.VerboseLog("Found %d traversal(s) in %d CUE file(s)", len(loaded.Traversals), loaded.FileCount)

	validationErrors := validateAll(commandContext(cmd), loaded.Traversals, engineFlag, cfg, formatter)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(loaded.Traversals))
}

// validateAll builds and compiles every traversal, collecting all errors.
func validateAll(ctx context.Context, traversals []*source.Traversal, engineFlag string,
	cfg config.Config, formatter *OutputFormatter) []ValidationError {
	var allErrors []ValidationError
	registry := strategy.DefaultRegistry()

	for _, t := range traversals {
		formatter.VerboseLog("Validating traversal: %s", t.Name)
		if err := validateTraversal(ctx, registry, t, engineFlag, cfg); err != nil {
			allErrors = append(allErrors, toValidationError(t.Name, convertSourceError(err)))
		}
	}
	return allErrors
}

func validateTraversal(ctx context.Context, registry *strategy.Registry, t *source.Traversal,
	engineFlag string, cfg config.Config) error {
	kind, err := resolveEngine(engineFlag, t, cfg)
	if err != nil {
		return err
	}
	chain, compiled, err := compileChain(ctx, registry, t, kind)
	if err != nil {
		return err
	}
	if kind == traversal.EngineComputer {
		if _, err := computer.NewTraversalProgram(chain); err != nil {
			return &LoadError{
				Code:    ErrCodeExecutionFailed,
				Message: fmt.Sprintf("%s: %v", compiled.Compiled, err),
				Pos:     t.Pos,
			}
		}
	}
	return nil
}

func toValidationError(name string, le *LoadError) ValidationError {
	ve := ValidationError{Traversal: name, Code: le.Code, Message: strings.TrimPrefix(le.Message, name+": ")}
	if le.Pos.IsValid() {
		ve.File = le.Pos.Filename()
		ve.Line = le.Pos.Line()
		ve.Column = le.Pos.Column()
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Traversals: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d traversal(s) valid\n", count)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Errors: errs}
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", err.File, err.Line, err.Column)
		}
		if err.Traversal != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Traversal, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidatePath validates every traversal at path with the default
// configuration. This is a helper function for external callers.
func ValidatePath(ctx context.Context, path string) ([]ValidationError, error) {
	loaded, err := LoadTraversals(path)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Code == ErrCodeSourceInvalid {
			return []ValidationError{toValidationError("", le)}, nil
		}
		return nil, err
	}
	silent := &OutputFormatter{Format: "text"}
	return validateAll(ctx, loaded.Traversals, "", config.New(), silent), nil
}
