package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/traverse/internal/computer"
	"github.com/roach88/traverse/internal/config"
	"github.com/roach88/traverse/internal/engine"
	"github.com/roach88/traverse/internal/source"
	"github.com/roach88/traverse/internal/strategy"
	"github.com/roach88/traverse/internal/traversal"
)

// LoadResult contains the traversals found at a source path.
type LoadResult struct {
	Traversals []*source.Traversal
	FileCount  int // Number of CUE files found
}

// LoadError represents an error that occurred while loading or compiling
// traversals.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadTraversals loads every traversal declared at path, which is either a
// single .cue file or a directory searched recursively.
func LoadTraversals(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing source path: %v", err)}
	}

	if !info.IsDir() {
		ts, err := source.LoadFile(path)
		if err != nil {
			return nil, convertSourceError(err)
		}
		return checkLoaded(&LoadResult{Traversals: ts, FileCount: 1}, path)
	}

	files, err := source.FindCUEFiles(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}
	ts, err := source.LoadDir(path)
	if err != nil {
		return nil, convertSourceError(err)
	}
	return checkLoaded(&LoadResult{Traversals: ts, FileCount: len(files)}, path)
}

func checkLoaded(r *LoadResult, path string) (*LoadResult, error) {
	if len(r.Traversals) == 0 {
		return nil, &LoadError{Code: ErrCodeNoTraversals, Message: fmt.Sprintf("no traversals found in %s", path)}
	}
	return r, nil
}

// Select returns the named traversals in the order given, or all of them
// when names is empty.
func (r *LoadResult) Select(names []string) ([]*source.Traversal, error) {
	if len(names) == 0 {
		return r.Traversals, nil
	}
	byName := make(map[string]*source.Traversal, len(r.Traversals))
	for _, t := range r.Traversals {
		byName[t.Name] = t
	}
	out := make([]*source.Traversal, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, &LoadError{Code: ErrCodeUnknownTraversal, Message: fmt.Sprintf("traversal %q not found", name)}
		}
		out = append(out, t)
	}
	return out, nil
}

// resolveEngine picks the engine for t: the --engine flag wins, then the
// engine named in the source, then traversal.engine from configuration.
// Standard applies when none of them is set.
func resolveEngine(flag string, t *source.Traversal, cfg config.Config) (traversal.EngineKind, error) {
	if flag != "" {
		kind, err := traversal.ParseEngineKind(flag)
		if err != nil {
			return traversal.EngineUnset, &LoadError{Code: ErrCodeInvalidEngine, Message: err.Error()}
		}
		return kind, nil
	}
	if t != nil && t.Engine != traversal.EngineUnset {
		return t.Engine, nil
	}
	kind, err := cfg.Engine()
	if err != nil {
		return traversal.EngineUnset, &LoadError{Code: ErrCodeInvalidEngine, Message: fmt.Sprintf("%s: %v", config.KeyEngine, err)}
	}
	return kind, nil
}

// convertSourceError converts a source error to a LoadError with position info.
func convertSourceError(err error) *LoadError {
	var srcErr *source.SourceError
	if errors.As(err, &srcErr) {
		return &LoadError{
			Code:    ErrCodeSourceInvalid,
			Message: fmt.Sprintf("%s: %s", srcErr.Field, srcErr.Message),
			Pos:     srcErr.Pos,
		}
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return &LoadError{Code: ErrorCode(err), Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error

	// Source errors
	ErrCodeSourceInvalid    = "E101" // Malformed traversal source
	ErrCodeNoTraversals     = "E102" // Source declares no traversals
	ErrCodeUnknownTraversal = "E103" // --traversal names an undeclared traversal
	ErrCodeInvalidEngine    = "E104" // Unknown engine name

	// Compilation errors
	ErrCodeStrategyConfig = "E201" // Strategy registry misconfigured
	ErrCodeCompileFailed  = "E202" // A strategy aborted compilation
	ErrCodeInvariant      = "E203" // Internal invariant violated

	// Execution errors
	ErrCodeExecutionFailed = "E301" // Runtime error during execution
	ErrCodeSuperstepLimit  = "E302" // Computer job hit its superstep cap
	ErrCodeGraphLoad       = "E303" // Graph fixture or store unavailable
	ErrCodeConfig          = "E304" // Invalid configuration value
	ErrCodeScenarioFailed  = "E305" // One or more test scenarios failed
)

// ErrorCode maps an error from the traversal packages to a CLI error code.
func ErrorCode(err error) string {
	var loadErr *LoadError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &loadErr):
		return loadErr.Code
	case strategy.IsInvariantError(err):
		return ErrCodeInvariant
	case strategy.IsConfigError(err):
		return ErrCodeStrategyConfig
	case strategy.IsCompileError(err):
		return ErrCodeCompileFailed
	case computer.IsSuperstepLimitError(err):
		return ErrCodeSuperstepLimit
	case computer.IsProgramError(err), isRuntimeError(err):
		return ErrCodeExecutionFailed
	}
	var srcErr *source.SourceError
	if errors.As(err, &srcErr) {
		return ErrCodeSourceInvalid
	}
	return ErrCodeGeneric
}

func isRuntimeError(err error) bool {
	var re *engine.RuntimeError
	return errors.As(err, &re)
}

// splitNames splits a comma-separated --traversal value.
func splitNames(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
