package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/traverse/internal/traversal"
)

// ErrorCode categorizes strategy errors.
type ErrorCode string

const (
	// ErrCodeOrderingCycle indicates ordering relations within a phase form a cycle.
	ErrCodeOrderingCycle ErrorCode = "ORDERING_CYCLE"

	// ErrCodeCrossPhase indicates an ordering relation names a strategy in another phase.
	ErrCodeCrossPhase ErrorCode = "CROSS_PHASE"

	// ErrCodeInvalidStrategy indicates a nil strategy, empty name, or undefined phase.
	ErrCodeInvalidStrategy ErrorCode = "INVALID_STRATEGY"

	// ErrCodeInvalidEngine indicates the chain cannot be bound to the requested engine.
	ErrCodeInvalidEngine ErrorCode = "INVALID_ENGINE"

	// ErrCodeAlreadyCompiled indicates the chain has left the building state.
	ErrCodeAlreadyCompiled ErrorCode = "ALREADY_COMPILED"

	// ErrCodeNotRoot indicates compilation was asked for a nested chain.
	ErrCodeNotRoot ErrorCode = "NOT_ROOT"

	// ErrCodeStrategyFailed indicates a strategy returned an error.
	ErrCodeStrategyFailed ErrorCode = "STRATEGY_FAILED"

	// ErrCodeCancelled indicates the context ended between strategies.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// ConfigError is a registry configuration error. It is raised before any
// chain is mutated.
type ConfigError struct {
	Code    ErrorCode
	Message string

	// Phase is the phase the error was found in, when relevant.
	Phase Phase

	// Path is the cycle path for ErrCodeOrderingCycle, starting and ending
	// with the same strategy name.
	Path []string
}

func (e *ConfigError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CompileError reports an aborted compilation. When Code is
// ErrCodeStrategyFailed the chain may be partially rewritten and is left
// in the Failed state; it must not be executed.
type CompileError struct {
	Code     ErrorCode
	Strategy string
	Phase    Phase
	Err      error
}

func (e *CompileError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("%s: strategy %s (%s): %v", e.Code, e.Strategy, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// InvariantError reports a violated internal invariant, such as a marker
// surviving past conjunction folding. It is a programming error, never a
// data error.
type InvariantError struct {
	Invariant string
	Step      traversal.StepID
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated at step %d: %s", e.Invariant, e.Step, e.Message)
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsCycleError returns true if err is an ordering cycle configuration error.
func IsCycleError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeOrderingCycle
	}
	return false
}

// IsCompileError returns true if err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsInvariantError returns true if err is or wraps an *InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// Code extracts the error code from a ConfigError or CompileError, or "".
func Code(err error) ErrorCode {
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return cfg.Code
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
