package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/traverse/internal/traversal"
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotCompiled indicates the chain has not been compiled.
	ErrCodeNotCompiled RuntimeErrorCode = "NOT_COMPILED"

	// ErrCodeEngineMismatch indicates the chain was compiled for another engine.
	ErrCodeEngineMismatch RuntimeErrorCode = "ENGINE_MISMATCH"

	// ErrCodeUnresolvedMarker indicates a conjunction marker survived compilation.
	ErrCodeUnresolvedMarker RuntimeErrorCode = "UNRESOLVED_MARKER"

	// ErrCodeTypeMismatch indicates a step received an object it cannot handle,
	// such as out() over a property value.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnsupportedStep indicates a step kind the engine cannot execute.
	ErrCodeUnsupportedStep RuntimeErrorCode = "UNSUPPORTED_STEP"
)

// RuntimeError represents an error detected while executing a chain.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Step identifies the failing step, when there is one.
	Step traversal.StepID

	// Kind is the kind of the failing step.
	Kind traversal.Kind
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Step != 0 {
		return fmt.Sprintf("%s: %s (step=%d %s)", e.Code, e.Message, e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRuntimeError returns true if err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTypeMismatch returns true if the error is a type mismatch.
func IsTypeMismatch(err error) bool {
	return IsRuntimeError(err, ErrCodeTypeMismatch)
}

func stepError(code RuntimeErrorCode, s *traversal.Step, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Step:    s.ID(),
		Kind:    s.Kind(),
	}
}
