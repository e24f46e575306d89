package traversal

import (
	"fmt"
	"strings"
)

// EngineKind selects the execution engine a chain is compiled for.
// It is bound once, before compilation, and never changes afterwards.
type EngineKind int

const (
	// EngineUnset means no engine has been bound yet.
	EngineUnset EngineKind = iota
	// EngineStandard is local, single-threaded demand-pull iteration.
	EngineStandard
	// EngineComputer is distributed bulk-synchronous-parallel execution.
	EngineComputer
)

func (k EngineKind) String() string {
	switch k {
	case EngineStandard:
		return "standard"
	case EngineComputer:
		return "computer"
	case EngineUnset:
		return "unset"
	}
	return fmt.Sprintf("engine(%d)", int(k))
}

// MarshalText encodes the engine by name.
func (k EngineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names ParseEngineKind accepts.
func (k *EngineKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEngineKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEngineKind parses "standard" or "computer" (case-insensitive).
func ParseEngineKind(s string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return EngineStandard, nil
	case "computer":
		return EngineComputer, nil
	}
	return EngineUnset, fmt.Errorf("unknown engine kind %q: must be standard or computer", s)
}

// State is the one-way lifecycle of a root chain:
// Building -> Compiled -> Executing -> Done. Failed is terminal and is
// entered when compilation or execution aborts; a failed chain is never
// executed.
type State int

const (
	StateBuilding State = iota
	StateCompiled
	StateExecuting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateCompiled:
		return "compiled"
	case StateExecuting:
		return "executing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
