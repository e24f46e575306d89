package traversal

import "errors"

// Chain misuse errors. Mutators validate before touching the chain, so when
// one of these is returned the chain is exactly as it was before the call.
var (
	// ErrNilStep is returned when a nil step is passed to a mutator.
	ErrNilStep = errors.New("traversal: nil step")

	// ErrStepNotInChain is returned when a step is not owned by the chain.
	ErrStepNotInChain = errors.New("traversal: step is not in this chain")

	// ErrStepOwned is returned when adding a step that already belongs to a chain.
	ErrStepOwned = errors.New("traversal: step already belongs to a chain")

	// ErrIndexOutOfRange is returned for an insertion index outside [0, len].
	ErrIndexOutOfRange = errors.New("traversal: index out of range")

	// ErrOwnershipCycle is returned when a step would become nested inside itself.
	ErrOwnershipCycle = errors.New("traversal: step cannot be nested inside itself")

	// ErrChainOwned is returned when a chain that already has an owner is
	// handed to a second step. Child chains are never shared.
	ErrChainOwned = errors.New("traversal: chain already owned by a step")

	// ErrChainFrozen is returned when mutating a compiled chain.
	ErrChainFrozen = errors.New("traversal: chain is compiled and frozen")

	// ErrEngineBound is returned when rebinding a chain to a different engine.
	ErrEngineBound = errors.New("traversal: engine already bound")

	// ErrChainDetached is returned when binding or transitioning a chain
	// nested under a step that belongs to no chain.
	ErrChainDetached = errors.New("traversal: chain is nested in a detached step")

	// ErrInvalidState is returned for an illegal lifecycle transition.
	ErrInvalidState = errors.New("traversal: invalid lifecycle transition")
)
