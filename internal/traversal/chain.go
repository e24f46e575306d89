package traversal

import (
	"fmt"
	"slices"
)

// Chain is an ordered, mutable sequence of steps.
//
// A chain is either a root chain (owned by whoever created it) or a child
// chain owned by exactly one step. Predecessor and successor are derived
// from position on every call, so they always reflect earlier mutations in
// the same compilation pass.
//
// INVARIANTS:
//   - every step in steps has owner == this chain
//   - a step appears at most once across all chains
//   - removing a step discards its child chains; nothing reachable from the
//     remaining chain refers to the removed step
//   - engine and state live on the root; nested chains read them through
//     their owner
//
// Chains are not safe for concurrent mutation. Compilation is single-threaded
// and a chain is never shared between compilations.
type Chain struct {
	steps  []*Step
	owner  *Step
	engine EngineKind
	state  State
}

// NewChain creates an empty root chain in the Building state.
func NewChain() *Chain {
	return &Chain{}
}

// Owner returns the step owning this chain, or nil for a root chain.
func (c *Chain) Owner() *Step { return c.owner }

// IsRoot reports whether the chain has no owning step.
func (c *Chain) IsRoot() bool { return c.owner == nil }

// Root returns the outermost chain reachable through owners.
//
// When the outermost owning step is detached (taken out of its chain, or
// not yet added to one) the walk stops at that step's child chain, which
// is returned even though IsRoot reports false for it. Use Detached to
// tell the two apart. A detached tree reads as unbound and Building, and
// BindEngine and Transition reject it.
func (c *Chain) Root() *Chain {
	cur := c
	for cur.owner != nil && cur.owner.owner != nil {
		cur = cur.owner.owner
	}
	return cur
}

// Detached reports whether the chain hangs under a step that belongs to no
// chain. Root chains are never detached.
func (c *Chain) Detached() bool { return !c.Root().IsRoot() }

// Depth returns the number of owning steps between c and Root. A child
// chain of a detached step has depth 0, like a root chain.
func (c *Chain) Depth() int {
	depth := 0
	for cur := c; cur.owner != nil && cur.owner.owner != nil; cur = cur.owner.owner {
		depth++
	}
	return depth
}

// Engine returns the engine the root chain is bound to.
func (c *Chain) Engine() EngineKind { return c.Root().engine }

// State returns the root chain's lifecycle state.
func (c *Chain) State() State { return c.Root().state }

// Frozen reports whether the chain tree has left the Building state.
func (c *Chain) Frozen() bool { return c.State() != StateBuilding }

// BindEngine sets the engine selector on the root chain. Binding the same
// engine again is a no-op; binding a different one fails.
func (c *Chain) BindEngine(kind EngineKind) error {
	root := c.Root()
	if !root.IsRoot() {
		return ErrChainDetached
	}
	if kind == EngineUnset {
		return fmt.Errorf("%w: cannot bind unset engine", ErrEngineBound)
	}
	if root.engine != EngineUnset && root.engine != kind {
		return fmt.Errorf("%w: bound to %s, requested %s", ErrEngineBound, root.engine, kind)
	}
	if root.engine == EngineUnset && root.state != StateBuilding {
		return ErrChainFrozen
	}
	root.engine = kind
	return nil
}

// Transition advances the root lifecycle. Allowed transitions are
// Building->Compiled, Compiled->Executing, Executing->Done, and any
// non-terminal state -> Failed.
func (c *Chain) Transition(to State) error {
	root := c.Root()
	if !root.IsRoot() {
		return ErrChainDetached
	}
	from := root.state
	ok := false
	switch to {
	case StateCompiled:
		ok = from == StateBuilding
	case StateExecuting:
		ok = from == StateCompiled
	case StateDone:
		ok = from == StateExecuting
	case StateFailed:
		ok = from != StateDone && from != StateFailed
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	root.state = to
	return nil
}

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Steps returns a snapshot of the steps in order.
func (c *Chain) Steps() []*Step { return slices.Clone(c.steps) }

// At returns the step at index i, or nil.
func (c *Chain) At(i int) *Step {
	if i < 0 || i >= len(c.steps) {
		return nil
	}
	return c.steps[i]
}

// First returns the first step, or nil for an empty chain.
func (c *Chain) First() *Step { return c.At(0) }

// Last returns the last step, or nil for an empty chain.
func (c *Chain) Last() *Step { return c.At(len(c.steps) - 1) }

// IndexOf returns the position of s, or -1 when s is not in the chain.
func (c *Chain) IndexOf(s *Step) int {
	if s == nil || s.owner != c {
		return -1
	}
	return slices.Index(c.steps, s)
}

// Next returns the successor of s, or nil at the end of the chain or when
// s is not in the chain.
func (c *Chain) Next(s *Step) *Step {
	i := c.IndexOf(s)
	if i < 0 {
		return nil
	}
	return c.At(i + 1)
}

// Prev returns the predecessor of s, or nil at the start of the chain or
// when s is not in the chain.
func (c *Chain) Prev(s *Step) *Step {
	i := c.IndexOf(s)
	if i <= 0 {
		return nil
	}
	return c.steps[i-1]
}

// StepsOfCategory returns the steps of a category in left-to-right order.
// Only this chain is scanned; use Walk for nested chains.
func (c *Chain) StepsOfCategory(cat Category) []*Step {
	var out []*Step
	for _, s := range c.steps {
		if s.Category() == cat {
			out = append(out, s)
		}
	}
	return out
}

// StepsOfKind returns the steps of a kind in left-to-right order.
func (c *Chain) StepsOfKind(kind Kind) []*Step {
	var out []*Step
	for _, s := range c.steps {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// FirstOfKind returns the leftmost step of a kind, or nil.
func (c *Chain) FirstOfKind(kind Kind) *Step {
	for _, s := range c.steps {
		if s.kind == kind {
			return s
		}
	}
	return nil
}

// Add appends s to the chain.
func (c *Chain) Add(s *Step) error {
	return c.AddAt(s, len(c.steps))
}

// AddAt inserts s so that it ends up at position index.
func (c *Chain) AddAt(s *Step, index int) error {
	if err := c.checkInsert(s, index); err != nil {
		return err
	}
	c.steps = slices.Insert(c.steps, index, s)
	s.owner = c
	return nil
}

// Insert is AddAt under the name used by rewrite rules.
func (c *Chain) Insert(s *Step, index int) error {
	return c.AddAt(s, index)
}

// Remove unlinks s and discards its child chains.
func (c *Chain) Remove(s *Step) error {
	if _, err := c.Take(s); err != nil {
		return err
	}
	s.discard()
	return nil
}

// Take unlinks s from the chain and returns it with its children intact,
// ready to be added to another chain.
func (c *Chain) Take(s *Step) (*Step, error) {
	if err := c.checkMutable(); err != nil {
		return nil, err
	}
	i := c.IndexOf(s)
	if i < 0 {
		return nil, ErrStepNotInChain
	}
	c.steps = slices.Delete(c.steps, i, i+1)
	s.owner = nil
	return s, nil
}

// Replace swaps old for replacement at the same position. The old step's
// children are discarded.
func (c *Chain) Replace(old, replacement *Step) error {
	i := c.IndexOf(old)
	if i < 0 {
		if err := c.checkMutable(); err != nil {
			return err
		}
		return ErrStepNotInChain
	}
	if err := c.checkInsert(replacement, i); err != nil {
		return err
	}
	c.steps[i] = replacement
	replacement.owner = c
	old.discard()
	return nil
}

// Walk visits every step in c and in all nested chains, depth-first and
// left to right: a step is visited before the steps of its children.
// Returning false from fn stops the walk.
func (c *Chain) Walk(fn func(s *Step) bool) bool {
	for _, s := range slices.Clone(c.steps) {
		if !fn(s) {
			return false
		}
		for _, child := range s.children {
			if !child.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Chains returns c followed by every nested chain, depth-first.
func (c *Chain) Chains() []*Chain {
	out := []*Chain{c}
	for _, s := range c.steps {
		for _, child := range s.children {
			out = append(out, child.Chains()...)
		}
	}
	return out
}

// Clone deep-copies the chain with fresh step handles. The copy is a root
// chain in the Building state with no engine bound.
func (c *Chain) Clone() *Chain {
	cp := &Chain{steps: make([]*Step, 0, len(c.steps))}
	for _, s := range c.steps {
		sc := s.clone()
		sc.owner = cp
		cp.steps = append(cp.steps, sc)
	}
	return cp
}

func (c *Chain) checkMutable() error {
	if c.Frozen() {
		return ErrChainFrozen
	}
	return nil
}

func (c *Chain) checkInsert(s *Step, index int) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if s == nil {
		return ErrNilStep
	}
	if s.owner != nil {
		return ErrStepOwned
	}
	if index < 0 || index > len(c.steps) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, len(c.steps))
	}
	for cur := c; cur.owner != nil; {
		if cur.owner == s {
			return ErrOwnershipCycle
		}
		if cur.owner.owner == nil {
			break
		}
		cur = cur.owner.owner
	}
	return nil
}

// discard releases every step in the chain and detaches it from its owner.
func (c *Chain) discard() {
	for _, s := range c.steps {
		s.discard()
	}
	c.steps = nil
	c.owner = nil
}
