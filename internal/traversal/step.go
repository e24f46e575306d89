package traversal

import (
	"fmt"
	"slices"

	"github.com/roach88/traverse/internal/ir"
)

// Category is the capability class of a step. Strategies and engines
// dispatch on it rather than on concrete kinds wherever they can.
type Category int

const (
	// CategoryStart marks start-of-traversal steps. A start step is never
	// a legal conjunction operand.
	CategoryStart Category = iota + 1
	// CategoryFilter steps pass or drop each input element.
	CategoryFilter
	// CategoryMap steps emit zero or more outputs per input (flat-map).
	CategoryMap
	// CategorySideEffect steps record state and pass input through.
	CategorySideEffect
	// CategoryMarker steps are unresolved build-time placeholders.
	CategoryMarker
	// CategoryBarrier steps consume (part of) their whole input stream.
	CategoryBarrier
)

var categoryNames = map[Category]string{
	CategoryStart:      "start",
	CategoryFilter:     "filter",
	CategoryMap:        "map",
	CategorySideEffect: "sideEffect",
	CategoryMarker:     "marker",
	CategoryBarrier:    "barrier",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Kind identifies a concrete step type.
type Kind int

const (
	KindStart Kind = iota + 1
	KindV
	KindOut
	KindIn
	KindBoth
	KindOutE
	KindInE
	KindInV
	KindOutV
	KindHas
	KindHasTraversal
	KindWhere
	KindValues
	KindCount
	KindIs
	KindRange
	KindIdentity
	KindStore
	KindAndMarker
	KindOrMarker
	KindAnd
	KindOr
)

type kindInfo struct {
	name     string
	category Category
}

var kinds = map[Kind]kindInfo{
	KindStart:        {"start", CategoryStart},
	KindV:            {"V", CategoryStart},
	KindOut:          {"out", CategoryMap},
	KindIn:           {"in", CategoryMap},
	KindBoth:         {"both", CategoryMap},
	KindOutE:         {"outE", CategoryMap},
	KindInE:          {"inE", CategoryMap},
	KindInV:          {"inV", CategoryMap},
	KindOutV:         {"outV", CategoryMap},
	KindHas:          {"has", CategoryFilter},
	KindHasTraversal: {"hasTraversal", CategoryFilter},
	KindWhere:        {"where", CategoryFilter},
	KindValues:       {"values", CategoryMap},
	KindCount:        {"count", CategoryBarrier},
	KindIs:           {"is", CategoryFilter},
	KindRange:        {"range", CategoryBarrier},
	KindIdentity:     {"identity", CategoryMap},
	KindStore:        {"store", CategorySideEffect},
	KindAndMarker:    {"andMarker", CategoryMarker},
	KindOrMarker:     {"orMarker", CategoryMarker},
	KindAnd:          {"and", CategoryFilter},
	KindOr:           {"or", CategoryFilter},
}

// kindsByName is the reverse index used by ParseKind.
var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, info := range kinds {
		m[info.name] = k
	}
	return m
}()

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Category returns the fixed category of the kind.
func (k Kind) Category() Category {
	return kinds[k].category
}

// ParseKind resolves a kind from its rendered name (e.g. "outE").
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// IsMarker reports whether k is an unresolved conjunction marker.
func (k Kind) IsMarker() bool {
	return k == KindAndMarker || k == KindOrMarker
}

// Unbounded is the High value of a range with no upper bound.
const Unbounded int64 = -1

// Step is one node of a chain.
//
// A step is owned by at most one chain at a time and exclusively owns its
// child chains. Its position is derived from the owning chain on demand;
// the step itself holds no predecessor or successor references.
type Step struct {
	id       StepID
	kind     Kind
	labels   []string
	args     []string
	value    ir.IRValue
	pred     *P
	low      int64
	high     int64
	children []*Chain
	owner    *Chain

	// materialized marks an identity step appended to keep an end label
	// addressable. See strategy.LabeledEndStrategy.
	materialized bool
}

// NewStep creates an unowned step of the given kind.
// Args carry edge labels (out/in/both/...), property keys (values) or the
// side-effect key (store).
func NewStep(kind Kind, args ...string) *Step {
	return &Step{
		id:   nextStepID(),
		kind: kind,
		args: slices.Clone(args),
		high: Unbounded,
	}
}

// NewHasStep creates a has(key, value) property equality filter.
func NewHasStep(key string, value ir.IRValue) *Step {
	s := NewStep(KindHas, key)
	s.value = value
	return s
}

// NewIsStep creates an is(predicate) filter.
func NewIsStep(p P) *Step {
	s := NewStep(KindIs)
	s.pred = &p
	return s
}

// NewRangeStep creates a range[low, high) barrier. Use Unbounded for no upper bound.
func NewRangeStep(low, high int64) *Step {
	s := NewStep(KindRange)
	s.low = low
	s.high = high
	return s
}

// NewIdentityStep creates an identity step carrying the given labels.
func NewIdentityStep(labels ...string) *Step {
	s := NewStep(KindIdentity)
	s.AddLabels(labels...)
	return s
}

// NewMaterializedIdentityStep creates the identity step appended by label
// materialization. It is distinguishable from a user identity step.
func NewMaterializedIdentityStep(labels ...string) *Step {
	s := NewIdentityStep(labels...)
	s.materialized = true
	return s
}

// NewParentStep creates a step parameterized by child chains, such as
// hasTraversal, where, and, or. Each child must be unowned; ownership is
// transferred to the new step.
func NewParentStep(kind Kind, children ...*Chain) (*Step, error) {
	s := NewStep(kind)
	for _, child := range children {
		if child != nil && child.owner != nil {
			return nil, ErrChainOwned
		}
	}
	for _, child := range children {
		if child == nil {
			child = NewChain()
		}
		child.owner = s
		s.children = append(s.children, child)
	}
	return s, nil
}

// ID returns the step handle.
func (s *Step) ID() StepID { return s.id }

// Kind returns the step kind.
func (s *Step) Kind() Kind { return s.kind }

// Category returns the category of the step's kind.
func (s *Step) Category() Category { return s.kind.Category() }

// Labels returns a copy of the step labels.
func (s *Step) Labels() []string { return slices.Clone(s.labels) }

// HasLabels reports whether the step carries at least one label.
func (s *Step) HasLabels() bool { return len(s.labels) > 0 }

// HasLabel reports whether the step carries the given label.
func (s *Step) HasLabel(label string) bool { return slices.Contains(s.labels, label) }

// AddLabels appends labels, ignoring duplicates and empty strings.
func (s *Step) AddLabels(labels ...string) {
	for _, l := range labels {
		if l != "" && !slices.Contains(s.labels, l) {
			s.labels = append(s.labels, l)
		}
	}
}

// Args returns a copy of the step arguments.
func (s *Step) Args() []string { return slices.Clone(s.args) }

// Value returns the has() comparison value, or nil.
func (s *Step) Value() ir.IRValue { return s.value }

// Predicate returns the is() predicate, or nil.
func (s *Step) Predicate() *P { return s.pred }

// Bounds returns the range [low, high). High is Unbounded when open.
func (s *Step) Bounds() (low, high int64) { return s.low, s.high }

// Children returns the owned child chains. The slice is a copy; the chains are live.
func (s *Step) Children() []*Chain { return slices.Clone(s.children) }

// Child returns child chain i, or nil.
func (s *Step) Child(i int) *Chain {
	if i < 0 || i >= len(s.children) {
		return nil
	}
	return s.children[i]
}

// Owner returns the chain holding the step, or nil when detached.
func (s *Step) Owner() *Chain { return s.owner }

// Materialized reports whether the step was appended by label materialization.
func (s *Step) Materialized() bool { return s.materialized }

// discard releases the step's children recursively. After discard no chain
// reachable from the step refers back to it.
func (s *Step) discard() {
	for _, child := range s.children {
		child.discard()
	}
	s.children = nil
	s.owner = nil
}

// clone deep-copies the step with a fresh handle and no owner.
func (s *Step) clone() *Step {
	cp := &Step{
		id:           nextStepID(),
		kind:         s.kind,
		labels:       slices.Clone(s.labels),
		args:         slices.Clone(s.args),
		value:        s.value,
		low:          s.low,
		high:         s.high,
		materialized: s.materialized,
	}
	if s.pred != nil {
		p := *s.pred
		cp.pred = &p
	}
	for _, child := range s.children {
		c := child.Clone()
		c.owner = cp
		cp.children = append(cp.children, c)
	}
	return cp
}
