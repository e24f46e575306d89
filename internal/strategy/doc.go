// Package strategy compiles traversal chains by applying an ordered set of
// rewrite strategies.
//
// A Registry groups strategies by Phase (decoration, optimization,
// finalization, verification) and orders each phase topologically from the
// Prior/Posterior relations strategies declare, breaking ties by
// registration order. The derived order is memoized. Compile binds the
// chain to an engine, applies every strategy once, and freezes the chain.
//
// Built-in strategies:
//   - ConjunctionStrategy folds and/or markers into conjunction steps
//   - IdentityRemovalStrategy drops unlabeled identity steps
//   - RangeByIsCountStrategy bounds count().is(p) with a range step
//   - LabeledEndStrategy keeps a labeled terminal step addressable
//   - MarkerVerificationStrategy rejects chains that still hold markers
package strategy
