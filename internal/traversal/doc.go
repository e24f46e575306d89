// Package traversal implements the step chain a query is compiled from.
//
// A Chain is an ordered arena of Steps. Steps may own child chains
// (has-traversal filters, where clauses, and/or operands); ownership is
// exclusive, so removing a step discards everything nested under it.
// Predecessor and successor are derived from position on demand.
//
// Chains are built with the fluent Builder, rewritten in place by the
// strategy package, then frozen and handed to an engine. The lifecycle is
// one-way: Building, Compiled, Executing, Done (or Failed).
//
//	chain := traversal.New().
//		V().Out("knows").
//		HasTraversal(traversal.Anon().OutE("created").Count().Is(0)).
//		MustBuild()
package traversal
