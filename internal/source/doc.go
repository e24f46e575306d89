// Package source reads traversals written in CUE and builds step chains
// from them.
//
// A source file declares named traversals under the traversal field:
//
//	traversal: lonely: {
//		engine: "standard"
//		steps: [
//			{step: "V"},
//			{step: "where", children: [[
//				{step: "out", args: ["knows"]},
//				{step: "count"},
//				{step: "is", predicate: {compare: "eq", value: 0}},
//			]]},
//		]
//	}
//
// Every traversal is unified with an embedded schema before it is decoded,
// so unknown fields, floats and malformed predicates are rejected with the
// position of the offending value. Step names are the rendered kind names
// ("out", "hasTraversal", ...). "and" and "or" without children are the
// infix markers resolved at compile time.
package source
