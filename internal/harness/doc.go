// Package harness provides conformance testing for compiled traversals.
//
// A scenario names a traversal in a CUE source file, the engines to run it
// on, and assertions over what each engine did: the rendered compiled
// chain, the results, and store side effects.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lonely_people
//	description: "People who know nobody, with the nested count bounded"
//	source: ../traversals.cue
//	traversal: lonely
//	engines: [standard, computer]
//	assertions:
//	  - type: compiled
//	    expect: V().has(label,person).where(out(knows).range(0,1).count().is(eq(0)))
//	  - type: results
//	    values: ["v[2]", "v[4]", "v[6]"]
//	  - type: engines_agree
//
// source and graph paths resolve relative to the scenario file. When graph
// is omitted the built-in modern graph is used.
//
// # Assertion Types
//
//   - compiled: the rendered compiled chain equals expect
//   - results: the rendered results equal values (a multiset unless ordered)
//   - result_count: exactly count results
//   - step_present / step_absent: a step kind occurs (or not) in the chain tree
//   - side_effect: store(key) collected values
//   - engines_agree: every engine produced the same results
//
// Assertions apply to every engine unless engine narrows them to one.
//
// # Deterministic Testing
//
// Every engine gets a freshly built chain and a fresh graph. Computer jobs
// run with a fixed job id and a fixed partition count, and golden snapshots
// sort results, so snapshots are identical across runs.
package harness
