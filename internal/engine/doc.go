// Package engine implements the Standard engine: local, single-threaded,
// demand-pull execution of a compiled step chain.
//
// Each step becomes an iterator that pulls from the iterator of its
// predecessor. Nothing is computed until the caller asks for the next
// result, so a range step that has reached its upper bound stops the
// upstream scan and a count over a bounded range reads no more than it
// needs.
//
// Child chains (hasTraversal, where, and, or) are run per element through
// the same machinery, seeded with the element under test.
//
// Execution is not safe for concurrent use. The computer package runs one
// pipeline per vertex program instance and never shares one across
// goroutines.
package engine
