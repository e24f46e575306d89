// Package computer implements the Computer engine contract: vertex
// programs executed in bulk-synchronous supersteps.
//
// A job runs a VertexProgram once per active vertex per superstep. Vertices
// communicate only through messages, which are delivered at the barrier
// that ends the superstep, and through Memory, whose writes also become
// visible only after the barrier. An optional Master hook runs between
// supersteps. The job ends when every vertex has voted to halt with no
// messages pending, when the program asks to terminate, or with an error
// once computer.max_supersteps supersteps have run.
//
// Runner is a local reference backend: it splits the vertex set into
// contiguous partitions and runs each partition in its own goroutine.
// Partitioning transport and fault tolerance belong to a real cluster
// backend and are not modelled here.
//
// TraversalProgram runs a chain compiled for the Computer engine. Its
// traversers travel between vertices as messages until they reach the
// first barrier step of the root chain; the rest of the chain then runs in
// the Standard engine over the halted traversers.
package computer
