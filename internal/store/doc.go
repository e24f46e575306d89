// Package store provides SQLite-backed storage for traversal graphs and
// compiled plans.
//
// The store holds:
//   - Vertices and Edges: a property graph implementing graph.Graph and
//     graph.Writer, so both engines can run against it
//   - Plans: compiled chains keyed by (input fingerprint, engine)
//
// # Critical Patterns
//
// Deterministic query results
//   - Every read orders by id ASC (vertices, edges) or seq ASC (plans)
//   - Engines rely on this for identical results across runs
//
// Canonical properties
//   - Property objects and encoded chains are stored as RFC 8785 canonical
//     JSON, so equal values are byte-equal on disk
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Edges must reference existing vertices
package store
