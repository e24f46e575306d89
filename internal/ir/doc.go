// Package ir provides the constrained value model and canonical encoding
// shared by every other traverse package.
//
// ir imports nothing internal. Traversal predicates, step payloads, graph
// properties and traverser objects are all ir.IRValue, so a compiled chain
// can be encoded canonically and fingerprinted without reflection.
//
// Key design constraints:
//   - NO float types: counts, bounds and ids are int64
//   - Canonical JSON follows RFC 8785 (sorted UTF-16 keys, NFC strings)
//   - Fingerprints are domain-separated SHA-256 over canonical bytes
package ir
