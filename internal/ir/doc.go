// Package ir provides the canonical value encoding used for structural identity.
//
// Every content-derived identity in eagerpath (predicate hashes, path hashes,
// persisted plan keys) is computed by encoding a value into the sealed IRValue
// family, serializing it with MarshalCanonical (RFC 8785), and hashing the bytes
// with a domain prefix.
//
// This package imports nothing internal. Higher layers (expr, path, store) build
// IRValues; ir never learns what they describe.
//
// Key design constraints:
//   - NO float types in canonical form; numeric literals travel as exact strings
//   - All object keys are sorted by UTF-16 code units
//   - Strings are NFC normalized at the serialization boundary
package ir
