// Package expr provides the predicate and sort-key AST used inside path
// expressions, together with structural equality and hashing.
//
// Filter and ordering lambdas are written as Go function literals:
//
//	func(li LineItem) bool { return li.Price > 100 }
//
// FromGo converts the go/ast form into the sealed Node family defined here.
// Conversion rejects closure capture: every identifier must be a bound lambda
// parameter, a predeclared constant or builtin, or a name the caller declared
// static (a package qualifier such as "time", or a package-level constant).
//
// EQUALITY:
//
// Equal compares two trees in lock-step. Parameters compare by position, not
// by spelling, so these two lambdas are equal:
//
//	func(li LineItem) bool { return li.Price > 100 }
//	func(x LineItem) bool  { return x.Price > 100 }
//
// Nested lambdas push their parameters onto the mapping without discarding
// the outer entries. Hash is consistent with Equal: parameters are encoded by
// binding level, the tree is rendered as canonical JSON (see package ir), and
// the bytes are hashed under ir.DomainExpr.
package expr
