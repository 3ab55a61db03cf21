package walker

import (
	"errors"
	"fmt"
	"go/token"
)

// ErrorKind categorizes walk failures.
type ErrorKind string

const (
	// KindSyntax indicates the expression text is not a Go expression.
	KindSyntax ErrorKind = "SYNTAX"

	// KindUnsupportedShape indicates a token the walker does not recognize.
	KindUnsupportedShape ErrorKind = "UNSUPPORTED_SHAPE"

	// KindUnknownType indicates the root type is not known to the universe.
	KindUnknownType ErrorKind = "UNKNOWN_TYPE"

	// KindUnresolvedProperty indicates a member that does not exist on the
	// current type.
	KindUnresolvedProperty ErrorKind = "UNRESOLVED_PROPERTY"

	// KindFieldAccess indicates navigation through a field or method instead of a
	// property.
	KindFieldAccess ErrorKind = "FIELD_ACCESS"

	// KindNonCollection indicates a filter or sort call where the current
	// step is not a collection.
	KindNonCollection ErrorKind = "NON_COLLECTION"

	// KindDuplicateFilter indicates two filters on one navigation.
	KindDuplicateFilter ErrorKind = "DUPLICATE_FILTER"

	// KindVariableBound indicates the expression is held in a variable rather
	// than written inline, so it cannot be compiled ahead of time.
	KindVariableBound ErrorKind = "VARIABLE_BOUND"

	// KindClosureCapture indicates a filter or sort lambda that references a
	// variable from its enclosing scope.
	KindClosureCapture ErrorKind = "CLOSURE_CAPTURE"
)

// WalkError is a structured walk failure.
//
// Failures fall into two classes. Hard failures are DSL misuse and should be
// reported to the author. Soft failures (Soft() == true) mean only that the
// expression cannot be compiled ahead of time; a caller generating code
// should fall back to runtime interpretation.
type WalkError struct {
	// Kind identifies the failure category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Pos locates the offending token within the expression.
	Pos token.Pos

	// Step is the index of the offending trace step, or -1.
	Step int
}

// Error implements the error interface.
func (e *WalkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Soft reports whether the failure is a fallback signal rather than misuse.
func (e *WalkError) Soft() bool {
	return e.Kind == KindVariableBound || e.Kind == KindClosureCapture
}

// IsSoft returns true if err is a soft walk failure.
// Uses errors.As to handle wrapped errors.
func IsSoft(err error) bool {
	var we *WalkError
	if errors.As(err, &we) {
		return we.Soft()
	}
	return false
}

// IsKind returns true if err is a WalkError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var we *WalkError
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, pos token.Pos, step int, format string, args ...any) *WalkError {
	return &WalkError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos, Step: step}
}
