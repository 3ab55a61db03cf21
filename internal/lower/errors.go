package lower

import (
	"errors"
	"fmt"
)

// InvariantError reports a segment that carries a filter or ordering without
// being a collection.
type InvariantError struct {
	Index    int
	Property string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("segment %d (%s): filter or ordering on a non-collection navigation", e.Index, e.Property)
}

// ConflictError reports two paths that attach different filters (or
// different orderings) to the same collection navigation of one query.
type ConflictError struct {
	// Navigation is the shared property chain, such as "LineItems.Discounts".
	Navigation string
	// Position is the segment index of the conflicting navigation.
	Position int
	// First and Second are the canonical renderings of the two paths.
	First  string
	Second string
	// What is "filter" or "ordering".
	What string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting %s on %s: %s vs %s", e.What, e.Navigation, e.First, e.Second)
}

// IsConflict returns true if err is a ConflictError.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsInvariant returns true if err is an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
