package lower

import (
	"fmt"
	"strings"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/path"
)

// Compose checks that paths can be loaded together against one root query.
//
// Only one filter and one ordering may be attached to a given collection
// navigation within a query. Two paths that agree on property names up to
// and including a collection segment at the same position conflict when both
// filter it with structurally unequal predicates, or both order it with
// different key lists. A path that leaves the navigation unfiltered or
// unordered does not conflict.
func Compose(paths ...path.Path) error {
	for i := range paths {
		if paths[i].Root() != paths[0].Root() {
			return fmt.Errorf("cannot compose paths rooted at %s and %s", paths[0].Root(), paths[i].Root())
		}
		for j := 0; j < i; j++ {
			if err := composePair(paths[j], paths[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func composePair(a, b path.Path) error {
	n := min(a.Len(), b.Len())
	var nav []string

	for k := 0; k < n; k++ {
		sa, sb := a.Segment(k), b.Segment(k)
		if sa.Property != sb.Property {
			return nil
		}
		nav = append(nav, sa.Property)
		if !sa.IsCollection || !sb.IsCollection {
			continue
		}

		conflict := func(what string) error {
			return &ConflictError{
				Navigation: strings.Join(nav, "."),
				Position:   k,
				First:      a.String(),
				Second:     b.String(),
				What:       what,
			}
		}
		if sa.Filter != nil && sb.Filter != nil && !expr.Equal(sa.Filter, sb.Filter) {
			return conflict("filter")
		}
		if len(sa.Orderings) > 0 && len(sb.Orderings) > 0 && !path.OrderingsEqual(sa.Orderings, sb.Orderings) {
			return conflict("ordering")
		}
	}
	return nil
}
