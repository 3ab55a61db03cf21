package walker

import "github.com/roach88/eagerpath/internal/path"

// Reduce folds a trace into a Path in one forward pass. A filter or sort
// step attaches to the property step it follows, which must be a collection;
// [each] between them passes the attachment through, a cast does not. The
// attachment never survives past the next property.
//
// Reduce fails on an unresolved property, on field or method access, on a filter or
// sort that does not follow a collection, on a second filter for the same
// navigation, and on a ThenBy without a primary ordering.
func Reduce(t *path.Trace) (path.Path, error) {
	var (
		segs []path.Segment
		cast bool
	)

	for i, s := range t.Steps {
		switch s.Kind {
		case path.StepProperty:
			if !s.Resolved {
				owner := s.Owner
				if owner == "" {
					owner = "an unresolved type"
				}
				return path.Path{}, newError(KindUnresolvedProperty, s.Pos, i, "%s has no property %s", owner, s.Name)
			}
			if s.IsField || s.IsMethod {
				return path.Path{}, newError(KindFieldAccess, s.Pos, i, "%s.%s is a %s, not a property", s.Owner, s.Name, s.MemberWord())
			}
			segs = append(segs, path.Segment{
				Property:     s.Name,
				SourceType:   s.Owner,
				TargetType:   s.Type,
				IsCollection: s.Collection,
			})
			cast = false

		case path.StepCast:
			cast = true

		case path.StepFilter, path.StepSort:
			if len(segs) == 0 || !segs[len(segs)-1].IsCollection || cast {
				return path.Path{}, newError(KindNonCollection, s.Pos, i, "%s applies only to a collection navigation", s.Name)
			}
			last := &segs[len(segs)-1]
			if err := attach(last, s, i); err != nil {
				return path.Path{}, err
			}
		}
	}

	return path.New(t.RootType, segs), nil
}

func attach(seg *path.Segment, s path.Step, i int) error {
	if s.Kind == path.StepFilter {
		if seg.Filter != nil {
			return newError(KindDuplicateFilter, s.Pos, i, "%s already has a filter", seg.Property)
		}
		seg.Filter = s.Lambda
		return nil
	}

	switch {
	case s.Secondary && len(seg.Orderings) == 0:
		return newError(KindUnsupportedShape, s.Pos, i, "%s without a preceding OrderBy on %s", s.Name, seg.Property)
	case !s.Secondary && len(seg.Orderings) > 0:
		return newError(KindUnsupportedShape, s.Pos, i, "%s after an ordering on %s; use ThenBy", s.Name, seg.Property)
	}
	seg.Orderings = append(seg.Orderings, path.Ordering{Key: s.Lambda, Descending: s.Descending})
	return nil
}
