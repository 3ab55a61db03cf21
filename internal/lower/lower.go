package lower

import (
	"github.com/roach88/eagerpath/internal/path"
)

// Lower returns one directive per segment of p, in the same order.
//
// A filter or ordering on a non-collection segment violates the segment model
// and returns *InvariantError. This cannot happen for a path the walker
// reduced, so callers treat it as a bug rather than a user error.
func Lower(p path.Path) ([]Directive, error) {
	out := make([]Directive, 0, p.Len())
	param := p.Root()

	for i := 0; i < p.Len(); i++ {
		seg := p.Segment(i)
		if !seg.IsCollection && (seg.Filter != nil || len(seg.Orderings) > 0) {
			return nil, &InvariantError{Index: i, Property: seg.Property}
		}

		d := Directive{
			Kind:         KindRoot,
			Via:          ViaNone,
			Property:     seg.Property,
			ParamType:    param,
			SourceType:   seg.SourceType,
			TargetType:   seg.TargetType,
			IsCollection: seg.IsCollection,
		}
		if i > 0 {
			prev := p.Segment(i - 1)
			d.Kind = KindContinuation
			d.Via = ViaReference
			if prev.IsCollection {
				d.Via = ViaCollection
			}
		}

		if seg.Filter != nil {
			d.Ops = append(d.Ops, Op{Verb: "Where", Lambda: seg.Filter})
		}
		for j, o := range seg.Orderings {
			d.Ops = append(d.Ops, Op{Verb: path.SortVerb(j > 0, o.Descending), Lambda: o.Key})
		}

		out = append(out, d)
		param = seg.TargetType
	}
	return out, nil
}

// MustLower is like Lower but panics on an invariant violation.
func MustLower(p path.Path) []Directive {
	ds, err := Lower(p)
	if err != nil {
		panic(err)
	}
	return ds
}
