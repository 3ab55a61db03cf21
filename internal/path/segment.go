// Package path defines the segment model of an eager-loading path: one
// resolved navigation step per Segment, and the raw step Trace the walker
// recovers before reduction.
package path

import (
	"slices"
	"strings"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/ir"
)

// Segment is one navigation step of a Path.
//
// TargetType is the element type for a collection navigation and the
// referenced type for a single reference. Filter and Orderings are only legal
// when IsCollection is true; they modify this segment's navigation, never a
// later one.
type Segment struct {
	Property     string
	SourceType   string
	TargetType   string
	IsCollection bool
	Filter       *expr.Lambda
	Orderings    []Ordering
}

// Ordering is one sort key, in declared (first-key-first) order.
type Ordering struct {
	Key        *expr.Lambda
	Descending bool
}

// Path is an ordered sequence of Segments from a root type to a terminal
// navigation target. Paths are immutable after creation.
type Path struct {
	root     string
	segments []Segment
}

// New creates a Path. The segments are copied.
func New(root string, segments []Segment) Path {
	cp := make([]Segment, len(segments))
	for i, s := range segments {
		s.Orderings = slices.Clone(s.Orderings)
		cp[i] = s
	}
	return Path{root: root, segments: cp}
}

// Root returns the root type name.
func (p Path) Root() string { return p.root }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// Segment returns segment i.
func (p Path) Segment(i int) Segment {
	s := p.segments[i]
	s.Orderings = slices.Clone(s.Orderings)
	return s
}

// Segments returns a copy of the segment list.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	for i := range p.segments {
		out[i] = p.Segment(i)
	}
	return out
}

// Equal reports structural equality: same root and, segment by segment, the
// same navigation, with filter and key lambdas compared by expr.Equal.
func (p Path) Equal(q Path) bool {
	if p.root != q.root || len(p.segments) != len(q.segments) {
		return false
	}
	for i := range p.segments {
		if !SegmentEqual(p.segments[i], q.segments[i]) {
			return false
		}
	}
	return true
}

// SegmentEqual reports whether two segments navigate the same member with
// structurally equal filter and orderings.
func SegmentEqual(a, b Segment) bool {
	if a.Property != b.Property || a.SourceType != b.SourceType ||
		a.TargetType != b.TargetType || a.IsCollection != b.IsCollection {
		return false
	}
	return expr.LambdaEqual(a.Filter, b.Filter) && OrderingsEqual(a.Orderings, b.Orderings)
}

// OrderingsEqual compares two ordering lists key by key.
func OrderingsEqual(a, b []Ordering) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Descending != b[i].Descending || !expr.LambdaEqual(a[i].Key, b[i].Key) {
			return false
		}
	}
	return true
}

// Encode renders the path as a canonical IR value.
func (p Path) Encode() ir.IRValue {
	segs := make(ir.IRArray, len(p.segments))
	for i, s := range p.segments {
		obj := ir.Tagged("segment",
			"property", ir.IRString(s.Property),
			"source", ir.IRString(s.SourceType),
			"target", ir.IRString(s.TargetType),
			"collection", ir.IRBool(s.IsCollection),
		)
		if s.Filter != nil {
			obj["filter"] = expr.Encode(s.Filter)
		}
		if len(s.Orderings) > 0 {
			ords := make(ir.IRArray, len(s.Orderings))
			for j, o := range s.Orderings {
				ords[j] = ir.Tagged("ordering", "key", expr.Encode(o.Key), "descending", ir.IRBool(o.Descending))
			}
			obj["orderings"] = ords
		}
		segs[i] = obj
	}
	return ir.Tagged("path", "root", ir.IRString(p.root), "segments", segs)
}

// Digest returns the content-addressed identity of the path.
func (p Path) Digest() ir.Digest {
	return ir.MustHashValue(ir.DomainPath, p.Encode())
}

// Hash returns a 64-bit hash consistent with Equal.
func (p Path) Hash() uint64 {
	return p.Digest().Uint64()
}

// String renders the path in canonical DSL form with root parameter x:
//
//	x.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each].Product
//
// A segment whose source type differs from the previous target renders as a
// pointer cast: x.Payment.(*CardPayment).Issuer.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("x")
	from := p.root
	for i, s := range p.segments {
		if s.SourceType != "" && s.SourceType != from {
			b.WriteString(".(*")
			b.WriteString(s.SourceType)
			b.WriteByte(')')
		}
		from = s.TargetType
		b.WriteByte('.')
		b.WriteString(s.Property)
		if s.Filter != nil {
			b.WriteString(".Where(")
			b.WriteString(expr.Format(s.Filter))
			b.WriteByte(')')
		}
		for j, o := range s.Orderings {
			b.WriteByte('.')
			b.WriteString(SortVerb(j > 0, o.Descending))
			b.WriteByte('(')
			b.WriteString(expr.Format(o.Key))
			b.WriteByte(')')
		}
		if s.IsCollection && i < len(p.segments)-1 {
			b.WriteString("[each]")
		}
	}
	return b.String()
}

// SortVerb names the sort call for a key: the primary verb for the first key,
// the "then" verb for later keys.
func SortVerb(secondary, descending bool) string {
	switch {
	case !secondary && !descending:
		return "OrderBy"
	case !secondary:
		return "OrderByDescending"
	case !descending:
		return "ThenBy"
	}
	return "ThenByDescending"
}
