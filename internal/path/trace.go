package path

import (
	"go/token"
	"strings"

	"github.com/roach88/eagerpath/internal/expr"
)

// StepKind classifies a raw token of a path expression.
type StepKind int

const (
	// StepProperty is a member access: x.Name.
	StepProperty StepKind = iota
	// StepIterate is the iteration marker: x[each] or x.Each().
	StepIterate
	// StepForward is the forward-through-nullable marker: x[to] or x.To().
	StepForward
	// StepNullForgive is the null-forgiving marker: (*x).
	StepNullForgive
	// StepFilter is a Where call.
	StepFilter
	// StepSort is an OrderBy, OrderByDescending, ThenBy or ThenByDescending call.
	StepSort
	// StepCast is a type assertion: x.(*T).
	StepCast
)

var stepKindNames = [...]string{
	StepProperty:    "property",
	StepIterate:     "each",
	StepForward:     "to",
	StepNullForgive: "null-forgive",
	StepFilter:      "filter",
	StepSort:        "sort",
	StepCast:        "cast",
}

func (k StepKind) String() string {
	if int(k) < len(stepKindNames) {
		return stepKindNames[k]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k StepKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Step is one raw token of a path expression, in root-to-leaf order, with the
// resolution facts the walker established for it.
type Step struct {
	Kind StepKind
	Pos  token.Pos

	// Name is the member name (property), the type name (cast) or the sort verb.
	Name string

	// Property facts. Owner is the type the member was looked up on; it is
	// empty once an earlier step failed to resolve.
	Owner      string
	Resolved   bool
	IsField    bool
	IsMethod   bool
	Type       string
	Collection bool
	Nullable   bool

	// Filter and sort facts. Unresolved lists predicate member chains that do
	// not resolve on the element type.
	Lambda     *expr.Lambda
	Descending bool
	Secondary  bool
	Unresolved []expr.Chain

	// Cast facts. From is the static type before the cast; Pointer records
	// an assertion to *T rather than T.
	From       string
	Compatible bool
	Pointer    bool
}

// MemberWord names how a property step's member is declared: "field",
// "method" or "property".
func (s Step) MemberWord() string {
	switch {
	case s.IsField:
		return "field"
	case s.IsMethod:
		return "method"
	}
	return "property"
}

// Trace is the raw step sequence of one path expression.
type Trace struct {
	// Root is the name of the root parameter as written.
	Root string
	// RootType is the static type of the root parameter.
	RootType string
	// Source is the expression text, when the trace was parsed from text.
	Source string
	Steps  []Step
}

// LastProperty returns the index of the last property step before i, or -1.
func (t *Trace) LastProperty(i int) int {
	for j := i - 1; j >= 0; j-- {
		if t.Steps[j].Kind == StepProperty {
			return j
		}
	}
	return -1
}

// String renders the trace back to DSL text using bracket markers.
func (t *Trace) String() string {
	var b strings.Builder
	b.WriteString(t.Root)
	for _, s := range t.Steps {
		writeStep(&b, s)
	}
	return b.String()
}

// Rewrite renders the trace with the marker at step i removed, or with a
// marker of kind k inserted after step i when k is not the kind of step i.
// Used to build suggested fixes.
func (t *Trace) Rewrite(i int, insert StepKind) string {
	var b strings.Builder
	b.WriteString(t.Root)
	for j, s := range t.Steps {
		if j == i && s.Kind == insert {
			continue
		}
		writeStep(&b, s)
		if j == i && s.Kind != insert {
			writeStep(&b, Step{Kind: insert})
		}
	}
	return b.String()
}

func writeStep(b *strings.Builder, s Step) {
	switch s.Kind {
	case StepProperty:
		b.WriteByte('.')
		b.WriteString(s.Name)
	case StepIterate:
		b.WriteString("[each]")
	case StepForward:
		b.WriteString("[to]")
	case StepNullForgive:
		// Dereference wraps everything written so far.
		cur := b.String()
		b.Reset()
		b.WriteString("(*")
		b.WriteString(cur)
		b.WriteByte(')')
	case StepFilter:
		b.WriteString(".Where(")
		b.WriteString(expr.Format(s.Lambda))
		b.WriteByte(')')
	case StepSort:
		b.WriteByte('.')
		b.WriteString(SortVerb(s.Secondary, s.Descending))
		b.WriteByte('(')
		b.WriteString(expr.Format(s.Lambda))
		b.WriteByte(')')
	case StepCast:
		b.WriteString(".(")
		if s.Pointer {
			b.WriteByte('*')
		}
		b.WriteString(s.Name)
		b.WriteByte(')')
	}
}
