// Package lower turns a path into load directives: one nested include call
// per segment, in root-to-leaf order.
//
// Lowering is purely structural. Directive 0 is a root load. Directive i>0 is
// a continuation whose lambda parameter has segment i-1's target type and
// whose continuation kind is decided by segment i-1's IsCollection alone.
// Each directive's lambda body is the property access, then Where if the
// segment is filtered, then one sort call per ordering in declared order.
package lower

import (
	"fmt"
	"strings"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/ir"
	"github.com/roach88/eagerpath/internal/path"
)

// Kind distinguishes a root load from a continuation load.
type Kind int

const (
	KindRoot Kind = iota
	KindContinuation
)

func (k Kind) String() string {
	if k == KindRoot {
		return "root"
	}
	return "continuation"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Via records how the previous load was reached. Continuing from a
// collection and continuing from a single reference need structurally
// different calls.
type Via int

const (
	// ViaNone is the Via of a root load.
	ViaNone Via = iota
	ViaReference
	ViaCollection
)

func (v Via) String() string {
	switch v {
	case ViaReference:
		return "reference"
	case ViaCollection:
		return "collection"
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (v Via) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Op is one chained call of a directive's lambda body: Where or a sort verb.
type Op struct {
	Verb   string
	Lambda *expr.Lambda
}

// Directive is one lowered include.
type Directive struct {
	Kind Kind
	Via  Via

	// Property is the navigation loaded by this directive.
	Property string

	// ParamType is the lambda parameter type: the root type for a root load,
	// the previous segment's target type for a continuation.
	ParamType string

	// SourceType and TargetType are copied from the segment.
	SourceType   string
	TargetType   string
	IsCollection bool

	Ops []Op
}

// Verb names the include call for this directive.
func (d Directive) Verb() string {
	switch {
	case d.Kind == KindRoot:
		return "Include"
	case d.Via == ViaCollection:
		return "ThenIncludeMany"
	}
	return "ThenInclude"
}

// Body renders the lambda body with parameter x:
//
//	x.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).OrderBy(...)
func (d Directive) Body() string {
	var b strings.Builder
	b.WriteString("x.")
	b.WriteString(d.Property)
	for _, op := range d.Ops {
		b.WriteByte('.')
		b.WriteString(op.Verb)
		b.WriteByte('(')
		b.WriteString(expr.Format(op.Lambda))
		b.WriteByte(')')
	}
	return b.String()
}

// Render returns the directive as call text:
//
//	ThenInclude(func(x LineItem) any { return x.Product })
func (d Directive) Render() string {
	return fmt.Sprintf("%s(func(x %s) any { return %s })", d.Verb(), d.ParamType, d.Body())
}

// Filter returns the Where lambda, or nil.
func (d Directive) Filter() *expr.Lambda {
	for _, op := range d.Ops {
		if op.Verb == "Where" {
			return op.Lambda
		}
	}
	return nil
}

// Orderings returns the sort ops in declared order.
func (d Directive) Orderings() []path.Ordering {
	var out []path.Ordering
	for _, op := range d.Ops {
		if op.Verb == "Where" {
			continue
		}
		out = append(out, path.Ordering{Key: op.Lambda, Descending: strings.HasSuffix(op.Verb, "Descending")})
	}
	return out
}

// Encode renders the directive as a canonical IR value. Lambdas are stored as
// source text.
func (d Directive) Encode() ir.IRValue {
	ops := make(ir.IRArray, len(d.Ops))
	for i, op := range d.Ops {
		ops[i] = ir.Tagged("op", "verb", ir.IRString(op.Verb), "lambda", ir.IRString(expr.Format(op.Lambda)))
	}
	return ir.Tagged("directive",
		"load", ir.IRString(d.Kind.String()),
		"via", ir.IRString(d.Via.String()),
		"property", ir.IRString(d.Property),
		"param", ir.IRString(d.ParamType),
		"target", ir.IRString(d.TargetType),
		"collection", ir.IRBool(d.IsCollection),
		"ops", ops,
	)
}
