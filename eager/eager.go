// Package eager turns path expressions into eager-loading calls on an ORM
// query.
//
// A path expression names everything to load in one line, in Go syntax:
//
//	q, err := eager.Include[Order](q,
//		"o.LineItems[each].Product",
//		"o.Customer[to].Address",
//		"o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })",
//	)
//
// is equivalent to the hand-written chain
//
//	q.Include("LineItems").ThenInclude("Product", eager.ViaCollection).
//		Include("Customer").ThenInclude("Address", eager.ViaReference).
//		Include("LineItems", eager.Op{Verb: "Where", Lambda: "func(li LineItem) bool { return li.Price > 100 }"})
//
// Expressions are interpreted at run time against the reflected Go types,
// unless a generated file has registered a precompiled include function for
// the same root and text (see RegisterCompiled and `eagerpath generate`).
//
// The ORM is reached through the Query interface; adapters for a concrete
// ORM implement it.
package eager

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/include"
	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/registry"
)

// Tracking is a change-tracking mode.
type Tracking = registry.Tracking

const (
	TrackingDefault            = registry.TrackingDefault
	TrackingIdentityResolution = registry.TrackingIdentityResolution
	TrackingNone               = registry.TrackingNone
)

// Via is how a continuation include is reached from the previous one.
type Via = lower.Via

const (
	ViaReference  = lower.ViaReference
	ViaCollection = lower.ViaCollection
)

// Op is one call chained onto an include's navigation: "Where" or one of the
// sort verbs, with the lambda as Go source text.
type Op struct {
	Verb   string
	Lambda string
}

// Query is the eager-loading surface of an ORM query. Every method returns
// the query to continue with.
type Query interface {
	// Include loads a navigation of the root entity.
	Include(nav string, ops ...Op) Query

	// ThenInclude loads a navigation of the entities loaded by the previous
	// Include or ThenInclude.
	ThenInclude(nav string, via Via, ops ...Op) Query

	// AsSplitQuery loads each include with its own statement.
	AsSplitQuery() Query

	// WithTracking sets the change-tracking mode.
	WithTracking(t Tracking) Query
}

// Expr is a path expression bound to its root type.
type Expr struct {
	Root   string
	Source string
}

// String returns the expression text.
func (e Expr) String() string { return e.Source }

// Path binds src to root type T. It does not compile src; Include and
// NewSpec do, and `eagerpath check` reports misuse ahead of time.
func Path[T any](src string) Expr {
	return Expr{Root: typeName[T](), Source: src}
}

// Include applies path expressions rooted at T to q.
//
// When every expression has a precompiled include function it is used.
// Otherwise all expressions are compiled, validated and checked to compose;
// a path with error findings, or two paths with conflicting filters or
// orderings, is rejected. Precompiled functions are checked to compose too.
func Include[T any](q Query, exprs ...string) (Query, error) {
	root := typeName[T]()
	s := current()
	s.registerType(reflect.TypeFor[T]())

	if fns, ok := s.compiledAll(root, exprs); ok {
		if err := s.compose(context.Background(), root, exprs); err != nil {
			return q, err
		}
		for _, fn := range fns {
			q = fn(q)
		}
		return q, nil
	}

	spec, err := registry.NewBuilder(s.pathCache(), "Include["+root+"]", root).Include(exprs...).Build()
	if err != nil {
		return q, err
	}
	t := &queryTarget{q: q}
	if err := include.New(include.WithLogger(s.log())).Apply(context.Background(), t, spec); err != nil {
		return q, err
	}
	s.log().Debug("interpreted include", "root", root, "paths", len(exprs))
	return t.q, nil
}

// IncludeExprs is Include for expressions built with Path.
func IncludeExprs[T any](q Query, exprs ...Expr) (Query, error) {
	root := typeName[T]()
	srcs := make([]string, len(exprs))
	for i, e := range exprs {
		if e.Root != root {
			return q, fmt.Errorf("include: expression %q is rooted at %s, want %s", e.Source, e.Root, root)
		}
		srcs[i] = e.Source
	}
	return Include[T](q, srcs...)
}

// queryTarget feeds lowered directives to a Query.
type queryTarget struct {
	q Query
}

func (t *queryTarget) Configure(opts registry.Options) error {
	if opts.Split {
		t.q = t.q.AsSplitQuery()
	}
	if opts.Tracking != TrackingDefault {
		t.q = t.q.WithTracking(opts.Tracking)
	}
	return nil
}

func (t *queryTarget) Include(d lower.Directive) error {
	ops := make([]Op, len(d.Ops))
	for i, op := range d.Ops {
		ops[i] = Op{Verb: op.Verb, Lambda: expr.Format(op.Lambda)}
	}
	if d.Kind == lower.KindRoot {
		t.q = t.q.Include(d.Property, ops...)
	} else {
		t.q = t.q.ThenInclude(d.Property, d.Via, ops...)
	}
	return nil
}

// typeName is the bare name of T, or of what T points to.
func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
