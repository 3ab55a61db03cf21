package eager

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/eagerpath/internal/include"
	"github.com/roach88/eagerpath/internal/registry"
)

// Spec is a named, reusable set of paths over one root type with query
// options.
type Spec = registry.Spec

// SpecBuilder assembles a Spec. Methods chain; the first error is returned
// by Build.
type SpecBuilder = registry.Builder

// NewSpec starts a spec named name rooted at T:
//
//	details, err := eager.NewSpec[Order]("OrderDetails").
//		Include("o.LineItems[each].Product", "o.Customer[to].Address").
//		Split().
//		Build()
func NewSpec[T any](name string) *SpecBuilder {
	s := current()
	s.registerType(reflect.TypeFor[T]())
	return registry.NewBuilder(s.pathCache(), name, typeName[T]())
}

// Apply applies specs to q: their paths in order, split if any spec splits,
// and the most restrictive tracking mode. The specs must share a root type
// and their paths must compose.
func Apply(q Query, specs ...*Spec) (Query, error) {
	if len(specs) == 0 {
		return q, nil
	}
	t := &queryTarget{q: q}
	if err := include.New(include.WithLogger(current().log())).Apply(context.Background(), t, specs...); err != nil {
		return q, err
	}
	return t.q, nil
}

// Register adds spec to the process-wide spec registry. Names are unique.
func Register(spec *Spec) error {
	return current().specs.Register(spec)
}

// Lookup returns a registered spec by name.
func Lookup(name string) (*Spec, bool) {
	return current().specs.Lookup(name)
}

// ApplyNamed applies registered specs by name.
func ApplyNamed(q Query, names ...string) (Query, error) {
	specs := make([]*Spec, len(names))
	for i, name := range names {
		spec, ok := Lookup(name)
		if !ok {
			return q, fmt.Errorf("apply: no spec named %s", name)
		}
		specs[i] = spec
	}
	return Apply(q, specs...)
}
