package typeinfo

import (
	"reflect"
	"sync"
)

// Reflect is a Universe backed by package reflect.
//
// Registering a type registers every named struct or interface type reachable
// through its fields, so registering the root of an entity graph is usually
// enough. Implementations of interface-typed members must be registered
// explicitly, since nothing in the field graph names them.
type Reflect struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewReflect creates a Reflect universe and registers the dynamic types of
// the given values. Pass typed nil pointers to register without allocating:
// NewReflect((*Order)(nil)).
func NewReflect(values ...any) *Reflect {
	r := &Reflect{types: make(map[string]reflect.Type)}
	for _, v := range values {
		r.Register(reflect.TypeOf(v))
	}
	return r
}

// Register adds t and every named type reachable through its fields.
func (r *Reflect) Register(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(t)
}

func (r *Reflect) register(t reflect.Type) {
	if t == nil {
		return
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t.Name() == "" {
		return
	}
	if _, seen := r.types[t.Name()]; seen {
		return
	}
	switch t.Kind() {
	case reflect.Struct:
		r.types[t.Name()] = t
		for i := 0; i < t.NumField(); i++ {
			r.register(t.Field(i).Type)
		}
	case reflect.Interface:
		r.types[t.Name()] = t
	}
}

// Lookup implements Universe.
func (r *Reflect) Lookup(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Member implements Universe.
//
// Exported fields are properties and unexported fields are fields; fields of
// embedded structs are promoted. Exported methods with exactly one result
// (on T or *T) are methods.
func (r *Reflect) Member(typeName, member string) (Member, bool) {
	r.mu.RLock()
	t, ok := r.types[typeName]
	r.mu.RUnlock()
	if !ok {
		return Member{}, false
	}

	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(member); ok {
			kind := KindProperty
			if !f.IsExported() {
				kind = KindField
			}
			return Member{Name: member, Owner: typeName, Kind: kind, Type: refOf(f.Type)}, true
		}
	}

	for _, mt := range []reflect.Type{t, reflect.PointerTo(t)} {
		if t.Kind() == reflect.Interface && mt != t {
			break
		}
		if m, ok := mt.MethodByName(member); ok && m.Type.NumOut() == 1 {
			return Member{Name: member, Owner: typeName, Kind: KindMethod, Type: refOf(m.Type.Out(0))}, true
		}
	}
	return Member{}, false
}

// AssignableTo implements Universe. A struct type is assignable to a type it
// embeds, and to an interface that T or *T implements.
func (r *Reflect) AssignableTo(from, to string) bool {
	if from == to {
		return true
	}
	r.mu.RLock()
	ft, fok := r.types[from]
	tt, tok := r.types[to]
	r.mu.RUnlock()
	if !fok || !tok {
		return false
	}

	if tt.Kind() == reflect.Interface {
		return ft.Implements(tt) || (ft.Kind() != reflect.Interface && reflect.PointerTo(ft).Implements(tt))
	}
	return embeds(ft, tt, 0)
}

// embeds reports whether struct type t embeds target, directly or through
// further embedding.
func embeds(t, target reflect.Type, depth int) bool {
	if t.Kind() != reflect.Struct || depth > 8 {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft == target || embeds(ft, target, depth+1) {
			return true
		}
	}
	return false
}

// refOf classifies a reflect type as a TypeRef.
func refOf(t reflect.Type) TypeRef {
	switch t.Kind() {
	case reflect.Pointer:
		inner := refOf(t.Elem())
		if inner.Collection {
			// *[]T navigates as the collection.
			return inner
		}
		inner.Pointer = true
		return inner
	case reflect.Slice, reflect.Array:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 || elem.Kind() == reflect.Int32 {
			return TypeRef{Name: nameOf(t)}
		}
		e := refOf(elem)
		return TypeRef{Name: e.Target(), Collection: true, Elem: &e}
	}
	return TypeRef{Name: nameOf(t)}
}

func nameOf(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
