// Package typeinfo provides the type-reflection capability the path walker
// consumes: member lookup, collection and nullability classification, and
// assignability between named types.
//
// Two implementations are provided:
//   - Reflect: built from Go values with package reflect (runtime use)
//   - Schema: built from declarations, either CUE models or Go struct
//     declarations parsed from source (analyzer and code generation use)
//
// Types are identified by their bare name ("Order", "LineItem"). Pointer and
// slice decoration lives in TypeRef, never in the name.
package typeinfo

import "strings"

// MemberKind classifies how a member is declared.
type MemberKind int

const (
	// KindProperty is an exported struct field.
	KindProperty MemberKind = iota
	// KindField is an unexported struct field. Navigating through one is a
	// field access rather than a property access.
	KindField
	// KindMethod is a method with a single result.
	KindMethod
)

func (k MemberKind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	}
	return "unknown"
}

// Member is one resolvable member of a type.
type Member struct {
	Name  string
	Owner string
	Kind  MemberKind
	Type  TypeRef
}

// TypeRef is a declared member type such as "*Customer", "[]LineItem" or
// "[]*LineItem".
type TypeRef struct {
	// Name is the bare type name; for collections, the element's bare name.
	Name string
	// Pointer is true for *T. Pointers are nullable.
	Pointer bool
	// Collection is true for slices and arrays other than string, []byte and
	// []rune.
	Collection bool
	// Elem is the element type of a collection.
	Elem *TypeRef
}

// Nullable reports whether a value of this type may be nil. Only pointers
// are nullable; a nil slice is an empty collection.
func (t TypeRef) Nullable() bool {
	return t.Pointer
}

// Target returns the navigation target: the element type for a collection,
// the referenced type otherwise.
func (t TypeRef) Target() string {
	if t.Collection && t.Elem != nil {
		return t.Elem.Target()
	}
	return t.Name
}

// String renders the type in Go syntax.
func (t TypeRef) String() string {
	switch {
	case t.Collection && t.Elem != nil:
		return "[]" + t.Elem.String()
	case t.Pointer:
		return "*" + t.Name
	}
	return t.Name
}

// nonCollections are slice types that navigate as scalar values.
var nonCollections = map[string]bool{
	"byte":  true,
	"uint8": true,
	"rune":  true,
	"int32": true,
}

// ParseTypeRef parses a Go type spelling. Package qualifiers are dropped:
// "[]*store.LineItem" has element name "LineItem". Map and channel types are
// treated as opaque scalars named by their spelling.
func ParseTypeRef(s string) TypeRef {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "*"):
		inner := ParseTypeRef(s[1:])
		inner.Pointer = true
		return inner
	case strings.HasPrefix(s, "[]"):
		return sliceOf(ParseTypeRef(s[2:]))
	case strings.HasPrefix(s, "["):
		// Fixed-size array: [N]T
		if end := strings.IndexByte(s, ']'); end > 0 {
			return sliceOf(ParseTypeRef(s[end+1:]))
		}
	case strings.HasPrefix(s, "map[") || strings.HasPrefix(s, "chan ") || strings.HasPrefix(s, "func("):
		return TypeRef{Name: s}
	}
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		s = s[dot+1:]
	}
	return TypeRef{Name: s}
}

func sliceOf(elem TypeRef) TypeRef {
	if !elem.Pointer && !elem.Collection && nonCollections[elem.Name] {
		return TypeRef{Name: "[]" + elem.Name}
	}
	return TypeRef{Name: elem.Target(), Collection: true, Elem: &elem}
}

// Universe is the type-reflection query surface.
//
// Implementations must be safe for concurrent use.
type Universe interface {
	// Lookup reports whether a type with this name is known.
	Lookup(name string) bool

	// Member resolves a member on a type, including members promoted from
	// embedded types.
	Member(typeName, member string) (Member, bool)

	// AssignableTo reports whether a value of type from may be used as a
	// value of type to: identity, embedding, or interface satisfaction.
	AssignableTo(from, to string) bool
}

// CastCompatible reports whether asserting a value of static type from to
// type to is an upcast or a downcast.
func CastCompatible(u Universe, from, to string) bool {
	if !u.Lookup(from) || !u.Lookup(to) {
		return false
	}
	return u.AssignableTo(to, from) || u.AssignableTo(from, to)
}

// ResolveChain resolves a member chain starting at typeName. It returns the
// number of leading names that resolved; len(names) means all did. Members of
// types the universe does not know are not checked.
func ResolveChain(u Universe, typeName string, names []string) int {
	cur := typeName
	for i, name := range names {
		if !u.Lookup(cur) {
			return len(names)
		}
		m, ok := u.Member(cur, name)
		if !ok {
			return i
		}
		cur = m.Type.Target()
	}
	return len(names)
}
