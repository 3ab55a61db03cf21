package typeinfo

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Decl declares one type of a Schema.
type Decl struct {
	Name string

	// Interface marks an interface type; Methods then lists the methods an
	// implementation must have.
	Interface bool

	// Fields in declaration order. A field whose name starts with an upper
	// case letter is a property.
	Fields []FieldDecl

	// Methods declared on the type, by name, with their single result type.
	Methods map[string]string

	// Embeds lists embedded type names; their members are promoted and the
	// declared type is assignable to each of them.
	Embeds []string

	// Implements lists interfaces this type satisfies by declaration.
	Implements []string
}

// FieldDecl is one declared field.
type FieldDecl struct {
	Name string
	Type string
}

// Schema is a Universe built from declarations.
type Schema struct {
	mu    sync.RWMutex
	decls map[string]*Decl
}

// NewSchema creates an empty Schema.
func NewSchema() *Schema {
	return &Schema{decls: make(map[string]*Decl)}
}

// Declare adds a type. Redeclaring a name is an error.
func (s *Schema) Declare(d Decl) error {
	if d.Name == "" {
		return fmt.Errorf("declare: empty type name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decls[d.Name]; exists {
		return fmt.Errorf("declare %s: type already declared", d.Name)
	}
	cp := d
	cp.Fields = slices.Clone(d.Fields)
	s.decls[d.Name] = &cp
	return nil
}

// Names returns the declared type names, sorted.
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.decls))
	for n := range s.decls {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decl returns the declaration of name.
func (s *Schema) Decl(name string) (Decl, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decls[name]
	if !ok {
		return Decl{}, false
	}
	return *d, true
}

// Lookup implements Universe.
func (s *Schema) Lookup(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.decls[name]
	return ok
}

// Member implements Universe.
func (s *Schema) Member(typeName, member string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.member(typeName, member, 0)
}

func (s *Schema) member(typeName, member string, depth int) (Member, bool) {
	d, ok := s.decls[typeName]
	if !ok || depth > 8 {
		return Member{}, false
	}
	for _, f := range d.Fields {
		if f.Name != member {
			continue
		}
		kind := KindProperty
		if !exported(f.Name) {
			kind = KindField
		}
		return Member{Name: member, Owner: typeName, Kind: kind, Type: ParseTypeRef(f.Type)}, true
	}
	if res, ok := d.Methods[member]; ok {
		return Member{Name: member, Owner: typeName, Kind: KindMethod, Type: ParseTypeRef(res)}, true
	}
	for _, e := range d.Embeds {
		if m, ok := s.member(e, member, depth+1); ok {
			m.Owner = typeName
			return m, true
		}
	}
	return Member{}, false
}

// AssignableTo implements Universe.
//
// from is assignable to to when they are the same type, when from embeds to,
// when from declares that it implements to, or when to is an interface whose
// methods from declares (by name).
func (s *Schema) AssignableTo(from, to string) bool {
	if from == to {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignable(from, to, 0)
}

func (s *Schema) assignable(from, to string, depth int) bool {
	fd, ok := s.decls[from]
	td, tok := s.decls[to]
	if !ok || !tok || depth > 8 {
		return false
	}
	if slices.Contains(fd.Implements, to) {
		return true
	}
	for _, e := range fd.Embeds {
		if e == to || s.assignable(e, to, depth+1) {
			return true
		}
	}
	if td.Interface && len(td.Methods) > 0 {
		for name := range td.Methods {
			if _, ok := s.member(from, name, 0); !ok {
				return false
			}
		}
		return true
	}
	return false
}

func exported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
