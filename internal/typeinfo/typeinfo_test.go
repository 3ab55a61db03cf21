package typeinfo

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test entity graph.

type Order struct {
	ID        int
	Customer  *Customer
	LineItems []LineItem
	Notes     []byte
	Tags      []string
	Payment   Payment
	Audit
	secret string
}

type Audit struct {
	CreatedBy string
}

type Customer struct {
	Name    string
	Address Address
}

type Address struct {
	City string
}

type LineItem struct {
	Price   int
	Product *Product
}

type Product struct {
	Name string
}

func (p Product) Label() string { return p.Name }

type Payment interface {
	Amount() int
}

type CardPayment struct {
	Issuer string
}

func (*CardPayment) Amount() int { return 0 }

// =============================================================================
// TypeRef
// =============================================================================

func TestParseTypeRef(t *testing.T) {
	tests := []struct {
		in         string
		name       string
		pointer    bool
		collection bool
		target     string
	}{
		{"int", "int", false, false, "int"},
		{"*Customer", "Customer", true, false, "Customer"},
		{"[]LineItem", "LineItem", false, true, "LineItem"},
		{"[]*LineItem", "LineItem", false, true, "LineItem"},
		{"[4]Tag", "Tag", false, true, "Tag"},
		{"[]byte", "[]byte", false, false, "[]byte"},
		{"[]rune", "[]rune", false, false, "[]rune"},
		{"string", "string", false, false, "string"},
		{"*store.Customer", "Customer", true, false, "Customer"},
		{"map[string]int", "map[string]int", false, false, "map[string]int"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref := ParseTypeRef(tt.in)
			assert.Equal(t, tt.name, ref.Name)
			assert.Equal(t, tt.pointer, ref.Pointer)
			assert.Equal(t, tt.pointer, ref.Nullable())
			assert.Equal(t, tt.collection, ref.Collection)
			assert.Equal(t, tt.target, ref.Target())
		})
	}
}

// =============================================================================
// Reflect
// =============================================================================

func TestReflectMembers(t *testing.T) {
	u := NewReflect((*Order)(nil), (*CardPayment)(nil))

	tests := []struct {
		typ, member string
		kind        MemberKind
		target      string
		collection  bool
		nullable    bool
	}{
		{"Order", "LineItems", KindProperty, "LineItem", true, false},
		{"Order", "Customer", KindProperty, "Customer", false, true},
		{"Order", "Notes", KindProperty, "[]uint8", false, false},
		{"Order", "Tags", KindProperty, "string", true, false},
		{"Order", "secret", KindField, "string", false, false},
		{"Order", "CreatedBy", KindProperty, "string", false, false},
		{"LineItem", "Product", KindProperty, "Product", false, true},
		{"Product", "Label", KindMethod, "string", false, false},
		{"Payment", "Amount", KindMethod, "int", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"."+tt.member, func(t *testing.T) {
			m, ok := u.Member(tt.typ, tt.member)
			require.True(t, ok)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.target, m.Type.Target())
			assert.Equal(t, tt.collection, m.Type.Collection)
			assert.Equal(t, tt.nullable, m.Type.Nullable())
		})
	}

	_, ok := u.Member("Order", "Missing")
	assert.False(t, ok)
	_, ok = u.Member("Unknown", "ID")
	assert.False(t, ok)
}

func TestReflectRegistersReachableTypes(t *testing.T) {
	u := NewReflect((*Order)(nil))
	for _, name := range []string{"Order", "Customer", "Address", "LineItem", "Product", "Payment", "Audit"} {
		assert.True(t, u.Lookup(name), name)
	}
	assert.False(t, u.Lookup("CardPayment"), "implementations are not reachable through fields")

	u.Register(reflect.TypeOf(CardPayment{}))
	assert.True(t, u.Lookup("CardPayment"))
}

func TestReflectAssignability(t *testing.T) {
	u := NewReflect((*Order)(nil), (*CardPayment)(nil))

	assert.True(t, u.AssignableTo("CardPayment", "Payment"), "*CardPayment implements Payment")
	assert.True(t, u.AssignableTo("Order", "Audit"), "embedding")
	assert.False(t, u.AssignableTo("Customer", "Payment"))
	assert.True(t, CastCompatible(u, "Payment", "CardPayment"))
	assert.False(t, CastCompatible(u, "Payment", "Customer"))
	assert.False(t, CastCompatible(u, "Payment", "Nope"))
}

func TestResolveChain(t *testing.T) {
	u := NewReflect((*Order)(nil))
	assert.Equal(t, 2, ResolveChain(u, "LineItem", []string{"Product", "Name"}))
	assert.Equal(t, 1, ResolveChain(u, "LineItem", []string{"Product", "Missing"}))
	assert.Equal(t, 0, ResolveChain(u, "LineItem", []string{"Cost"}))
	// string is not a known type: members past it are not checked.
	assert.Equal(t, 2, ResolveChain(u, "Product", []string{"Name", "Len"}))
}

// =============================================================================
// Schema
// =============================================================================

const schemaSource = `package shop

type Order struct {
	ID        int
	Customer  *Customer
	LineItems []*LineItem
	Base
	note string
}

type Base struct{ Version int }

type Customer struct{ Name string }

type LineItem struct{ Price int }

func (l *LineItem) Total() int { return l.Price }

func (l *LineItem) Pair() (int, error) { return 0, nil }

type Payment interface{ Amount() int }

type Card struct{ Issuer string }

func (Card) Amount() int { return 1 }

type Box[T any] struct{ V T }
`

func TestFromGoFiles(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "shop.go", schemaSource, parser.SkipObjectResolution)
	require.NoError(t, err)

	s, err := FromGoFiles([]*ast.File{f})
	require.NoError(t, err)

	assert.Equal(t, []string{"Base", "Card", "Customer", "LineItem", "Order", "Payment"}, s.Names())

	m, ok := s.Member("Order", "LineItems")
	require.True(t, ok)
	assert.True(t, m.Type.Collection)
	assert.Equal(t, "LineItem", m.Type.Target())

	m, ok = s.Member("Order", "note")
	require.True(t, ok)
	assert.Equal(t, KindField, m.Kind)

	m, ok = s.Member("Order", "Version")
	require.True(t, ok, "promoted from Base")
	assert.Equal(t, "Order", m.Owner)

	m, ok = s.Member("LineItem", "Total")
	require.True(t, ok)
	assert.Equal(t, KindMethod, m.Kind)

	_, ok = s.Member("LineItem", "Pair")
	assert.False(t, ok, "multi-result methods are not members")

	assert.True(t, s.AssignableTo("Card", "Payment"))
	assert.True(t, s.AssignableTo("Order", "Base"))
	assert.False(t, s.AssignableTo("Customer", "Payment"))
}

func TestSchemaDeclare(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.Declare(Decl{Name: "Order", Fields: []FieldDecl{{Name: "ID", Type: "int"}}}))
	assert.Error(t, s.Declare(Decl{Name: "Order"}))
	assert.Error(t, s.Declare(Decl{}))

	require.NoError(t, s.Declare(Decl{Name: "Refund", Implements: []string{"Payment"}}))
	require.NoError(t, s.Declare(Decl{Name: "Payment", Interface: true}))
	assert.True(t, s.AssignableTo("Refund", "Payment"))

	d, ok := s.Decl("Order")
	require.True(t, ok)
	assert.Len(t, d.Fields, 1)
}
