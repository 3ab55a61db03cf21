package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopCUE = `
model: Order: {
	table: "orders"
	columns: ["id", "customer_id", "reference"]
	fields: {
		ID:        "int"
		Reference: "string"
		Customer:  "*Customer"
		LineItems: {type: "[]LineItem", key: "order_id"}
	}
}
model: Customer: {
	fields: {
		ID:      "int"
		Name:    "string"
		Address: {type: "*Address", key: "home_address_id"}
	}
}
model: Address: {
	fields: {
		ID:   "int"
		City: "string"
	}
}
model: LineItem: {
	fields: {
		ID:      "int"
		Price:   "int"
		Name:    "string"
		Product: "*Product"
	}
}
model: Product: {
	fields: {
		ID:   "int"
		Name: "string"
	}
}
spec: CustomerOnly: {
	root:  "Order"
	paths: ["o.Customer[to].Address"]
}
spec: OrderDetails: {
	root:     "Order"
	split:    true
	tracking: "none"
	statics: ["strings"]
	paths: ["o.LineItems.Where(func(li LineItem) bool { return strings.HasPrefix(li.Name, \"a\") })[each].Product"]
	imports: ["CustomerOnly"]
}
`

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

// =============================================================================
// Models
// =============================================================================

func TestCompileModel(t *testing.T) {
	v := compileString(t, shopCUE)

	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.Order")))
	require.NoError(t, err)

	assert.Equal(t, "Order", m.Name)
	assert.Equal(t, "orders", m.Table)
	assert.Equal(t, []string{"id", "customer_id", "reference"}, m.Columns)
	assert.Equal(t, []FieldDecl{
		{Name: "ID", Type: "int"},
		{Name: "Reference", Type: "string"},
		{Name: "Customer", Type: "*Customer"},
		{Name: "LineItems", Type: "[]LineItem", Key: "order_id"},
	}, m.Fields, "fields keep declaration order")
}

func TestCompileModel_InterfaceAndExtends(t *testing.T) {
	v := compileString(t, `
model: Payment: {
	interface: true
	methods: {Amount: "int"}
}
model: CardPayment: {
	implements: ["Payment"]
	fields: {Total: "int"}
}
model: GiftCard: {
	extends: ["CardPayment"]
}
`)

	p, err := CompileModel(v.LookupPath(cue.ParsePath("model.Payment")))
	require.NoError(t, err)
	assert.True(t, p.Interface)
	assert.Equal(t, map[string]string{"Amount": "int"}, p.Methods)

	c, err := CompileModel(v.LookupPath(cue.ParsePath("model.CardPayment")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Payment"}, c.Implements)

	g, err := CompileModel(v.LookupPath(cue.ParsePath("model.GiftCard")))
	require.NoError(t, err)
	assert.Equal(t, []string{"CardPayment"}, g.Extends)
	assert.Empty(t, g.Fields)
}

func TestCompileModel_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no fields", `model: Empty: {table: "empties"}`, "model.Empty.fields"},
		{"field without type", `model: Bad: {fields: {X: {key: "x_id"}}}`, "fields.X.type"},
		{"field of wrong kind", `model: Bad: {fields: {X: 3}}`, "fields.X"},
		{"method result not a string", `model: Bad: {interface: true, methods: {M: 1}}`, "model.Bad.methods.M"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			iter, err := v.LookupPath(cue.ParsePath("model")).Fields()
			require.NoError(t, err)
			require.True(t, iter.Next())
			target := iter.Value()

			_, err = CompileModel(target)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileModel_WrongScalarType(t *testing.T) {
	v := compileString(t, `model: Bad: {table: 42, fields: {ID: "int"}}`)
	_, err := CompileModel(v.LookupPath(cue.ParsePath("model.Bad")))
	assert.Error(t, err)
}

// =============================================================================
// Specs
// =============================================================================

func TestCompileSpec(t *testing.T) {
	v := compileString(t, shopCUE)

	s, err := CompileSpec(v.LookupPath(cue.ParsePath("spec.OrderDetails")))
	require.NoError(t, err)

	assert.Equal(t, "OrderDetails", s.Name)
	assert.Equal(t, "Order", s.Root)
	assert.True(t, s.Split)
	assert.Equal(t, "none", s.Tracking)
	assert.Equal(t, []string{"strings"}, s.Statics)
	assert.Equal(t, []string{"CustomerOnly"}, s.Imports)
	require.Len(t, s.Paths, 1)
	assert.Contains(t, s.Paths[0], `strings.HasPrefix(li.Name, "a")`)
}

func TestCompileSpec_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing root", `spec: S: {paths: ["o.Customer"]}`, "spec.S.root"},
		{"no paths or imports", `spec: S: {root: "Order"}`, "spec.S.paths"},
		{"path not a string", `spec: S: {root: "Order", paths: [1]}`, ""},
		{"split not a bool", `spec: S: {root: "Order", split: "yes", paths: ["o.Customer"]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			_, err := CompileSpec(v.LookupPath(cue.ParsePath("spec.S")))
			require.Error(t, err)
			if tt.field == "" {
				return
			}
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

// =============================================================================
// Whole instances
// =============================================================================

func TestCompile(t *testing.T) {
	d, err := Compile(compileString(t, shopCUE))
	require.NoError(t, err)

	names := make([]string, len(d.Models))
	for i, m := range d.Models {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Order", "Customer", "Address", "LineItem", "Product"}, names)
	require.Len(t, d.Specs, 2)

	_, ok := d.Spec("OrderDetails")
	assert.True(t, ok)
	_, ok = d.Model("Nope")
	assert.False(t, ok)

	assert.Empty(t, Validate(d))
}

func TestCompile_Empty(t *testing.T) {
	d, err := Compile(compileString(t, `other: 1`))
	require.NoError(t, err)
	assert.Empty(t, d.Models)
	assert.Empty(t, d.Specs)
}

func TestCompile_InvalidInstance(t *testing.T) {
	v := cuecontext.New().CompileString(`model: Order: {table: "a"} & {table: "b"}`)
	_, err := Compile(v)
	assert.Error(t, err)
}

func TestDeclarationsMerge(t *testing.T) {
	a := &Declarations{Models: []ModelDecl{{Name: "A"}}}
	b := &Declarations{Models: []ModelDecl{{Name: "B"}}, Specs: []SpecDecl{{Name: "S"}}}
	a.Merge(b)
	assert.Len(t, a.Models, 2)
	assert.Len(t, a.Specs, 1)
}
