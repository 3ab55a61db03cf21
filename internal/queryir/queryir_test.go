package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagerpath/internal/ir"
)

func orders() *Load {
	return &Load{Table: "orders", Key: "id", Columns: []string{"id", "customer_id"}}
}

func lineItems(parent *Load, filter Predicate) *Load {
	return &Load{
		Navigation: "LineItems",
		Table:      "line_items",
		Key:        "id",
		Columns:    []string{"id", "order_id", "price"},
		Parent:     parent,
		ParentKey:  "id",
		ChildKey:   "order_id",
		Filter:     filter,
	}
}

// =============================================================================
// Load
// =============================================================================

func TestLoadDepth(t *testing.T) {
	root := orders()
	items := lineItems(root, nil)
	products := &Load{Navigation: "LineItems.Product", Table: "products", Parent: items}

	assert.True(t, root.IsRoot())
	assert.False(t, items.IsRoot())
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 2, products.Depth())
}

func TestCompareOps(t *testing.T) {
	tests := []struct {
		op, flip, negate CompareOp
	}{
		{OpEq, OpEq, OpNe},
		{OpNe, OpNe, OpEq},
		{OpLt, OpGt, OpGe},
		{OpLe, OpGe, OpGt},
		{OpGt, OpLt, OpLe},
		{OpGe, OpLe, OpLt},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.flip, tt.op.Flip())
			assert.Equal(t, tt.negate, tt.op.Negate())
			assert.Equal(t, tt.op, tt.op.Negate().Negate())
		})
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate_PortableLoad(t *testing.T) {
	l := lineItems(orders(), And{Predicates: []Predicate{
		Compare{Column: "price", Op: OpGt, Value: ir.IRInt(100)},
		Not{Predicate: Compare{Column: "price", Op: OpEq, Value: ir.IRInt(0)}},
	}})

	result := Validate(l)

	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name    string
		load    *Load
		contain string
	}{
		{
			name:    "select star",
			load:    &Load{Table: "orders", Key: "id"},
			contain: "SELECT *",
		},
		{
			name:    "null comparison",
			load:    lineItems(orders(), Compare{Column: "price", Op: OpEq, Value: ir.IRNull{}}),
			contain: "compared to NULL",
		},
		{
			name:    "is null",
			load:    lineItems(orders(), Not{Predicate: IsNull{Column: "product_id"}}),
			contain: "tested for NULL",
		},
		{
			name:    "or",
			load:    lineItems(orders(), Or{Predicates: []Predicate{Compare{Column: "price", Op: OpLt, Value: ir.IRInt(1)}}}),
			contain: "OR predicate",
		},
		{
			name:    "like",
			load:    lineItems(orders(), Like{Column: "name", Pattern: "gift%"}),
			contain: "LIKE",
		},
		{
			name:    "missing keys",
			load:    &Load{Navigation: "LineItems", Table: "line_items", Columns: []string{"id"}, Parent: orders()},
			contain: "missing join keys",
		},
		{
			name:    "ancestor warnings",
			load:    lineItems(&Load{Table: "orders", Key: "id"}, nil),
			contain: "orders: empty columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.load)
			assert.False(t, result.IsPortable)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tt.contain)
		})
	}
}

func TestValidate_NilLoad(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsPortable)
	assert.Len(t, result.Warnings, 1)
}
