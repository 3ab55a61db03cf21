package queryir

import "github.com/roach88/eagerpath/internal/ir"

// Load selects the rows one include loads.
//
// Semantics:
//
//	SELECT <columns> FROM <table>
//	WHERE <child_key> IN (SELECT <parent_key> FROM <parent rows>)
//	  AND <filter>
//	ORDER BY <order_by>, <key>
//
// A root Load has no Parent and selects from Table directly.
//
// Example:
//
//	Load{
//	  Navigation: "LineItems",
//	  Table:      "line_items",
//	  Key:        "id",
//	  Columns:    []string{"id", "order_id", "price"},
//	  Parent:     &orders,
//	  ParentKey:  "id",
//	  ChildKey:   "order_id",
//	  Filter:     Compare{Column: "price", Op: OpGt, Value: ir.IRInt(100)},
//	}
type Load struct {
	// Navigation is the dotted property chain from the root, such as
	// "LineItems.Product". Empty for the root.
	Navigation string

	Table string

	// Key is the primary key column, the final tiebreaker of every ordering.
	Key string

	// Columns lists the selected columns. Empty selects every column.
	Columns []string

	Parent *Load

	// ParentKey is the column of the parent rows matched by ChildKey.
	ParentKey string
	// ChildKey is the column of this table matched against ParentKey.
	ChildKey string

	// Filter restricts the loaded rows (nil = no filter).
	Filter Predicate

	// OrderBy orders the loaded rows, first key first.
	OrderBy []Order
}

// IsRoot reports whether the load is the root of a plan.
func (l *Load) IsRoot() bool { return l.Parent == nil }

// Depth returns the number of ancestors.
func (l *Load) Depth() int {
	n := 0
	for p := l.Parent; p != nil; p = p.Parent {
		n++
	}
	return n
}

// Order is one ORDER BY key.
type Order struct {
	Column     string
	Descending bool
}

// Predicate represents a row filter.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: column <op> literal
//   - And, Or, Not
//   - IsNull: column IS NULL
//   - Like: column LIKE pattern
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Flip returns the operator with its operands swapped: a < b iff b > a.
func (op CompareOp) Flip() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// Negate returns the complementary operator.
func (op CompareOp) Negate() CompareOp {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	}
	return OpLt
}

// Compare represents a column-versus-literal comparison.
//
// Semantics:
//
//	<column> <op> <value>
//
// Value must be an ir.IRValue other than IRNull; a nil comparison is IsNull.
type Compare struct {
	Column string
	Op     CompareOp
	Value  ir.IRValue
}

func (Compare) predicateNode() {}

// And represents a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. Empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// IsNull tests a nullable column.
type IsNull struct {
	Column string
}

func (IsNull) predicateNode() {}

// Like matches a text column against a pattern with % wildcards. Literal %
// and _ in Pattern are escaped with a backslash.
type Like struct {
	Column  string
	Pattern string
}

func (Like) predicateNode() {}
