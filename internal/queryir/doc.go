// Package queryir provides the relational intermediate representation of an
// eager-load plan.
//
// Each lowered include becomes one Load: the rows of a child table whose key
// matches a key of the rows its parent Load selected. Loads form a tree
// rooted at the query's root Load, so a plan for
//
//	o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each].Product
//
// is
//
//	orders  <-  line_items (order_id = orders.id, price > 100)  <-  products (id = line_items.product_id)
//
// and each Load compiles to one statement that selects its rows with a
// subquery over its parent. This is the split-query shape: no Load ever
// joins its parent, so parent rows are never duplicated.
//
// PORTABLE FRAGMENT:
//
// Validate reports constructs that compile for SQLite but are not portable
// to other relational backends or to a graph store:
//   - SELECT * (no explicit columns)
//   - NULL comparisons (IsNull)
//   - disjunction (Or)
//   - pattern matching (Like)
//
// Predicate is a sealed interface using the marker method pattern, so
// backends can switch over it exhaustively.
//
// All literal values are ir.IRValue types: no floats. A filter comparing a
// column with a non-integral float constant cannot be lowered.
package queryir
