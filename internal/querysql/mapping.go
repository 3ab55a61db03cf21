package querysql

import (
	"strings"
	"sync"
	"unicode"
)

// Table maps one entity type to a table.
type Table struct {
	// Name is the table name. Default: the pluralized snake_case type name.
	Name string

	// Key is the primary key column. Default: "id".
	Key string

	// Columns lists the selected columns. Empty selects every column.
	Columns []string

	// Keys overrides foreign key columns by navigation property. For a
	// reference navigation the column lives on this table; for a collection
	// navigation it lives on the element table.
	Keys map[string]string
}

// Mapping maps entity types to tables. Types without an explicit Table use
// naming conventions:
//
//	type LineItem      -> table line_items, key id
//	Order.Customer     -> orders.customer_id = customers.id
//	Order.LineItems    -> orders.id = line_items.order_id
//
// Mapping is safe for concurrent use.
type Mapping struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewMapping returns a mapping that uses conventions for every type.
func NewMapping() *Mapping {
	return &Mapping{tables: make(map[string]Table)}
}

// Map sets the table for typeName. Empty fields fall back to conventions.
func (m *Mapping) Map(typeName string, t Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[typeName] = t
}

// Table returns the table for typeName with conventions applied.
func (m *Mapping) Table(typeName string) Table {
	m.mu.RLock()
	t := m.tables[typeName]
	m.mu.RUnlock()

	if t.Name == "" {
		t.Name = plural(Snake(typeName))
	}
	if t.Key == "" {
		t.Key = "id"
	}
	return t
}

// Keys returns the join columns of a navigation from sourceType to
// targetType: the column of the parent rows and the column of the child rows.
func (m *Mapping) Keys(sourceType, property, targetType string, collection bool) (parentKey, childKey string) {
	src := m.Table(sourceType)
	dst := m.Table(targetType)
	if collection {
		fk := src.Keys[property]
		if fk == "" {
			fk = Snake(sourceType) + "_id"
		}
		return src.Key, fk
	}
	fk := src.Keys[property]
	if fk == "" {
		fk = Snake(property) + "_id"
	}
	return fk, dst.Key
}

// Snake converts a Go identifier to snake_case, keeping initialisms
// together: LineItems -> line_items, OrderID -> order_id, HTTPStatus ->
// http_status.
func Snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "y") && !strings.HasSuffix(s, "ay") && !strings.HasSuffix(s, "ey") && !strings.HasSuffix(s, "oy"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "sh"), strings.HasSuffix(s, "ch"):
		return s + "es"
	}
	return s + "s"
}
