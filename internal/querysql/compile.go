package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eagerpath/internal/ir"
	"github.com/roach88/eagerpath/internal/queryir"
)

// SQLCompiler compiles queryir loads to parameterized SQL for SQLite.
//
// CRITICAL: ALL statements end in ORDER BY with the primary key as the final
// tiebreaker, so results are deterministic.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a load to a statement selecting its rows.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(l *queryir.Load) (string, []any, error) {
	if l == nil {
		return "", nil, errors.New("cannot compile nil load")
	}

	where, params, err := c.conditions(l)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", c.compileColumns(l.Columns), l.Table)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(c.orderBy(l))
	return b.String(), params, nil
}

// compileRows returns a subquery selecting column of the rows l loads. The
// subquery carries no ORDER BY.
func (c *SQLCompiler) compileRows(l *queryir.Load, column string) (string, []any, error) {
	where, params, err := c.conditions(l)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", column, l.Table)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, params, nil
}

// conditions returns the WHERE clause of l: membership in the parent rows,
// then the filter.
func (c *SQLCompiler) conditions(l *queryir.Load) (string, []any, error) {
	var parts []string
	var params []any

	if l.Parent != nil {
		if l.ParentKey == "" || l.ChildKey == "" {
			return "", nil, fmt.Errorf("load %s: missing join keys", l.Navigation)
		}
		sub, subParams, err := c.compileRows(l.Parent, l.ParentKey)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("%s IN (%s)", l.ChildKey, sub))
		params = append(params, subParams...)
	}

	if l.Filter != nil {
		sql, filterParams, err := c.compilePredicate(l.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter of %s: %w", l.Table, err)
		}
		parts = append(parts, sql)
		params = append(params, filterParams...)
	}

	return strings.Join(parts, " AND "), params, nil
}

// compileColumns converts the column list to a SELECT list.
func (c *SQLCompiler) compileColumns(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ", ")
}

// orderBy returns the ORDER BY list. The primary key always comes last.
// COLLATE BINARY ensures deterministic text ordering across SQLite versions.
func (c *SQLCompiler) orderBy(l *queryir.Load) string {
	key := l.Key
	if key == "" {
		key = "id"
	}
	var parts []string
	for _, o := range l.OrderBy {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", o.Column, dir))
	}
	parts = append(parts, key+" ASC COLLATE BINARY")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return fmt.Sprintf("%s %s ?", pred.Column, pred.Op), []any{param}, nil

	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // Always true (vacuous truth)
		}
		return c.compileJunction(pred.Predicates, " AND ")

	case queryir.Or:
		if len(pred.Predicates) == 0 {
			return "1 = 0", nil, nil
		}
		return c.compileJunction(pred.Predicates, " OR ")

	case queryir.Not:
		sql, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil

	case queryir.IsNull:
		return pred.Column + " IS NULL", nil, nil

	case queryir.Like:
		return pred.Column + ` LIKE ? ESCAPE '\'`, []any{pred.Pattern}, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep string) (string, []any, error) {
	var sqlParts []string
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Supports string, int, bool. Arrays and objects are not directly supported
// as SQL parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
