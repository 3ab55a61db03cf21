package harness

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/eagerpath/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers cannot be parameterized, so they are checked against this
// pattern before being interpolated.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context, if relevant
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", event.Seq, event.Case, event.Kind, event.Text)
		}
	}
	return buf.String()
}

// scope describes the case and kind filter of an assertion.
func scope(a Assertion) string {
	s := "any case"
	if a.Case != "" {
		s = "case " + a.Case
	}
	if a.Kind != "" {
		s += ", kind " + a.Kind
	}
	return s
}

// assertTraceContains checks that an event in scope contains the text.
func assertTraceContains(result *Result, a Assertion) error {
	events := result.events(a.Case, a.Kind)
	for _, e := range events {
		if strings.Contains(e.Text, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%q in %s", a.Text, scope(a)),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that each text first appears after the previous
// one. Intervening events are allowed.
func assertTraceOrder(result *Result, a Assertion) error {
	events := result.events(a.Case, a.Kind)
	positions := make([]int, len(a.Texts))
	for i, text := range a.Texts {
		idx := slices.IndexFunc(events, func(e TraceEvent) bool {
			return strings.Contains(e.Text, text)
		})
		if idx < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all texts present: %q", a.Texts),
				Actual:   fmt.Sprintf("missing text: %q", text),
				Trace:    events,
			}
		}
		positions[i] = idx
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("texts in order: %q", a.Texts),
				Actual: fmt.Sprintf("%q (event %d) should be before %q (event %d)",
					a.Texts[i-1], events[positions[i-1]].Seq, a.Texts[i], events[positions[i]].Seq),
				Trace: events,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of events in scope.
func assertTraceCount(result *Result, a Assertion) error {
	events := result.events(a.Case, a.Kind)
	if len(events) != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d event(s) in %s", a.Count, scope(a)),
			Actual:   fmt.Sprintf("%d event(s)", len(events)),
			Trace:    events,
		}
	}
	return nil
}

// assertSamePlan checks that every listed case lowered to the same plan.
func assertSamePlan(result *Result, a Assertion) error {
	first := result.Plans[a.Cases[0]]
	for _, c := range a.Cases {
		hash, planned := result.Plans[c]
		if !planned {
			return &AssertionError{
				Type:     AssertSamePlan,
				Expected: fmt.Sprintf("case %s to be planned", c),
				Actual:   "no plan",
				Trace:    result.events(c, ""),
			}
		}
		if hash != first {
			return &AssertionError{
				Type:     AssertSamePlan,
				Expected: fmt.Sprintf("case %s plan %s", c, first),
				Actual:   fmt.Sprintf("plan %s", hash),
			}
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the Expect values. Values are compared as text.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}
	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	for _, key := range slices.Sorted(maps.Keys(a.Expect)) {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if sqlText(actual) != sqlText(a.Expect[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, a.Expect[key]),
				Actual:   fmt.Sprintf("field %q = %v", key, sqlText(actual)),
			}
		}
	}
	return nil
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := slices.Sorted(maps.Keys(where))
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, where[key])
	}
	return strings.Join(clauses, " AND "), args, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := slices.Sorted(maps.Keys(where))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// sqlText renders a column or YAML value for comparison. SQLite may return
// text as bytes.
func sqlText(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// EvaluateAssertions evaluates all assertions against the result and the
// plan store. Returns a message for each failed assertion.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result, a)
		case AssertSamePlan:
			err = assertSamePlan(result, a)
		case AssertFinalState:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a plan store", i)
			} else {
				err = assertFinalState(ctx, st, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
