package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

func shopSpec(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "shop.cue"))
	require.NoError(t, err)
	return p
}

func runScenario(t *testing.T, s *Scenario) *Result {
	t.Helper()
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

// =============================================================================
// Scenario files
// =============================================================================

func TestRunNavigationScenario(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "navigation.yaml"))
	require.NoError(t, err)

	result := runScenario(t, scenario)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Len(t, result.Plans, 4, "products, renamed, address and loose are planned")
	assert.Equal(t, result.Plans["products"], result.Plans["renamed"])
	assert.NotEqual(t, result.Plans["products"], result.Plans["address"])
	assert.NotContains(t, result.Plans, "missing_marker")
	assert.NotContains(t, result.Plans, "conflict")

	statements := result.events("products", EventStatement)
	require.Len(t, statements, 3)
	for _, e := range statements {
		assert.True(t, strings.HasPrefix(e.Text, "SELECT "), e.Text)
	}
}

func TestRunWithGoldenCollectionErrors(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "collection_errors.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Plans)
}

// =============================================================================
// Tracing
// =============================================================================

func TestRunTraceSequence(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:  "sequence",
		Specs: []string{shopSpec(t)},
		Cases: []Case{
			{Name: "first", Root: "Order", Paths: []string{"o.Customer[to].Address"}},
			{Name: "second", Root: "Order", Paths: []string{"o.LineItems[each].Product"}},
		},
	})
	require.True(t, result.Pass, "errors: %v", result.Errors)

	for i, e := range result.Trace {
		assert.Equal(t, int64(i+1), e.Seq, "sequence numbers are dense")
	}
	first := result.events("first", "")
	require.NotEmpty(t, first)
	assert.Equal(t, EventDirective, first[0].Kind)
	assert.Equal(t, EventPlan, first[len(first)-1].Kind)
	assert.Equal(t, result.Plans["first"], first[len(first)-1].Text)
}

func TestRunErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		kind  string
	}{
		{"syntax", []string{"o.Customer["}, "SYNTAX"},
		{"unsupported shape", []string{"o.LineItems[0].Product"}, "UNSUPPORTED_SHAPE"},
		{"conflicting filters", []string{
			"o.LineItems.Where(func(li LineItem) bool { return li.Price > 1 })",
			"o.LineItems.Where(func(li LineItem) bool { return li.Price > 2 })",
		}, "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runScenario(t, &Scenario{
				Name:  "errors",
				Specs: []string{shopSpec(t)},
				Cases: []Case{{
					Name:   "c",
					Root:   "Order",
					Paths:  tt.paths,
					Expect: &ExpectClause{Error: tt.kind},
				}},
			})
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			errs := result.events("c", EventError)
			require.NotEmpty(t, errs)
			assert.True(t, strings.HasPrefix(errs[0].Text, tt.kind+": "), errs[0].Text)
			assert.Empty(t, result.Plans)
		})
	}
}

func TestRunStatics(t *testing.T) {
	path := "o.LineItems.Where(func(li LineItem) bool { return li.Price > minPrice })"

	t.Run("captured local fails", func(t *testing.T) {
		result := runScenario(t, &Scenario{
			Name:  "statics",
			Specs: []string{shopSpec(t)},
			Cases: []Case{{Name: "c", Root: "Order", Paths: []string{path}, Expect: &ExpectClause{}}},
		})
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors, "case c: unexpected error CLOSURE_CAPTURE")
	})

	t.Run("declared static walks but has no SQL form", func(t *testing.T) {
		result := runScenario(t, &Scenario{
			Name:    "statics",
			Specs:   []string{shopSpec(t)},
			Statics: []string{"minPrice"},
			Cases: []Case{{
				Name:   "c",
				Root:   "Order",
				Paths:  []string{path},
				Expect: &ExpectClause{Error: "TRANSLATE"},
			}},
		})
		assert.True(t, result.Pass, "errors: %v", result.Errors)
		assert.NotEmpty(t, result.events("c", EventDirective))
		assert.NotContains(t, result.Plans, "c")
	})
}

// =============================================================================
// Expect clauses
// =============================================================================

func TestRunExpectMismatches(t *testing.T) {
	tests := []struct {
		name   string
		paths  []string
		expect ExpectClause
		want   string
	}{
		{
			name:   "unexpected error",
			paths:  []string{"o.LineItems[0].Product"},
			expect: ExpectClause{},
			want:   "case c: unexpected error UNSUPPORTED_SHAPE",
		},
		{
			name:   "missing error",
			paths:  []string{"o.Customer[to].Address"},
			expect: ExpectClause{Error: "CONFLICT"},
			want:   "case c: expected error CONFLICT, got none",
		},
		{
			name:   "wrong error",
			paths:  []string{"o.LineItems[0].Product"},
			expect: ExpectClause{Error: "SYNTAX"},
			want:   "case c: expected error SYNTAX, got UNSUPPORTED_SHAPE",
		},
		{
			name:   "findings",
			paths:  []string{"o.Missing"},
			expect: ExpectClause{Findings: []string{"E102"}},
			want:   "case c: expected findings [E102], got [E101]",
		},
		{
			name:   "calls",
			paths:  []string{"o.Customer[to].Address"},
			expect: ExpectClause{Calls: []string{"Include(func(x Order) any { return x.Customer })"}},
			want: `case c: expected calls ["Include(func(x Order) any { return x.Customer })"], ` +
				`got ["Include(func(x Order) any { return x.Customer })" "ThenInclude(func(x Customer) any { return x.Address })"]`,
		},
		{
			name:   "statements",
			paths:  []string{"o.Customer[to].Address"},
			expect: ExpectClause{Statements: 9},
			want:   "case c: expected 9 statement(s), got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect := tt.expect
			result := runScenario(t, &Scenario{
				Name:  "mismatch",
				Specs: []string{shopSpec(t)},
				Cases: []Case{{Name: "c", Root: "Order", Paths: tt.paths, Expect: &expect}},
			})
			assert.False(t, result.Pass)
			assert.Contains(t, result.Errors, tt.want)
		})
	}
}

// =============================================================================
// Declarations
// =============================================================================

func TestRunDeclarationErrors(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.cue")
	require.NoError(t, os.WriteFile(broken, []byte("model: Order: {"), 0o644))

	invalid := filepath.Join(dir, "invalid.cue")
	require.NoError(t, os.WriteFile(invalid, []byte(`spec: Orphan: {root: "Order", paths: ["o.ID"], imports: ["Nowhere"]}`), 0o644))

	tests := []struct {
		name string
		spec string
		want string
	}{
		{"cue syntax", broken, "compile " + broken},
		{"invalid declarations", invalid, "invalid declarations"},
		{"missing file", filepath.Join(dir, "absent.cue"), "read spec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), &Scenario{
				Name:  "decl",
				Specs: []string{tt.spec},
				Cases: []Case{{Name: "c", Root: "Order", Paths: []string{"o.ID"}}},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, &Scenario{
		Name:  "cancelled",
		Specs: []string{shopSpec(t)},
		Cases: []Case{{Name: "c", Root: "Order", Paths: []string{"o.ID"}}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
