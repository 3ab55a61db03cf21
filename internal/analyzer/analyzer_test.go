package analyzer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagerpath/internal/testutil"
	"github.com/roach88/eagerpath/internal/validate"
)

const queriesSource = `package shop

import (
	"strings"

	"github.com/roach88/eagerpath/eager"
)

const minPrice = 100

var (
	products = eager.Path[Order]("o.LineItems[each].Product")
	missing  = eager.Path[Order]("o.LineItems.Product")
	nullable = eager.Path[*Order]("o.Customer.Address")
	byName   = eager.Path[Order]("o.LineItems.Where(func(li LineItem) bool { return strings.HasPrefix(li.Name, \"A\") && li.Price > minPrice })")
	badIndex = eager.Path[Order]("o.LineItems[0]")
	issuer   = eager.NewSpec[Order]("Billing").Split().Include("o.Payment.(*CardPayment).Issuer")
)

func load(q eager.Query, dynamic string) {
	limit := 5
	_ = limit
	eager.Include[Order](q, dynamic)
	eager.Include[Order](q, "o.LineItems.Where(func(li LineItem) bool { return li.Price > limit })")
	_, _ = eager.Include[Order](q,
		"o.LineItems.Where(func(li LineItem) bool { return li.Price > 1 })",
		"o.LineItems.Where(func(li LineItem) bool { return li.Price > 2 })[each].Product")
}
`

var quiet = Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

// writePackage writes the shop fixture plus files into a temp dir.
func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.go"), []byte(testutil.ShopSource), 0o644))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

// at returns the 1-based line and column of the first occurrence of token
// on the first line of src containing marker.
func at(t *testing.T, src, marker, token string) (int, int) {
	t.Helper()
	for i, line := range strings.Split(src, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		col := strings.Index(line, token)
		require.GreaterOrEqual(t, col, 0, "%q not on line %q", token, line)
		return i + 1, col + 1
	}
	t.Fatalf("no line contains %q", marker)
	return 0, 0
}

func codes(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}

// =============================================================================
// Scan
// =============================================================================

func TestScanFindsCallSites(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})

	pkg, err := Scan(dir, false)
	require.NoError(t, err)

	assert.Equal(t, "shop", pkg.Name)
	assert.Len(t, pkg.Files, 2)
	assert.True(t, pkg.Schema.Lookup("Order"))
	assert.Contains(t, pkg.Statics, "strings")
	assert.Contains(t, pkg.Statics, "minPrice")
	assert.NotContains(t, pkg.Statics, "eager")

	require.Len(t, pkg.Calls, 9)
	kinds := make(map[CallKind]int)
	for _, c := range pkg.Calls {
		kinds[c.Kind]++
		assert.Equal(t, "Order", c.Root, "pointer type arguments name their target")
	}
	assert.Equal(t, map[CallKind]int{CallPath: 5, CallSpec: 1, CallInclude: 3}, kinds)

	last := pkg.Calls[len(pkg.Calls)-1]
	assert.Equal(t, CallInclude, last.Kind)
	require.Len(t, last.Args, 2, "the query argument is not a path")
}

func TestScanNonLiteralArgument(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})

	pkg, err := Scan(dir, false)
	require.NoError(t, err)

	var found bool
	for _, c := range pkg.Calls {
		for _, a := range c.Args {
			if a.Err != nil {
				found = true
				assert.Contains(t, a.Err.Error(), "VARIABLE_BOUND")
				assert.Empty(t, a.Source)
			}
		}
	}
	assert.True(t, found)
}

func TestScanImportAlias(t *testing.T) {
	src := `package shop

import ep "github.com/roach88/eagerpath/eager"

var p = ep.Path[Order]("o.Customer")
var other = eager.Path[Order]("o.Status")
`
	dir := writePackage(t, map[string]string{"alias.go": src})

	pkg, err := Scan(dir, false)
	require.NoError(t, err)
	require.Len(t, pkg.Calls, 1)
	assert.Equal(t, "o.Customer", pkg.Calls[0].Args[0].Source)
}

func TestScanSkipsGeneratedAndTestFiles(t *testing.T) {
	gen := `// Code generated by eagerpath. DO NOT EDIT.

package shop

import "github.com/roach88/eagerpath/eager"

var g = eager.Path[Order]("o.Nope")
`
	test := `package shop

import "github.com/roach88/eagerpath/eager"

var tp = eager.Path[Order]("o.Customer")
`
	dir := writePackage(t, map[string]string{"gen.go": gen, "shop_test.go": test})

	pkg, err := Scan(dir, false)
	require.NoError(t, err)
	assert.Empty(t, pkg.Calls)

	pkg, err = Scan(dir, true)
	require.NoError(t, err)
	require.Len(t, pkg.Calls, 1)
	assert.Equal(t, "o.Customer", pkg.Calls[0].Args[0].Source)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), false)
	assert.Error(t, err)

	_, err = Scan(t.TempDir(), false)
	assert.ErrorContains(t, err, "no Go files")

	dir := writePackage(t, map[string]string{"broken.go": "package shop\nfunc {"})
	_, err = Scan(dir, false)
	assert.Error(t, err)
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalyzeDiagnostics(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)

	assert.Equal(t, []string{"E102", "W106", "UNSUPPORTED_SHAPE", "CONFLICT"}, codes(r.Diagnostics))
	assert.True(t, r.HasErrors())
	assert.Equal(t, 1, r.Warnings())

	tests := []struct {
		name         string
		idx          int
		marker, tok  string
		severity     validate.Severity
		fix          string
		sourcePrefix string
	}{
		{"missing each", 0, "missing  =", "LineItems", validate.SeverityError, "o.LineItems[each].Product", "o.LineItems.Product"},
		{"missing to", 1, "nullable =", "Customer", validate.SeverityWarning, "o.Customer[to].Address", "o.Customer.Address"},
		{"unsupported index", 2, "badIndex =", "[0]", validate.SeverityError, "", "o.LineItems[0]"},
		{"conflict", 3, "_, _ =", "eager", validate.SeverityError, "", "o.LineItems.Where"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Diagnostics[tt.idx]
			line, col := at(t, queriesSource, tt.marker, tt.tok)
			assert.Equal(t, line, d.Pos.Line)
			assert.Equal(t, col, d.Pos.Column)
			assert.Equal(t, "queries.go", filepath.Base(d.Pos.Filename))
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, tt.fix, d.Fix)
			assert.True(t, strings.HasPrefix(d.Source, tt.sourcePrefix), d.Source)
		})
	}

	assert.Contains(t, r.Diagnostics[3].Message, "conflicting filter on LineItems")
}

func TestAnalyzeCompiled(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)

	var sources []string
	for _, c := range r.Compiled {
		assert.Equal(t, "Order", c.Root)
		assert.Equal(t, "Order", c.Path.Root())
		sources = append(sources, c.Source)
	}
	assert.Equal(t, []string{
		"o.LineItems[each].Product",
		"o.Customer.Address",
		`o.LineItems.Where(func(li LineItem) bool { return strings.HasPrefix(li.Name, "A") && li.Price > minPrice })`,
		"o.Payment.(*CardPayment).Issuer",
	}, sources, "warnings do not block compilation; conflicts do")

	issuer := r.Compiled[3].Path
	require.Equal(t, 2, issuer.Len())
	assert.Equal(t, "CardPayment", issuer.Segment(1).SourceType)
}

func TestAnalyzeConflictingSiteCompilesNothing(t *testing.T) {
	const src = `package shop

import "github.com/roach88/eagerpath/eager"

func load(q eager.Query) {
	_, _ = eager.Include[Order](q,
		"o.LineItems.OrderBy(func(li LineItem) int { return li.Price })[each].Product",
		"o.LineItems.OrderBy(func(li LineItem) string { return li.Name })")
	_, _ = eager.Include[Order](q,
		"o.LineItems.OrderBy(func(li LineItem) int { return li.Price })[each].Product",
		"o.LineItems.OrderBy(func(li LineItem) int { return li.Price })")
}
`
	dir := writePackage(t, map[string]string{"queries.go": src})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)

	require.Equal(t, []string{"CONFLICT"}, codes(r.Diagnostics))
	assert.Contains(t, r.Diagnostics[0].Message, "conflicting ordering on LineItems")

	var sources []string
	for _, c := range r.Compiled {
		sources = append(sources, c.Source)
	}
	assert.Equal(t, []string{
		"o.LineItems.OrderBy(func(li LineItem) int { return li.Price })[each].Product",
		"o.LineItems.OrderBy(func(li LineItem) int { return li.Price })",
	}, sources, "only the composable call site is compiled")
}

func TestAnalyzeSkipsSoftFailures(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)

	require.Len(t, r.Skipped, 2)
	assert.Contains(t, r.Skipped[0].Reason, "VARIABLE_BOUND")
	assert.Contains(t, r.Skipped[1].Reason, "CLOSURE_CAPTURE")
	for _, d := range r.Diagnostics {
		assert.NotContains(t, d.Message, "limit", "soft failures are never diagnostics")
	}
}

func TestAnalyzeExtraStatics(t *testing.T) {
	src := `package shop

import "github.com/roach88/eagerpath/eager"

var p = eager.Path[Order]("o.LineItems.Where(func(li LineItem) bool { return li.Price > threshold })")
`
	dir := writePackage(t, map[string]string{"q.go": src})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)
	assert.Empty(t, r.Compiled)
	assert.Len(t, r.Skipped, 1)

	opts := quiet
	opts.Statics = []string{"threshold"}
	r, err = Analyze(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Len(t, r.Compiled, 1)
	assert.Empty(t, r.Skipped)
}

func TestAnalyzeRespellingKeepsPositions(t *testing.T) {
	src := `package shop

import "github.com/roach88/eagerpath/eager"

var (
	a = eager.Path[Order]("o.LineItems.Product")
	b = eager.Path[Order]("order.LineItems.Product")
)
`
	dir := writePackage(t, map[string]string{"q.go": src})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)
	require.Len(t, r.Diagnostics, 2)

	line, col := at(t, src, "b = ", "LineItems")
	assert.Equal(t, line, r.Diagnostics[1].Pos.Line)
	assert.Equal(t, col, r.Diagnostics[1].Pos.Column)
	assert.Equal(t, "order.LineItems[each].Product", r.Diagnostics[1].Fix)
}

func TestAnalyzeEscapedLiteralFallsBackToLiteralPosition(t *testing.T) {
	src := "package shop\n\nimport \"github.com/roach88/eagerpath/eager\"\n\nvar p = eager.Path[Order](\"o.LineItems.Where(func(li LineItem) bool { return li.Name == \\\"x\\\" }).Product\")\n"
	dir := writePackage(t, map[string]string{"q.go": src})

	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)
	require.Len(t, r.Diagnostics, 1)

	line, col := at(t, src, "var p", `"o.`)
	assert.Equal(t, line, r.Diagnostics[0].Pos.Line)
	assert.Equal(t, col, r.Diagnostics[0].Pos.Column)
}

func TestAnalyzeCanceled(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, dir, quiet)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticString(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})
	r, err := Analyze(context.Background(), dir, quiet)
	require.NoError(t, err)

	line, col := at(t, queriesSource, "missing  =", "LineItems")
	s := r.Diagnostics[0].String()
	assert.True(t, strings.HasSuffix(s, "E102 error: LineItems is a collection; use LineItems[each] before navigating to Product"), s)
	assert.Contains(t, s, filepath.Join(dir, "queries.go"))
	assert.Contains(t, s, ":"+strconv.Itoa(line)+":"+strconv.Itoa(col)+":")
}

// =============================================================================
// Watch
// =============================================================================

func TestWatchReanalyzesOnEdit(t *testing.T) {
	dir := writePackage(t, map[string]string{"queries.go": queriesSource})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, quiet, 20*time.Millisecond, func(r *Result, err error) {
			if err == nil {
				results <- r
			}
		})
	}()

	next := func() *Result {
		t.Helper()
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no analysis within 5s")
			return nil
		}
	}

	first := next()
	assert.Len(t, first.Diagnostics, 4)

	fixed := strings.Replace(queriesSource, `"o.LineItems.Product"`, `"o.LineItems[each].Product"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries.go"), []byte(fixed), 0o644))

	second := next()
	assert.Equal(t, []string{"W106", "UNSUPPORTED_SHAPE", "CONFLICT"}, codes(second.Diagnostics))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "gone"), quiet, 0, func(*Result, error) {})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		want bool
	}{
		{"queries.go", true},
		{"notes.txt", false},
		{".#queries.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join(dir, tt.name), Op: fsnotify.Write}
			assert.Equal(t, tt.want, relevant(ev))
		})
	}
}
