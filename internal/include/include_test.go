package include

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/testutil"
	"github.com/roach88/eagerpath/internal/walker"
)

func build(t *testing.T, c *registry.Cache, name string, exprs ...string) *registry.Spec {
	t.Helper()
	s, err := registry.NewBuilder(c, name, "Order").Include(exprs...).Build()
	require.NoError(t, err)
	return s
}

func TestApplyRecordsChain(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	spec, err := registry.NewBuilder(c, "OrderDetails", "Order").
		Include(`o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each].Product`, `o.Customer[to].Address`).
		Split().
		Build()
	require.NoError(t, err)

	var rec Recorder
	require.NoError(t, Apply(context.Background(), &rec, spec))

	assert.True(t, rec.Options.Split)
	require.Len(t, rec.Directives, 4)
	assert.Equal(t,
		"q.AsSplitQuery()"+
			".Include(func(x Order) any { return x.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }) })"+
			".ThenIncludeMany(func(x LineItem) any { return x.Product })"+
			".Include(func(x Order) any { return x.Customer })"+
			".ThenInclude(func(x Customer) any { return x.Address })",
		rec.String())
}

func TestApplyMergesOptions(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	a, err := registry.NewBuilder(c, "A", "Order").Include(`o.Customer`).Tracking(registry.TrackingIdentityResolution).Build()
	require.NoError(t, err)
	b, err := registry.NewBuilder(c, "B", "Order").Include(`o.LineItems`).Tracking(registry.TrackingNone).Build()
	require.NoError(t, err)

	var rec Recorder
	require.NoError(t, Apply(context.Background(), &rec, a, b))
	assert.Equal(t, registry.Options{Tracking: registry.TrackingNone}, rec.Options)
	assert.Contains(t, rec.String(), "q.AsNoTracking().Include(")
}

func TestApplyRejectsConflicts(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	a := build(t, c, "A", `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each]`)
	b := build(t, c, "B", `o.LineItems.Where(func(li LineItem) bool { return li.Price > 50 })[each].Product`)

	var rec Recorder
	err := Apply(context.Background(), &rec, a, b)
	require.Error(t, err)
	assert.True(t, lower.IsConflict(err))
	assert.False(t, rec.configured, "nothing is applied when paths conflict")
	assert.Empty(t, rec.Directives)
}

func TestApplySharedFilter(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	a := build(t, c, "A", `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each()`)
	b := build(t, c, "B", `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each().Product`)

	var rec Recorder
	require.NoError(t, Apply(context.Background(), &rec, a, b))
	assert.Len(t, rec.Directives, 3)
}

func TestApplyRejectsMixedRoots(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	a := build(t, c, "A", `o.Customer`)
	b, err := registry.NewBuilder(c, "B", "Customer").Include(`c.Address`).Build()
	require.NoError(t, err)

	var rec Recorder
	assert.Error(t, Apply(context.Background(), &rec, a, b))
}

type failingTarget struct {
	Recorder
	failOn string
}

func (f *failingTarget) Include(d lower.Directive) error {
	if d.Property == f.failOn {
		return errors.New("navigation not mapped")
	}
	return f.Recorder.Include(d)
}

func TestApplyPropagatesTargetErrors(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	spec := build(t, c, "A", `o.LineItems[each].Product`)

	target := &failingTarget{failOn: "Product"}
	err := Apply(context.Background(), target, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigation not mapped")
	assert.Len(t, target.Directives, 1)
}

func TestApplyHonoursCancellation(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	spec := build(t, c, "A", `o.Customer`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rec Recorder
	assert.ErrorIs(t, Apply(ctx, &rec, spec), context.Canceled)
}

func TestApplierLogsToInjectedLogger(t *testing.T) {
	c := registry.NewCache(testutil.Universe(), walker.Options{})
	spec := build(t, c, "A", `o.LineItems[each].Product`, `o.Customer`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var rec Recorder
	require.NoError(t, New(WithLogger(logger)).Apply(context.Background(), &rec, spec))
	assert.Contains(t, buf.String(), `msg="applied path" path=x.LineItems[each].Product directives=2`)
	assert.Contains(t, buf.String(), `msg="applied path" path=x.Customer directives=1`)
}

func TestRecorderRejectsOrphanContinuation(t *testing.T) {
	var rec Recorder
	err := rec.Include(lower.Directive{Kind: lower.KindContinuation, Property: "Product"})
	assert.Error(t, err)
}
