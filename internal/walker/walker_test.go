package walker

import (
	"go/parser"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/testutil"
)

var shop = testutil.Universe()

func mustParse(t *testing.T, src string) path.Path {
	t.Helper()
	p, err := Parse(src, "Order", shop, Options{Statics: []string{"strings"}})
	require.NoError(t, err, src)
	return p
}

func kinds(tr *path.Trace) []path.StepKind {
	out := make([]path.StepKind, len(tr.Steps))
	for i, s := range tr.Steps {
		out[i] = s.Kind
	}
	return out
}

// =============================================================================
// Walk: token recognition
// =============================================================================

func TestWalkRecognizesTokens(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		steps []path.StepKind
	}{
		{"property chain", `o.Customer.Address`,
			[]path.StepKind{path.StepProperty, path.StepProperty}},
		{"each index marker", `o.LineItems[each].Product`,
			[]path.StepKind{path.StepProperty, path.StepIterate, path.StepProperty}},
		{"each method marker", `o.LineItems.Each().Product`,
			[]path.StepKind{path.StepProperty, path.StepIterate, path.StepProperty}},
		{"to markers", `o.Customer[to].Address.To().City`,
			[]path.StepKind{path.StepProperty, path.StepForward, path.StepProperty, path.StepForward, path.StepProperty}},
		{"null forgiving", `(*o.Customer).Address`,
			[]path.StepKind{path.StepProperty, path.StepNullForgive, path.StepProperty}},
		{"filter then each", `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each().Product`,
			[]path.StepKind{path.StepProperty, path.StepFilter, path.StepIterate, path.StepProperty}},
		{"orderings", `o.LineItems.OrderBy(func(li) { return li.Price }).ThenByDescending(func(li) { return li.ID })`,
			[]path.StepKind{path.StepProperty, path.StepSort, path.StepSort}},
		{"cast", `o.Payment.(*CardPayment).Issuer`,
			[]path.StepKind{path.StepProperty, path.StepCast, path.StepProperty}},
		{"parentheses", `((o.Customer)).Address`,
			[]path.StepKind{path.StepProperty, path.StepProperty}},
		{"wrapping lambda", `func(order *Order) any { return order.LineItems[each].Product }`,
			[]path.StepKind{path.StepProperty, path.StepIterate, path.StepProperty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseTrace(tt.src, "Order", shop, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.steps, kinds(tr))
			assert.Equal(t, "Order", tr.RootType)
			assert.Equal(t, tt.src, tr.Source)
		})
	}
}

func TestWalkRootParameterName(t *testing.T) {
	tr, err := ParseTrace(`func(order *Order) any { return order.Customer }`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.Equal(t, "order", tr.Root)

	tr, err = ParseTrace(`ord.Customer`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ord", tr.Root)
}

func TestWalkResolutionFacts(t *testing.T) {
	tr, err := ParseTrace(`o.LineItems[each].Product.Category`, "Order", shop, Options{})
	require.NoError(t, err)

	items := tr.Steps[0]
	assert.True(t, items.Resolved)
	assert.Equal(t, "Order", items.Owner)
	assert.Equal(t, "LineItem", items.Type)
	assert.True(t, items.Collection)
	assert.False(t, items.Nullable)

	product := tr.Steps[2]
	assert.Equal(t, "LineItem", product.Owner)
	assert.True(t, product.Nullable)
	assert.False(t, product.Collection)
}

func TestWalkIsLenient(t *testing.T) {
	// Unresolved members, field access and misplaced filters are recorded,
	// not rejected.
	tr, err := ParseTrace(`o.Missing.Name`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.False(t, tr.Steps[0].Resolved)
	assert.Equal(t, "Order", tr.Steps[0].Owner)
	assert.False(t, tr.Steps[1].Resolved)
	assert.Empty(t, tr.Steps[1].Owner, "only the first failure carries an owner")

	tr, err = ParseTrace(`o.internal.By`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.True(t, tr.Steps[0].IsField)

	tr, err = ParseTrace(`o.Customer.Where(func(c Customer) bool { return c.ID > 0 })`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.Equal(t, path.StepFilter, tr.Steps[1].Kind)
}

func TestWalkRecordsUnresolvedPredicateMembers(t *testing.T) {
	tr, err := ParseTrace(`o.LineItems.Where(func(li LineItem) bool { return li.Cost > 1 && li.Product.Name != "" })[each]`, "Order", shop, Options{})
	require.NoError(t, err)

	filter := tr.Steps[1]
	require.Len(t, filter.Unresolved, 1)
	assert.Equal(t, "Cost", filter.Unresolved[0].String())
}

func TestWalkCastFacts(t *testing.T) {
	tr, err := ParseTrace(`o.Payment.(*CardPayment).Issuer`, "Order", shop, Options{})
	require.NoError(t, err)
	cast := tr.Steps[1]
	assert.Equal(t, "Payment", cast.From)
	assert.True(t, cast.Compatible)
	assert.True(t, cast.Pointer)
	assert.Equal(t, "CardPayment", tr.Steps[2].Owner)

	tr, err = ParseTrace(`o.Payment.(*Customer).Name`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.False(t, tr.Steps[1].Compatible)
}

// =============================================================================
// Walk: failures
// =============================================================================

func TestWalkFailures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		soft bool
	}{
		{"syntax", `o.LineItems[`, KindSyntax, false},
		{"index not a marker", `o.LineItems[0].Product`, KindUnsupportedShape, false},
		{"foreign root", `func(o *Order) any { return other.Customer }`, KindUnsupportedShape, false},
		{"unknown method", `o.LineItems.First()`, KindUnsupportedShape, false},
		{"binary expression", `o.ID + 1`, KindUnsupportedShape, false},
		{"no navigation", `o`, KindUnsupportedShape, false},
		{"lambda root type mismatch", `func(c *Customer) any { return c.Address }`, KindUnsupportedShape, false},
		{"filter is not a lambda", `o.LineItems.Where(pred)`, KindUnsupportedShape, false},
		{"closure capture", `o.LineItems.Where(func(li LineItem) bool { return li.Price > threshold }).Each()`, KindClosureCapture, true},
		{"capture in ordering", `o.LineItems.OrderBy(func(li LineItem) int { return li.Price * factor })`, KindClosureCapture, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrace(tt.src, "Order", shop, Options{})
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, tt.soft, IsSoft(err))
		})
	}
}

func TestWalkUnknownRootType(t *testing.T) {
	_, err := ParseTrace(`o.Customer`, "Invoice", shop, Options{})
	assert.True(t, IsKind(err, KindUnknownType))
}

func TestWalkStaticsAreNotCaptures(t *testing.T) {
	_, err := ParseTrace(`o.LineItems.Where(func(li LineItem) bool { return strings.HasPrefix(li.Name, "x") })`, "Order", shop,
		Options{Statics: []string{"strings"}})
	assert.NoError(t, err)
}

// =============================================================================
// Reduce
// =============================================================================

func TestParseExample1(t *testing.T) {
	p := mustParse(t, `o.LineItems[each].Product`)

	require.Equal(t, 2, p.Len())
	assert.Equal(t, path.Segment{Property: "LineItems", SourceType: "Order", TargetType: "LineItem", IsCollection: true}, p.Segment(0))
	assert.Equal(t, path.Segment{Property: "Product", SourceType: "LineItem", TargetType: "Product"}, p.Segment(1))
}

func TestParseCastStringRoundTrips(t *testing.T) {
	p := mustParse(t, `o.Payment.(*CardPayment).Issuer`)
	require.Equal(t, "x.Payment.(*CardPayment).Issuer", p.String())
	assert.True(t, p.Equal(mustParse(t, p.String())))
}

func TestReduceFilterAfterEachAttachesToCollection(t *testing.T) {
	p := mustParse(t, `o.LineItems[each].Where(func(li LineItem) bool { return li.Price > 100 }).OrderBy(func(li LineItem) int { return li.ID }).Product`)

	require.Equal(t, 2, p.Len())
	assert.True(t, p.Equal(mustParse(t, `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).OrderBy(func(li LineItem) int { return li.ID })[each].Product`)))
	assert.Nil(t, p.Segment(1).Filter)
}

func TestReduceMethodAccessMessage(t *testing.T) {
	_, err := Parse(`o.Payment.(*CardPayment).Amount`, "Order", shop, Options{})
	assert.EqualError(t, err, "FIELD_ACCESS: CardPayment.Amount is a method, not a property")
}

func TestReduceAttachesFilterToCollection(t *testing.T) {
	p := mustParse(t, `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each().Product`)

	require.Equal(t, 2, p.Len())
	assert.NotNil(t, p.Segment(0).Filter)
	assert.Nil(t, p.Segment(1).Filter, "a filter never survives past the segment it modifies")
}

func TestReduceOrderingsInDeclaredOrder(t *testing.T) {
	p := mustParse(t, `o.LineItems.OrderByDescending(func(li LineItem) int { return li.Price }).ThenBy(func(li LineItem) int { return li.ID })[each].Product`)

	ords := p.Segment(0).Orderings
	require.Len(t, ords, 2)
	assert.True(t, ords[0].Descending)
	assert.False(t, ords[1].Descending)
	assert.Equal(t, "func(li LineItem) int { return li.Price }", expr.Format(ords[0].Key))
	assert.Equal(t, "func(li LineItem) int { return li.ID }", expr.Format(ords[1].Key))
}

func TestReduceFailures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
	}{
		{"unresolved property", `o.Missing`, KindUnresolvedProperty},
		{"field access", `o.internal.By`, KindFieldAccess},
		{"filter on reference", `o.Customer.Where(func(c Customer) bool { return c.ID > 0 })`, KindNonCollection},
		{"filter after cast", `o.Payment.(*CardPayment).Where(func(p CardPayment) bool { return p.Total > 0 })`, KindNonCollection},
		{"method access", `o.Payment.(*CardPayment).Amount`, KindFieldAccess},
		{"second filter through each", `o.LineItems.Where(func(li LineItem) bool { return li.ID > 0 })[each].Where(func(li LineItem) bool { return li.Price > 0 })`, KindDuplicateFilter},
		{"sort before any property", `o.OrderBy(func(x Order) int { return x.ID }).Customer`, KindNonCollection},
		{"duplicate filter", `o.LineItems.Where(func(li LineItem) bool { return li.ID > 0 }).Where(func(li LineItem) bool { return li.Price > 0 })`, KindDuplicateFilter},
		{"then without primary", `o.LineItems.ThenBy(func(li LineItem) int { return li.ID })`, KindUnsupportedShape},
		{"second primary ordering", `o.LineItems.OrderBy(func(li LineItem) int { return li.ID }).OrderBy(func(li LineItem) int { return li.Price })`, KindUnsupportedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, "Order", shop, Options{})
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.False(t, IsSoft(err))

			var we *WalkError
			require.ErrorAs(t, err, &we)
			assert.GreaterOrEqual(t, we.Step, 0)
		})
	}
}

func TestReduceMissingEachStillReduces(t *testing.T) {
	// Marker placement is the validator's concern; reduction only needs
	// resolved properties.
	p := mustParse(t, `o.LineItems.Product`)
	assert.Equal(t, 2, p.Len())
}

// =============================================================================
// Properties
// =============================================================================

func TestParseAlphaInvariance(t *testing.T) {
	pairs := [][2]string{
		{`o.LineItems[each].Product`, `order.LineItems[each].Product`},
		{`o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each()`,
			`func(x *Order) any { return x.LineItems.Where(func(y LineItem) bool { return y.Price > 100 }).Each() }`},
		{`o.LineItems.OrderBy(func(a LineItem) int { return a.Price })`, `q.LineItems.OrderBy(func(b) { return b.Price })`},
	}
	for _, pair := range pairs {
		a, b := mustParse(t, pair[0]), mustParse(t, pair[1])
		assert.True(t, a.Equal(b), "%s vs %s", pair[0], pair[1])
		assert.Equal(t, a.Hash(), b.Hash())
	}
}

func TestParseConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]path.Path, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Parse(`o.LineItems[each].Product.Category`, "Order", shop, Options{})
			if err == nil {
				results[i] = p
			}
		}(i)
	}
	wg.Wait()
	for _, p := range results {
		assert.True(t, p.Equal(results[0]))
	}
}

// =============================================================================
// Literal and offsets
// =============================================================================

func TestLiteral(t *testing.T) {
	e, err := parser.ParseExpr("`o.Customer`")
	require.NoError(t, err)
	src, err := Literal(e)
	require.NoError(t, err)
	assert.Equal(t, "o.Customer", src)

	e, err = parser.ParseExpr("pathVar")
	require.NoError(t, err)
	_, err = Literal(e)
	assert.True(t, IsKind(err, KindVariableBound))
	assert.True(t, IsSoft(err))
}

func TestOffset(t *testing.T) {
	tr, err := ParseTrace(`o.Missing`, "Order", shop, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, Offset(tr.Steps[0].Pos))
	assert.Equal(t, -1, Offset(0))
}

// =============================================================================
// Identity
// =============================================================================

func TestIdentity(t *testing.T) {
	identity := func(src string) *expr.Lambda {
		e, err := parser.ParseExpr(src)
		require.NoError(t, err)
		l, err := Identity(e, "Order", Options{})
		require.NoError(t, err, src)
		return l
	}

	same := [][2]string{
		{`o.LineItems[each].Product`, `order.LineItems[each].Product`},
		{`o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each()`,
			`func(x *Order) any { return x.LineItems.Where(func(y LineItem) bool { return y.Price > 100 }).Each() }`},
	}
	for _, pair := range same {
		a, b := identity(pair[0]), identity(pair[1])
		assert.True(t, expr.Equal(a, b), "%s vs %s", pair[0], pair[1])
		assert.Equal(t, expr.Hash(a), expr.Hash(b))
	}

	differ := [][2]string{
		{`o.LineItems[each].Product`, `o.LineItems.Each().Product`},
		{`o.Customer[to].Address`, `o.Customer.Address`},
		{`o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })`,
			`o.LineItems.Where(func(li LineItem) bool { return li.Price > 200 })`},
	}
	for _, pair := range differ {
		assert.False(t, expr.Equal(identity(pair[0]), identity(pair[1])), "%s vs %s", pair[0], pair[1])
	}
}

func TestIdentityCapture(t *testing.T) {
	e, err := parser.ParseExpr(`o.LineItems.Where(func(li LineItem) bool { return li.Price > limit })`)
	require.NoError(t, err)
	_, err = Identity(e, "Order", Options{})
	assert.True(t, IsKind(err, KindClosureCapture))
}
