package querysql

import (
	"fmt"
	"go/constant"
	"go/token"
	"strings"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/ir"
	"github.com/roach88/eagerpath/internal/queryir"
)

// TranslateError reports a filter or sort key with no relational form.
type TranslateError struct {
	Lambda string
	Reason string
}

// Error implements the error interface.
func (e *TranslateError) Error() string {
	return fmt.Sprintf("cannot translate %s: %s", e.Lambda, e.Reason)
}

// likeFuncs maps string matchers to LIKE pattern shapes.
var likeFuncs = map[string]string{
	"strings.HasPrefix": "%s%%",
	"strings.HasSuffix": "%%%s",
	"strings.Contains":  "%%%s%%",
}

type translator struct {
	lambda *expr.Lambda
	param  string
}

func (tr *translator) fail(format string, args ...any) error {
	return &TranslateError{Lambda: expr.Format(tr.lambda), Reason: fmt.Sprintf(format, args...)}
}

// TranslateFilter converts a single-parameter boolean lambda into a
// predicate over the element table's columns. Only direct columns of the
// element are addressable; a member chain through another navigation is
// rejected.
func TranslateFilter(l *expr.Lambda) (queryir.Predicate, error) {
	tr := &translator{lambda: l, param: l.Params[0]}
	return tr.predicate(l.Body)
}

// TranslateKey converts a sort key lambda into a column.
func TranslateKey(l *expr.Lambda) (string, error) {
	tr := &translator{lambda: l, param: l.Params[0]}
	col, ok := tr.column(l.Body)
	if !ok {
		return "", tr.fail("sort key must be a column of %s", tr.param)
	}
	return col, nil
}

func (tr *translator) predicate(n expr.Node) (queryir.Predicate, error) {
	switch x := n.(type) {
	case *expr.Binary:
		switch x.Op {
		case token.LAND, token.LOR:
			l, err := tr.predicate(x.X)
			if err != nil {
				return nil, err
			}
			r, err := tr.predicate(x.Y)
			if err != nil {
				return nil, err
			}
			if x.Op == token.LAND {
				return queryir.And{Predicates: flatten(true, l, r)}, nil
			}
			return queryir.Or{Predicates: flatten(false, l, r)}, nil
		}
		return tr.compare(x)

	case *expr.Unary:
		if x.Op != token.NOT {
			break
		}
		p, err := tr.predicate(x.X)
		if err != nil {
			return nil, err
		}
		return queryir.Not{Predicate: p}, nil

	case *expr.Call:
		return tr.like(x)

	case *expr.Constant:
		if x.Value != nil && x.Value.Kind() == constant.Bool {
			if constant.BoolVal(x.Value) {
				return queryir.And{}, nil
			}
			return queryir.Or{}, nil
		}
	}

	// A bare boolean column.
	if col, ok := tr.column(n); ok {
		return queryir.Compare{Column: col, Op: queryir.OpEq, Value: ir.IRBool(true)}, nil
	}
	return nil, tr.fail("unsupported predicate %s", expr.Format(n))
}

// flatten merges nested conjunctions (and=true) or disjunctions into one
// list.
func flatten(and bool, ps ...queryir.Predicate) []queryir.Predicate {
	var out []queryir.Predicate
	for _, p := range ps {
		switch x := p.(type) {
		case queryir.And:
			if and {
				out = append(out, x.Predicates...)
				continue
			}
		case queryir.Or:
			if !and {
				out = append(out, x.Predicates...)
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

var compareOps = map[token.Token]queryir.CompareOp{
	token.EQL: queryir.OpEq,
	token.NEQ: queryir.OpNe,
	token.LSS: queryir.OpLt,
	token.LEQ: queryir.OpLe,
	token.GTR: queryir.OpGt,
	token.GEQ: queryir.OpGe,
}

func (tr *translator) compare(b *expr.Binary) (queryir.Predicate, error) {
	op, ok := compareOps[b.Op]
	if !ok {
		return nil, tr.fail("operator %s is not a comparison", b.Op)
	}

	colSide, litSide := b.X, b.Y
	col, ok := tr.column(colSide)
	if !ok {
		colSide, litSide = b.Y, b.X
		op = op.Flip()
		col, ok = tr.column(colSide)
	}
	if !ok {
		return nil, tr.fail("comparison %s has no column operand", expr.Format(b))
	}

	lit, ok := litSide.(*expr.Constant)
	if !ok {
		return nil, tr.fail("%s is not a constant", expr.Format(litSide))
	}
	v, err := tr.value(lit)
	if err != nil {
		return nil, err
	}

	if _, isNull := v.(ir.IRNull); isNull {
		switch op {
		case queryir.OpEq:
			return queryir.IsNull{Column: col}, nil
		case queryir.OpNe:
			return queryir.Not{Predicate: queryir.IsNull{Column: col}}, nil
		}
		return nil, tr.fail("nil compared with %s", op)
	}
	return queryir.Compare{Column: col, Op: op, Value: v}, nil
}

func (tr *translator) like(c *expr.Call) (queryir.Predicate, error) {
	shape, ok := likeFuncs[c.Func]
	if !ok || len(c.Args) != 2 {
		return nil, tr.fail("call %s has no relational form", expr.Format(c))
	}
	col, ok := tr.column(c.Args[0])
	if !ok {
		return nil, tr.fail("%s: first argument must be a column", c.Func)
	}
	lit, ok := c.Args[1].(*expr.Constant)
	if !ok || lit.Value == nil || lit.Value.Kind() != constant.String {
		return nil, tr.fail("%s: second argument must be a string constant", c.Func)
	}
	return queryir.Like{Column: col, Pattern: fmt.Sprintf(shape, escapeLike(constant.StringVal(lit.Value)))}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// column reports whether n is p.Field for the lambda parameter p, possibly
// dereferenced, and returns the column name.
func (tr *translator) column(n expr.Node) (string, bool) {
	if u, ok := n.(*expr.Unary); ok && u.Op == token.MUL {
		n = u.X
	}
	m, ok := n.(*expr.Member)
	if !ok {
		return "", false
	}
	p, ok := m.Object.(*expr.Param)
	if !ok || p.Name != tr.param {
		return "", false
	}
	return Snake(m.Name), true
}

func (tr *translator) value(c *expr.Constant) (ir.IRValue, error) {
	if c.Value == nil {
		return ir.IRNull{}, nil
	}
	switch c.Value.Kind() {
	case constant.Bool:
		return ir.IRBool(constant.BoolVal(c.Value)), nil
	case constant.String:
		return ir.IRString(constant.StringVal(c.Value)), nil
	case constant.Int:
		i, exact := constant.Int64Val(c.Value)
		if !exact {
			return nil, tr.fail("integer %s overflows int64", c.Value.ExactString())
		}
		return ir.IRInt(i), nil
	case constant.Float:
		i, exact := constant.Int64Val(constant.ToInt(c.Value))
		if constant.ToInt(c.Value).Kind() != constant.Int || !exact {
			return nil, tr.fail("float constant %s is not integral", c.Value.ExactString())
		}
		return ir.IRInt(i), nil
	}
	return nil, tr.fail("constant %s has no canonical value", c.Value.ExactString())
}
