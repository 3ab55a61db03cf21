package walker

import (
	"errors"
	"go/ast"

	"github.com/roach88/eagerpath/internal/expr"
)

// Identity converts a whole path expression into a one-parameter lambda
// over its root parameter. Two expressions with equal identities (expr.Equal)
// walk to equal paths, so the identity is a cache key that ignores the
// spelling of bound parameter names.
func Identity(e ast.Expr, rootType string, opts Options) (*expr.Lambda, error) {
	root, body, err := splitRoot(e, rootType)
	if err != nil {
		return nil, err
	}
	sc := expr.Scope{Statics: append([]string{MarkerEach, MarkerTo}, opts.Statics...)}
	lam, err := expr.NewLambda([]string{root}, body, sc)
	if err == nil {
		return lam, nil
	}

	var ce *expr.CaptureError
	if errors.As(err, &ce) {
		return nil, newError(KindClosureCapture, ce.Pos, -1, "lambda captures %s", ce.Name)
	}
	var se *expr.ShapeError
	if errors.As(err, &se) {
		return nil, newError(KindUnsupportedShape, se.Pos, -1, "%s", se.Construct)
	}
	return nil, err
}
