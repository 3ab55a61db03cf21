// Package walker compiles path expressions into the segment model.
//
// A path expression is Go expression syntax rooted at a parameter:
//
//	o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 }).Each().Product
//	o.Customer[to].Address
//	func(order *Order) any { return order.Payment.(*CardPayment).Issuer }
//
// Compilation has two passes. Walk unwinds the expression right to left into
// an explicit accumulator, reverses it into root-to-leaf order and annotates
// every step with what the type universe says about it. Walk is lenient:
// unresolved members, field access and misplaced filters are recorded on the
// Trace for the validator rather than failing. Reduce then folds the Trace
// into Segments and is strict about exactly those conditions.
//
// Walk, Reduce and Parse are pure functions; they are safe for concurrent use.
package walker

import (
	"errors"
	"go/ast"
	"slices"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/typeinfo"
)

// Marker identifiers usable as index expressions: x[each], x[to].
const (
	MarkerEach = "each"
	MarkerTo   = "to"
)

// Options configures a walk.
type Options struct {
	// Statics are identifiers filter and sort lambdas may reference without
	// being treated as closure capture (package qualifiers, constants).
	Statics []string
}

func (o Options) scope() expr.Scope {
	return expr.Scope{Statics: o.Statics}
}

// Walk recovers the raw step sequence of e, whose root parameter has static
// type rootType.
//
// The root parameter is the leftmost identifier of e, or the parameter of a
// wrapping function literal func(o *Order) any { return ... }.
func Walk(e ast.Expr, rootType string, u typeinfo.Universe, opts Options) (*path.Trace, error) {
	root, body, err := splitRoot(e, rootType)
	if err != nil {
		return nil, err
	}
	if !u.Lookup(rootType) {
		return nil, newError(KindUnknownType, e.Pos(), -1, "root type %s is not known", rootType)
	}

	steps, err := unwind(body, root, opts)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(steps, func(s path.Step) bool { return s.Kind == path.StepProperty }) {
		return nil, newError(KindUnsupportedShape, e.Pos(), -1, "path navigates no property")
	}

	t := &path.Trace{Root: root, RootType: rootType, Steps: steps}
	resolve(t, u)
	return t, nil
}

// splitRoot separates a wrapping function literal from its body.
func splitRoot(e ast.Expr, rootType string) (root string, body ast.Expr, err error) {
	e = unparen(e)
	fn, ok := e.(*ast.FuncLit)
	if !ok {
		id := leftmost(e)
		if id == nil {
			return "", nil, newError(KindUnsupportedShape, e.Pos(), -1, "path has no root parameter")
		}
		return id.Name, e, nil
	}

	if fn.Type.Params == nil || fn.Type.Params.NumFields() != 1 {
		return "", nil, newError(KindUnsupportedShape, fn.Pos(), -1, "path lambda must take exactly one parameter")
	}
	field := fn.Type.Params.List[0]
	name := ""
	if len(field.Names) == 1 {
		name = field.Names[0].Name
		if declared := typeinfo.ParseTypeRef(exprString(field.Type)).Name; declared != rootType {
			return "", nil, newError(KindUnsupportedShape, field.Type.Pos(), -1,
				"path parameter has type %s, want %s", declared, rootType)
		}
	} else if id, ok := field.Type.(*ast.Ident); ok {
		name = id.Name
	} else {
		return "", nil, newError(KindUnsupportedShape, field.Pos(), -1, "path parameter must be named")
	}

	if len(fn.Body.List) != 1 {
		return "", nil, newError(KindUnsupportedShape, fn.Body.Pos(), -1, "path lambda body must be a single return statement")
	}
	ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return "", nil, newError(KindUnsupportedShape, fn.Body.Pos(), -1, "path lambda body must be a single return statement")
	}
	return name, ret.Results[0], nil
}

// unwind walks from the outermost token toward the root parameter, appending
// each recognized token to an accumulator, then reverses the accumulator into
// root-to-leaf order.
func unwind(body ast.Expr, root string, opts Options) ([]path.Step, error) {
	var acc []path.Step
	cur := body

	for {
		switch n := cur.(type) {
		case *ast.ParenExpr:
			cur = n.X
			continue

		case *ast.Ident:
			if n.Name != root {
				return nil, newError(KindUnsupportedShape, n.Pos(), -1, "%s is not the root parameter %s", n.Name, root)
			}
			slices.Reverse(acc)
			return acc, nil

		case *ast.StarExpr:
			acc = append(acc, path.Step{Kind: path.StepNullForgive, Pos: n.Star})
			cur = n.X
			continue

		case *ast.TypeAssertExpr:
			if n.Type == nil {
				return nil, newError(KindUnsupportedShape, n.Pos(), -1, "type switch guard in path")
			}
			ref := typeinfo.ParseTypeRef(exprString(n.Type))
			acc = append(acc, path.Step{Kind: path.StepCast, Pos: n.Lparen, Name: ref.Name, Pointer: ref.Pointer})
			cur = n.X
			continue

		case *ast.IndexExpr:
			marker, ok := n.Index.(*ast.Ident)
			switch {
			case ok && marker.Name == MarkerEach:
				acc = append(acc, path.Step{Kind: path.StepIterate, Pos: n.Lbrack})
			case ok && marker.Name == MarkerTo:
				acc = append(acc, path.Step{Kind: path.StepForward, Pos: n.Lbrack})
			default:
				return nil, newError(KindUnsupportedShape, n.Lbrack, -1, "index %s is not a path marker", exprString(n.Index))
			}
			cur = n.X
			continue

		case *ast.SelectorExpr:
			acc = append(acc, path.Step{Kind: path.StepProperty, Pos: n.Sel.Pos(), Name: n.Sel.Name})
			cur = n.X
			continue

		case *ast.CallExpr:
			step, recv, err := callStep(n, opts)
			if err != nil {
				return nil, err
			}
			acc = append(acc, step)
			cur = recv
			continue
		}

		return nil, newError(KindUnsupportedShape, cur.Pos(), -1, "unsupported expression shape %s", exprString(cur))
	}
}

// sortVerbs maps sort calls to (secondary, descending).
var sortVerbs = map[string][2]bool{
	"OrderBy":           {false, false},
	"OrderByDescending": {false, true},
	"ThenBy":            {true, false},
	"ThenByDescending":  {true, true},
}

// callStep recognizes a marker, filter or sort call and returns its step and
// receiver expression.
func callStep(n *ast.CallExpr, opts Options) (path.Step, ast.Expr, error) {
	sel, ok := unparen(n.Fun).(*ast.SelectorExpr)
	if !ok {
		return path.Step{}, nil, newError(KindUnsupportedShape, n.Pos(), -1, "call of %s is not a path method", exprString(n.Fun))
	}
	method := sel.Sel.Name

	switch {
	case method == "Each" && len(n.Args) == 0:
		return path.Step{Kind: path.StepIterate, Pos: sel.Sel.Pos()}, sel.X, nil

	case method == "To" && len(n.Args) == 0:
		return path.Step{Kind: path.StepForward, Pos: sel.Sel.Pos()}, sel.X, nil

	case method == "Where" && len(n.Args) == 1:
		lam, err := lambdaArg(n.Args[0], opts)
		if err != nil {
			return path.Step{}, nil, err
		}
		return path.Step{Kind: path.StepFilter, Pos: sel.Sel.Pos(), Name: method, Lambda: lam}, sel.X, nil
	}

	if verb, ok := sortVerbs[method]; ok && len(n.Args) == 1 {
		lam, err := lambdaArg(n.Args[0], opts)
		if err != nil {
			return path.Step{}, nil, err
		}
		return path.Step{
			Kind:       path.StepSort,
			Pos:        sel.Sel.Pos(),
			Name:       method,
			Lambda:     lam,
			Secondary:  verb[0],
			Descending: verb[1],
		}, sel.X, nil
	}

	return path.Step{}, nil, newError(KindUnsupportedShape, sel.Sel.Pos(), -1, "%s with %d arguments is not a path method", method, len(n.Args))
}

func lambdaArg(arg ast.Expr, opts Options) (*expr.Lambda, error) {
	lam, err := expr.LambdaFromGo(arg, opts.scope())
	if err == nil {
		if len(lam.Params) != 1 {
			return nil, newError(KindUnsupportedShape, arg.Pos(), -1, "lambda must take exactly one parameter")
		}
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

// resolve annotates the trace with resolution facts in one forward pass.
// Once a property fails to resolve, later steps are left unresolved with an
// empty owner so that only the first failure is reported.
func resolve(t *path.Trace, u typeinfo.Universe) {
	cur := t.RootType
	lost := false

	for i := range t.Steps {
		s := &t.Steps[i]
		switch s.Kind {
		case path.StepProperty:
			if lost {
				continue
			}
			s.Owner = cur
			m, ok := u.Member(cur, s.Name)
			if !ok {
				lost = true
				continue
			}
			s.Resolved = true
			s.IsField = m.Kind == typeinfo.KindField
			s.IsMethod = m.Kind == typeinfo.KindMethod
			s.Type = m.Type.Target()
			s.Collection = m.Type.Collection
			s.Nullable = m.Type.Nullable()
			cur = s.Type

		case path.StepFilter, path.StepSort:
			if lost {
				continue
			}
			for _, c := range expr.ParamChains(s.Lambda) {
				if c.Param != s.Lambda.Params[0] {
					continue
				}
				if n := typeinfo.ResolveChain(u, cur, c.Members); n < len(c.Members) {
					s.Unresolved = append(s.Unresolved, c)
				}
			}

		case path.StepCast:
			if lost {
				continue
			}
			s.From = cur
			s.Compatible = typeinfo.CastCompatible(u, cur, s.Name)
			if !u.Lookup(s.Name) {
				lost = true
				continue
			}
			cur = s.Name
		}
	}
}
