package expr

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"slices"
)

// Scope controls which free identifiers FromGo accepts.
type Scope struct {
	// Statics lists identifiers that may appear free without being a capture:
	// package qualifiers ("time", "strings") and package-level constants.
	Statics []string

	// Params are parameters already bound by an enclosing lambda.
	Params []string
}

// builtins callable without qualification.
var builtins = map[string]bool{
	"len": true, "cap": true, "min": true, "max": true,
	"real": true, "imag": true, "complex": true,
	"string": true, "int": true, "int64": true, "float64": true,
}

// CaptureError reports a free identifier in a lambda: a variable captured
// from the enclosing scope rather than a parameter or a static value.
type CaptureError struct {
	Name string
	Pos  token.Pos
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("closure capture: %q is not a lambda parameter or a static value", e.Name)
}

// ShapeError reports a Go construct with no expression-tree counterpart.
type ShapeError struct {
	Construct string
	Pos       token.Pos
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unsupported expression shape: %s", e.Construct)
}

// IsCapture returns true if err is a closure capture error.
// Uses errors.As to handle wrapped errors.
func IsCapture(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce)
}

// FromGo converts a Go expression into a Node.
//
// Conversion rules:
//   - x.Name -> Member; x.M(args) -> Call{Object, Method}
//   - pkg.F(args) with pkg static, or a builtin -> Call{Func}
//   - cond(c, a, b) -> Conditional
//   - f(args) with f a parameter or function literal -> Invoke
//   - literals, true, false, nil -> Constant
//   - T{A: a} -> MemberInit; T{a, b} -> New
//   - x.(T) -> Convert; *x -> Unary{MUL}; parentheses are transparent
func FromGo(e ast.Expr, sc Scope) (Node, error) {
	c := &converter{statics: sc.Statics, params: slices.Clone(sc.Params)}
	return c.convert(e)
}

// LambdaFromGo converts a function literal into a Lambda. Any other
// expression is rejected with a ShapeError.
func LambdaFromGo(e ast.Expr, sc Scope) (*Lambda, error) {
	e = unparen(e)
	fn, ok := e.(*ast.FuncLit)
	if !ok {
		return nil, &ShapeError{Construct: fmt.Sprintf("expected a function literal, got %s", describe(e)), Pos: e.Pos()}
	}
	c := &converter{statics: sc.Statics, params: slices.Clone(sc.Params)}
	return c.lambda(fn)
}

// NewLambda wraps body as a lambda over the named parameters. Used to treat a
// whole path expression as a single-parameter lambda for caching.
func NewLambda(params []string, body ast.Expr, sc Scope) (*Lambda, error) {
	c := &converter{statics: sc.Statics, params: append(slices.Clone(sc.Params), params...)}
	n, err := c.convert(body)
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: slices.Clone(params), ParamTypes: make([]string, len(params)), Body: n, Func: body.Pos()}, nil
}

type converter struct {
	statics []string
	params  []string
}

func (c *converter) isParam(name string) bool {
	return slices.Contains(c.params, name)
}

func (c *converter) isStatic(name string) bool {
	return slices.Contains(c.statics, name)
}

func (c *converter) convert(e ast.Expr) (Node, error) {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return c.convert(n.X)

	case *ast.Ident:
		return c.ident(n)

	case *ast.BasicLit:
		v := constant.MakeFromLiteral(n.Value, n.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, &ShapeError{Construct: "malformed literal " + n.Value, Pos: n.Pos()}
		}
		return &Constant{Value: v, Lit: n.Value, ValuePos: n.Pos()}, nil

	case *ast.SelectorExpr:
		if id, ok := n.X.(*ast.Ident); ok && !c.isParam(id.Name) && c.isStatic(id.Name) {
			return &Static{Name: id.Name + "." + n.Sel.Name, NamePos: id.Pos()}, nil
		}
		obj, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		return &Member{Object: obj, Name: n.Sel.Name, NamePos: n.Sel.Pos()}, nil

	case *ast.CallExpr:
		return c.call(n)

	case *ast.StarExpr:
		x, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: token.MUL, X: x, OpPos: n.Star}, nil

	case *ast.UnaryExpr:
		x, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: n.Op, X: x, OpPos: n.OpPos}, nil

	case *ast.BinaryExpr:
		x, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		y, err := c.convert(n.Y)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: n.Op, X: x, Y: y, OpPos: n.OpPos}, nil

	case *ast.IndexExpr:
		x, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		idx, err := c.convert(n.Index)
		if err != nil {
			return nil, err
		}
		return &Index{X: x, Index: idx, Lbrack: n.Lbrack}, nil

	case *ast.TypeAssertExpr:
		if n.Type == nil {
			return nil, &ShapeError{Construct: "type switch guard", Pos: n.Pos()}
		}
		x, err := c.convert(n.X)
		if err != nil {
			return nil, err
		}
		return &Convert{X: x, Type: types.ExprString(n.Type), Lparen: n.Lparen}, nil

	case *ast.FuncLit:
		return c.lambda(n)

	case *ast.CompositeLit:
		return c.composite(n)
	}
	return nil, &ShapeError{Construct: describe(e), Pos: e.Pos()}
}

func (c *converter) ident(n *ast.Ident) (Node, error) {
	if c.isParam(n.Name) {
		return &Param{Name: n.Name, NamePos: n.Pos()}, nil
	}
	switch n.Name {
	case "true":
		return &Constant{Value: constant.MakeBool(true), Lit: "true", ValuePos: n.Pos()}, nil
	case "false":
		return &Constant{Value: constant.MakeBool(false), Lit: "false", ValuePos: n.Pos()}, nil
	case "nil":
		return &Constant{Lit: "nil", ValuePos: n.Pos()}, nil
	}
	if c.isStatic(n.Name) {
		return &Static{Name: n.Name, NamePos: n.Pos()}, nil
	}
	return nil, &CaptureError{Name: n.Name, Pos: n.Pos()}
}

func (c *converter) call(n *ast.CallExpr) (Node, error) {
	if n.Ellipsis.IsValid() {
		return nil, &ShapeError{Construct: "variadic call", Pos: n.Pos()}
	}
	args, err := c.list(n.Args)
	if err != nil {
		return nil, err
	}

	switch fun := unparen(n.Fun).(type) {
	case *ast.Ident:
		switch {
		case c.isParam(fun.Name):
			return &Invoke{Func: &Param{Name: fun.Name, NamePos: fun.Pos()}, Args: args, Lparen: n.Lparen}, nil
		case fun.Name == "cond" && len(args) == 3:
			return &Conditional{Test: args[0], Then: args[1], Else: args[2], CondPos: fun.Pos()}, nil
		case builtins[fun.Name] || c.isStatic(fun.Name):
			return &Call{Func: fun.Name, Args: args, Lparen: n.Lparen}, nil
		}
		return nil, &CaptureError{Name: fun.Name, Pos: fun.Pos()}

	case *ast.SelectorExpr:
		if id, ok := fun.X.(*ast.Ident); ok && !c.isParam(id.Name) && c.isStatic(id.Name) {
			return &Call{Func: id.Name + "." + fun.Sel.Name, Args: args, Lparen: n.Lparen}, nil
		}
		obj, err := c.convert(fun.X)
		if err != nil {
			return nil, err
		}
		return &Call{Object: obj, Method: fun.Sel.Name, Args: args, Lparen: n.Lparen}, nil

	case *ast.FuncLit:
		lam, err := c.lambda(fun)
		if err != nil {
			return nil, err
		}
		return &Invoke{Func: lam, Args: args, Lparen: n.Lparen}, nil
	}

	f, err := c.convert(n.Fun)
	if err != nil {
		return nil, err
	}
	return &Invoke{Func: f, Args: args, Lparen: n.Lparen}, nil
}

func (c *converter) lambda(fn *ast.FuncLit) (*Lambda, error) {
	lam := &Lambda{Func: fn.Type.Func}
	if fn.Type.Params != nil {
		for _, field := range fn.Type.Params.List {
			if len(field.Names) == 0 {
				// func(li) shorthand: a lone identifier names the parameter.
				id, ok := field.Type.(*ast.Ident)
				if !ok {
					return nil, &ShapeError{Construct: "unnamed lambda parameter", Pos: field.Pos()}
				}
				lam.Params = append(lam.Params, id.Name)
				lam.ParamTypes = append(lam.ParamTypes, "")
				continue
			}
			for _, name := range field.Names {
				lam.Params = append(lam.Params, name.Name)
				lam.ParamTypes = append(lam.ParamTypes, types.ExprString(field.Type))
			}
		}
	}
	if res := fn.Type.Results; res != nil && len(res.List) > 0 {
		if len(res.List) != 1 || len(res.List[0].Names) > 1 {
			return nil, &ShapeError{Construct: "lambda with multiple results", Pos: res.Pos()}
		}
		lam.Result = types.ExprString(res.List[0].Type)
	}

	if len(fn.Body.List) != 1 {
		return nil, &ShapeError{Construct: "lambda body must be a single return statement", Pos: fn.Body.Pos()}
	}
	ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil, &ShapeError{Construct: "lambda body must be a single return statement", Pos: fn.Body.List[0].Pos()}
	}

	outer := len(c.params)
	c.params = append(c.params, lam.Params...)
	body, err := c.convert(ret.Results[0])
	c.params = c.params[:outer]
	if err != nil {
		return nil, err
	}
	lam.Body = body
	return lam, nil
}

func (c *converter) composite(n *ast.CompositeLit) (Node, error) {
	typ := ""
	if n.Type != nil {
		typ = types.ExprString(n.Type)
	}
	if len(n.Elts) == 0 {
		return &New{Type: typ, Lbrace: n.Lbrace}, nil
	}

	_, keyed := n.Elts[0].(*ast.KeyValueExpr)
	if !keyed {
		args, err := c.list(n.Elts)
		if err != nil {
			return nil, err
		}
		return &New{Type: typ, Args: args, Lbrace: n.Lbrace}, nil
	}

	bindings, err := c.bindings(n.Elts)
	if err != nil {
		return nil, err
	}
	return &MemberInit{Type: typ, Bindings: bindings, Lbrace: n.Lbrace}, nil
}

func (c *converter) bindings(elts []ast.Expr) ([]Binding, error) {
	out := make([]Binding, 0, len(elts))
	for _, elt := range elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return nil, &ShapeError{Construct: "mixed keyed and positional elements", Pos: elt.Pos()}
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return nil, &ShapeError{Construct: "non-identifier key " + types.ExprString(kv.Key), Pos: kv.Pos()}
		}

		lit, isLit := kv.Value.(*ast.CompositeLit)
		switch {
		case isLit && lit.Type == nil && len(lit.Elts) > 0 && isKeyed(lit.Elts[0]):
			nested, err := c.bindings(lit.Elts)
			if err != nil {
				return nil, err
			}
			out = append(out, &MemberBinding{Member: key.Name, Bindings: nested})
		case isLit && isListType(lit.Type):
			elems, err := c.list(lit.Elts)
			if err != nil {
				return nil, err
			}
			out = append(out, &ListBinding{Member: key.Name, Type: types.ExprString(lit.Type), Elems: elems})
		default:
			v, err := c.convert(kv.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, &Assign{Member: key.Name, Value: v})
		}
	}
	return out, nil
}

func (c *converter) list(es []ast.Expr) ([]Node, error) {
	if len(es) == 0 {
		return nil, nil
	}
	out := make([]Node, len(es))
	for i, e := range es {
		n, err := c.convert(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func isKeyed(e ast.Expr) bool {
	_, ok := e.(*ast.KeyValueExpr)
	return ok
}

func isListType(t ast.Expr) bool {
	at, ok := t.(*ast.ArrayType)
	return ok && at.Len == nil
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

// describe names an AST node kind for error messages.
func describe(e ast.Expr) string {
	switch e.(type) {
	case *ast.SliceExpr:
		return "slice expression"
	case *ast.KeyValueExpr:
		return "key-value pair"
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.StructType, *ast.InterfaceType:
		return "type expression " + types.ExprString(e)
	case *ast.IndexListExpr:
		return "generic instantiation " + types.ExprString(e)
	}
	return fmt.Sprintf("%T", e)
}
