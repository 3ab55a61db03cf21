package expr

import (
	"go/constant"
	"go/token"
)

// Equal reports whether a and b have identical shape and reference the same
// members, methods, functions and constants, regardless of the names chosen
// for lambda parameters.
//
// Equal is a pure function; it is safe for concurrent use.
func Equal(a, b Node) bool {
	var c comparer
	return c.node(a, b)
}

// comparer tracks the lambda parameters bound on each side while descending.
// A parameter's identity is its binding level: the index of its entry in the
// stack, searched innermost first so that shadowing resolves correctly.
type comparer struct {
	left, right []string
}

func (c *comparer) node(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case *Param:
		y, ok := b.(*Param)
		if !ok {
			return false
		}
		li, ri := level(c.left, x.Name), level(c.right, y.Name)
		if li < 0 || ri < 0 {
			// Free parameters have no binding to compare; fall back to names.
			return li == ri && x.Name == y.Name
		}
		return li == ri

	case *Member:
		y, ok := b.(*Member)
		return ok && x.Name == y.Name && c.node(x.Object, y.Object)

	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Method != y.Method || x.Func != y.Func {
			return false
		}
		return c.node(x.Object, y.Object) && c.nodes(x.Args, y.Args)

	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && c.node(x.X, y.X)

	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && c.node(x.X, y.X) && c.node(x.Y, y.Y)

	case *Constant:
		y, ok := b.(*Constant)
		return ok && constantsEqual(x.Value, y.Value)

	case *Static:
		y, ok := b.(*Static)
		return ok && x.Name == y.Name

	case *Index:
		y, ok := b.(*Index)
		return ok && c.node(x.X, y.X) && c.node(x.Index, y.Index)

	case *Convert:
		y, ok := b.(*Convert)
		return ok && x.Type == y.Type && c.node(x.X, y.X)

	case *Lambda:
		y, ok := b.(*Lambda)
		return ok && c.lambda(x, y)

	case *New:
		y, ok := b.(*New)
		return ok && x.Type == y.Type && c.nodes(x.Args, y.Args)

	case *MemberInit:
		y, ok := b.(*MemberInit)
		return ok && x.Type == y.Type && c.bindings(x.Bindings, y.Bindings)

	case *Conditional:
		y, ok := b.(*Conditional)
		return ok && c.node(x.Test, y.Test) && c.node(x.Then, y.Then) && c.node(x.Else, y.Else)

	case *Invoke:
		y, ok := b.(*Invoke)
		return ok && c.node(x.Func, y.Func) && c.nodes(x.Args, y.Args)
	}

	// Unknown kinds are equal only by reference.
	return a == b
}

func (c *comparer) lambda(x, y *Lambda) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if len(x.Params) != len(y.Params) {
		return false
	}
	nl, nr := len(c.left), len(c.right)
	c.left = append(c.left, x.Params...)
	c.right = append(c.right, y.Params...)
	eq := c.node(x.Body, y.Body)
	c.left, c.right = c.left[:nl], c.right[:nr]
	return eq
}

func (c *comparer) nodes(xs, ys []Node) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !c.node(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func (c *comparer) bindings(xs, ys []Binding) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i].MemberName() != ys[i].MemberName() {
			return false
		}
		switch x := xs[i].(type) {
		case *Assign:
			y, ok := ys[i].(*Assign)
			if !ok || !c.node(x.Value, y.Value) {
				return false
			}
		case *MemberBinding:
			y, ok := ys[i].(*MemberBinding)
			if !ok || !c.bindings(x.Bindings, y.Bindings) {
				return false
			}
		case *ListBinding:
			y, ok := ys[i].(*ListBinding)
			if !ok || x.Type != y.Type || !c.nodes(x.Elems, y.Elems) {
				return false
			}
		default:
			if xs[i] != ys[i] {
				return false
			}
		}
	}
	return true
}

// LambdaEqual is Equal for two possibly-nil lambdas.
func LambdaEqual(a, b *Lambda) bool {
	var c comparer
	return c.lambda(a, b)
}

// level returns the binding level of name, or -1 if it is unbound.
func level(stack []string, name string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == name {
			return i
		}
	}
	return -1
}

// constantsEqual compares by kind and exact value; nil equals only nil.
func constantsEqual(a, b constant.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return constant.Compare(a, token.EQL, b)
}
