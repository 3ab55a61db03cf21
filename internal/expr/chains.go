package expr

import (
	"go/token"
	"strings"
)

// Chain is a member access chain rooted at a lambda parameter, such as
// li.Product.Name. A chain ending in a method call includes the method name.
type Chain struct {
	Param   string
	Members []string
	Pos     token.Pos
}

// String renders the chain as "Product.Name".
func (c Chain) String() string {
	return strings.Join(c.Members, ".")
}

// ParamChains returns the maximal member chains rooted at the parameters of
// l, in source order. Chains rooted at parameters of nested lambdas are not
// reported, and a parameter of l shadowed by a nested lambda is ignored
// inside that lambda.
func ParamChains(l *Lambda) []Chain {
	if l == nil {
		return nil
	}
	w := &chainWalker{own: l.Params}
	w.node(l.Body)
	return w.chains
}

type chainWalker struct {
	own    []string
	shadow []string
	chains []Chain
}

func (w *chainWalker) rooted(name string) bool {
	if level(w.shadow, name) >= 0 {
		return false
	}
	return level(w.own, name) >= 0
}

// chain reports whether n is a member chain rooted at one of l's params.
func (w *chainWalker) chain(n Node) (Chain, bool) {
	var names []string
	cur := n
	for {
		switch x := cur.(type) {
		case *Member:
			names = append(names, x.Name)
			cur = x.Object
			continue
		case *Call:
			if x.Object == nil {
				return Chain{}, false
			}
			names = append(names, x.Method)
			cur = x.Object
			continue
		case *Unary:
			if x.Op == token.MUL {
				cur = x.X
				continue
			}
		case *Param:
			if !w.rooted(x.Name) || len(names) == 0 {
				return Chain{}, false
			}
			for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
				names[i], names[j] = names[j], names[i]
			}
			return Chain{Param: x.Name, Members: names, Pos: x.NamePos}, true
		}
		return Chain{}, false
	}
}

func (w *chainWalker) node(n Node) {
	if n == nil {
		return
	}
	if c, ok := w.chain(n); ok {
		w.chains = append(w.chains, c)
		// Method arguments may hold further chains.
		w.callArgs(n)
		return
	}

	switch x := n.(type) {
	case *Member:
		w.node(x.Object)
	case *Call:
		w.node(x.Object)
		w.nodes(x.Args)
	case *Unary:
		w.node(x.X)
	case *Binary:
		w.node(x.X)
		w.node(x.Y)
	case *Index:
		w.node(x.X)
		w.node(x.Index)
	case *Convert:
		w.node(x.X)
	case *Lambda:
		n := len(w.shadow)
		w.shadow = append(w.shadow, x.Params...)
		w.node(x.Body)
		w.shadow = w.shadow[:n]
	case *New:
		w.nodes(x.Args)
	case *MemberInit:
		w.bindings(x.Bindings)
	case *Conditional:
		w.node(x.Test)
		w.node(x.Then)
		w.node(x.Else)
	case *Invoke:
		w.node(x.Func)
		w.nodes(x.Args)
	}
}

func (w *chainWalker) callArgs(n Node) {
	for {
		switch x := n.(type) {
		case *Call:
			w.nodes(x.Args)
			n = x.Object
		case *Member:
			n = x.Object
		case *Unary:
			n = x.X
		default:
			return
		}
	}
}

func (w *chainWalker) nodes(ns []Node) {
	for _, n := range ns {
		w.node(n)
	}
}

func (w *chainWalker) bindings(bs []Binding) {
	for _, b := range bs {
		switch x := b.(type) {
		case *Assign:
			w.node(x.Value)
		case *MemberBinding:
			w.bindings(x.Bindings)
		case *ListBinding:
			w.nodes(x.Elems)
		}
	}
}
