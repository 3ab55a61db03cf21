package expr

import (
	"go/constant"

	"github.com/roach88/eagerpath/internal/ir"
)

// Hash returns a 64-bit structural hash consistent with Equal:
// Equal(a, b) implies Hash(a) == Hash(b).
func Hash(n Node) uint64 {
	return Digest(n).Uint64()
}

// Digest returns the full domain-separated digest of n.
func Digest(n Node) ir.Digest {
	return ir.MustHashValue(ir.DomainExpr, Encode(n))
}

// Encode renders n as a canonical IR value with parameters replaced by their
// binding level. Source spellings that Equal ignores (parameter names and
// types, literal spelling, positions) are omitted.
func Encode(n Node) ir.IRValue {
	var e encoder
	return e.node(n)
}

type encoder struct {
	params []string
}

func (e *encoder) node(n Node) ir.IRValue {
	switch x := n.(type) {
	case nil:
		return ir.Tagged("none")

	case *Param:
		if lvl := level(e.params, x.Name); lvl >= 0 {
			return ir.Tagged("param", "level", ir.IRInt(lvl))
		}
		return ir.Tagged("free", "name", ir.IRString(x.Name))

	case *Member:
		return ir.Tagged("member", "name", ir.IRString(x.Name), "object", e.node(x.Object))

	case *Call:
		obj := ir.Tagged("call", "args", e.nodes(x.Args))
		if x.Object != nil {
			obj["object"] = e.node(x.Object)
			obj["method"] = ir.IRString(x.Method)
		} else {
			obj["func"] = ir.IRString(x.Func)
		}
		return obj

	case *Unary:
		return ir.Tagged("unary", "op", ir.IRString(x.Op.String()), "x", e.node(x.X))

	case *Binary:
		return ir.Tagged("binary", "op", ir.IRString(x.Op.String()), "x", e.node(x.X), "y", e.node(x.Y))

	case *Constant:
		if x.Value == nil {
			return ir.Tagged("const", "type", ir.IRString("nil"))
		}
		return ir.Tagged("const", "type", ir.IRString(x.Value.Kind().String()), "value", ir.IRString(exact(x.Value)))

	case *Static:
		return ir.Tagged("static", "name", ir.IRString(x.Name))

	case *Index:
		return ir.Tagged("index", "x", e.node(x.X), "index", e.node(x.Index))

	case *Convert:
		return ir.Tagged("convert", "type", ir.IRString(x.Type), "x", e.node(x.X))

	case *Lambda:
		n := len(e.params)
		e.params = append(e.params, x.Params...)
		body := e.node(x.Body)
		e.params = e.params[:n]
		return ir.Tagged("lambda", "arity", ir.IRInt(len(x.Params)), "body", body)

	case *New:
		return ir.Tagged("new", "type", ir.IRString(x.Type), "args", e.nodes(x.Args))

	case *MemberInit:
		return ir.Tagged("init", "type", ir.IRString(x.Type), "bindings", e.bindings(x.Bindings))

	case *Conditional:
		return ir.Tagged("cond", "test", e.node(x.Test), "then", e.node(x.Then), "else", e.node(x.Else))

	case *Invoke:
		return ir.Tagged("invoke", "func", e.node(x.Func), "args", e.nodes(x.Args))
	}
	return ir.Tagged("unknown")
}

func (e *encoder) nodes(ns []Node) ir.IRArray {
	out := make(ir.IRArray, len(ns))
	for i, n := range ns {
		out[i] = e.node(n)
	}
	return out
}

func (e *encoder) bindings(bs []Binding) ir.IRArray {
	out := make(ir.IRArray, len(bs))
	for i, b := range bs {
		switch x := b.(type) {
		case *Assign:
			out[i] = ir.Tagged("assign", "member", ir.IRString(x.Member), "value", e.node(x.Value))
		case *MemberBinding:
			out[i] = ir.Tagged("member-binding", "member", ir.IRString(x.Member), "bindings", e.bindings(x.Bindings))
		case *ListBinding:
			out[i] = ir.Tagged("list-binding", "member", ir.IRString(x.Member), "type", ir.IRString(x.Type), "elems", e.nodes(x.Elems))
		default:
			out[i] = ir.Tagged("unknown")
		}
	}
	return out
}

// exact renders a constant by exact value, so 1.5 and 1.50 encode alike.
func exact(v constant.Value) string {
	return v.ExactString()
}
