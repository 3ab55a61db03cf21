package expr

import (
	"go/token"
	"strings"
)

// Format renders n back to Go source. The output parses with go/parser and
// converts back to a Node that is Equal to n.
func Format(n Node) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

// unaryPrec binds tighter than every binary operator.
const unaryPrec = token.HighestPrec + 1

func writeNode(b *strings.Builder, n Node, parent int) {
	switch x := n.(type) {
	case nil:
		b.WriteString("nil")

	case *Param:
		b.WriteString(x.Name)

	case *Member:
		writeOperand(b, x.Object)
		b.WriteByte('.')
		b.WriteString(x.Name)

	case *Call:
		if x.Object != nil {
			writeOperand(b, x.Object)
			b.WriteByte('.')
			b.WriteString(x.Method)
		} else {
			b.WriteString(x.Func)
		}
		writeArgs(b, x.Args)

	case *Unary:
		if parent > unaryPrec {
			b.WriteByte('(')
			defer b.WriteByte(')')
		}
		if x.Op == token.MUL {
			b.WriteByte('*')
		} else {
			b.WriteString(x.Op.String())
		}
		if _, nested := x.X.(*Unary); nested {
			// "- -x" would otherwise print as the decrement token.
			writeOperand(b, x.X)
			break
		}
		writeNode(b, x.X, unaryPrec)

	case *Binary:
		prec := x.Op.Precedence()
		if prec < parent {
			b.WriteByte('(')
			defer b.WriteByte(')')
		}
		writeNode(b, x.X, prec)
		b.WriteByte(' ')
		b.WriteString(x.Op.String())
		b.WriteByte(' ')
		// Left-associative: an equal-precedence right operand needs parentheses.
		writeNode(b, x.Y, prec+1)

	case *Constant:
		switch {
		case x.Lit != "":
			b.WriteString(x.Lit)
		case x.Value == nil:
			b.WriteString("nil")
		default:
			b.WriteString(x.Value.ExactString())
		}

	case *Static:
		b.WriteString(x.Name)

	case *Index:
		writeOperand(b, x.X)
		b.WriteByte('[')
		writeNode(b, x.Index, 0)
		b.WriteByte(']')

	case *Convert:
		writeOperand(b, x.X)
		b.WriteString(".(")
		b.WriteString(x.Type)
		b.WriteByte(')')

	case *Lambda:
		writeLambda(b, x)

	case *New:
		b.WriteString(x.Type)
		b.WriteByte('{')
		writeList(b, x.Args)
		b.WriteByte('}')

	case *MemberInit:
		b.WriteString(x.Type)
		writeBindings(b, x.Bindings)

	case *Conditional:
		b.WriteString("cond")
		writeArgs(b, []Node{x.Test, x.Then, x.Else})

	case *Invoke:
		if _, ok := x.Func.(*Lambda); ok {
			b.WriteByte('(')
			writeNode(b, x.Func, 0)
			b.WriteByte(')')
		} else {
			writeOperand(b, x.Func)
		}
		writeArgs(b, x.Args)

	default:
		b.WriteString("<unknown>")
	}
}

// writeOperand writes n in primary-expression position.
func writeOperand(b *strings.Builder, n Node) {
	switch n.(type) {
	case *Unary, *Binary, *Lambda:
		b.WriteByte('(')
		writeNode(b, n, 0)
		b.WriteByte(')')
	default:
		writeNode(b, n, unaryPrec+1)
	}
}

func writeArgs(b *strings.Builder, args []Node) {
	b.WriteByte('(')
	writeList(b, args)
	b.WriteByte(')')
}

func writeList(b *strings.Builder, ns []Node) {
	for i, n := range ns {
		if i > 0 {
			b.WriteString(", ")
		}
		writeNode(b, n, 0)
	}
}

func writeLambda(b *strings.Builder, l *Lambda) {
	b.WriteString("func(")
	for i, p := range l.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p)
		if i < len(l.ParamTypes) && l.ParamTypes[i] != "" {
			b.WriteByte(' ')
			b.WriteString(l.ParamTypes[i])
		}
	}
	b.WriteString(") ")
	if l.Result != "" {
		b.WriteString(l.Result)
		b.WriteByte(' ')
	}
	b.WriteString("{ return ")
	writeNode(b, l.Body, 0)
	b.WriteString(" }")
}

func writeBindings(b *strings.Builder, bs []Binding) {
	b.WriteByte('{')
	for i, bind := range bs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(bind.MemberName())
		b.WriteString(": ")
		switch x := bind.(type) {
		case *Assign:
			writeNode(b, x.Value, 0)
		case *MemberBinding:
			writeBindings(b, x.Bindings)
		case *ListBinding:
			b.WriteString(x.Type)
			b.WriteByte('{')
			writeList(b, x.Elems)
			b.WriteByte('}')
		}
	}
	b.WriteByte('}')
}
