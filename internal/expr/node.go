package expr

import (
	"go/constant"
	"go/token"
)

// Node is a predicate or key expression.
//
// This is a sealed interface - only types in this package implement it.
// All implementations are pointer types, so an unknown node compares equal
// only to itself.
type Node interface {
	exprNode() // Marker method - seals interface to this package
	Pos() token.Pos
}

// Param is a reference to a lambda parameter.
type Param struct {
	Name    string
	NamePos token.Pos
}

// Member is a field, property or method value selected from Object.
type Member struct {
	Object  Node
	Name    string
	NamePos token.Pos
}

// Call is a method call (Object != nil) or a call of a static function
// (Func is the qualified name, e.g. "strings.HasPrefix" or "len").
// Calls compare by resolved target: Object and Method, or Func.
type Call struct {
	Object Node
	Method string
	Func   string
	Args   []Node
	Lparen token.Pos
}

// Unary is a prefix operation. Pointer dereference uses token.MUL.
type Unary struct {
	Op    token.Token
	X     Node
	OpPos token.Pos
}

// Binary is an infix operation.
type Binary struct {
	Op    token.Token
	X, Y  Node
	OpPos token.Pos
}

// Constant is a literal or predeclared constant. Value is nil for nil.
// Lit keeps the source spelling for formatting; it does not take part in
// equality.
type Constant struct {
	Value    constant.Value
	Lit      string
	ValuePos token.Pos
}

// Static is a reference to a name declared static by the caller, such as a
// package-level constant ("MaxItems") or a qualified value ("time.Second").
type Static struct {
	Name    string
	NamePos token.Pos
}

// Index is X[Index].
type Index struct {
	X      Node
	Index  Node
	Lbrack token.Pos
}

// Convert is a type assertion X.(Type). Type is the source spelling.
type Convert struct {
	X      Node
	Type   string
	Lparen token.Pos
}

// Lambda is a function literal whose body is a single return statement.
// ParamTypes and Result hold source spellings and are empty when omitted.
// Only the parameter count and Body take part in equality.
type Lambda struct {
	Params     []string
	ParamTypes []string
	Result     string
	Body       Node
	Func       token.Pos
}

// New is a composite literal with positional elements: T{a, b}.
type New struct {
	Type   string
	Args   []Node
	Lbrace token.Pos
}

// MemberInit is a composite literal with keyed elements: T{A: a, B: b}.
type MemberInit struct {
	Type     string
	Bindings []Binding
	Lbrace   token.Pos
}

// Conditional is the ternary form cond(Test, Then, Else).
type Conditional struct {
	Test, Then, Else Node
	CondPos          token.Pos
}

// Invoke calls a function value that is not a static name: a lambda
// literal or a parameter.
type Invoke struct {
	Func   Node
	Args   []Node
	Lparen token.Pos
}

func (*Param) exprNode()       {}
func (*Member) exprNode()      {}
func (*Call) exprNode()        {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Constant) exprNode()    {}
func (*Static) exprNode()      {}
func (*Index) exprNode()       {}
func (*Convert) exprNode()     {}
func (*Lambda) exprNode()      {}
func (*New) exprNode()         {}
func (*MemberInit) exprNode()  {}
func (*Conditional) exprNode() {}
func (*Invoke) exprNode()      {}

func (n *Param) Pos() token.Pos       { return n.NamePos }
func (n *Member) Pos() token.Pos      { return n.Object.Pos() }
func (n *Call) Pos() token.Pos        { return n.Lparen }
func (n *Unary) Pos() token.Pos       { return n.OpPos }
func (n *Binary) Pos() token.Pos      { return n.X.Pos() }
func (n *Constant) Pos() token.Pos    { return n.ValuePos }
func (n *Static) Pos() token.Pos      { return n.NamePos }
func (n *Index) Pos() token.Pos       { return n.X.Pos() }
func (n *Convert) Pos() token.Pos     { return n.X.Pos() }
func (n *Lambda) Pos() token.Pos      { return n.Func }
func (n *New) Pos() token.Pos         { return n.Lbrace }
func (n *MemberInit) Pos() token.Pos  { return n.Lbrace }
func (n *Conditional) Pos() token.Pos { return n.CondPos }
func (n *Invoke) Pos() token.Pos      { return n.Lparen }

// Binding is one keyed element of a MemberInit.
//
// Binding types:
//   - Assign: Member: value
//   - MemberBinding: Member: {nested keyed bindings}
//   - ListBinding: Member: []T{elements}
type Binding interface {
	bindingNode() // Marker method - seals interface to this package
	MemberName() string
}

// Assign binds a value to a member.
type Assign struct {
	Member string
	Value  Node
}

// MemberBinding initializes the members of a nested value in place.
type MemberBinding struct {
	Member   string
	Bindings []Binding
}

// ListBinding fills a list-like member with elements.
type ListBinding struct {
	Member string
	Type   string
	Elems  []Node
}

func (*Assign) bindingNode()        {}
func (*MemberBinding) bindingNode() {}
func (*ListBinding) bindingNode()   {}

func (b *Assign) MemberName() string        { return b.Member }
func (b *MemberBinding) MemberName() string { return b.Member }
func (b *ListBinding) MemberName() string   { return b.Member }
