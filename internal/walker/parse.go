package walker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/typeinfo"
)

// ParseTrace parses src as a Go expression and walks it.
func ParseTrace(src, rootType string, u typeinfo.Universe, opts Options) (*path.Trace, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, newError(KindSyntax, token.NoPos, -1, "%v", err)
	}
	t, err := Walk(e, rootType, u, opts)
	if err != nil {
		return nil, err
	}
	t.Source = src
	return t, nil
}

// Parse compiles src into a Path: parse, Walk, then Reduce.
func Parse(src, rootType string, u typeinfo.Universe, opts Options) (path.Path, error) {
	t, err := ParseTrace(src, rootType, u, opts)
	if err != nil {
		return path.Path{}, err
	}
	return Reduce(t)
}

// Literal extracts the path text from a call argument. Only an inline string
// literal can be compiled ahead of time; anything else is a soft
// KindVariableBound failure.
func Literal(arg ast.Expr) (string, error) {
	lit, ok := arg.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", newError(KindVariableBound, arg.Pos(), -1, "path %s is not an inline string literal", exprString(arg))
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", newError(KindSyntax, lit.Pos(), -1, "malformed string literal: %v", err)
	}
	return s, nil
}

// Offset converts a position inside a trace parsed by ParseTrace into a byte
// offset of the source text. parser.ParseExpr uses a file with base 1.
func Offset(pos token.Pos) int {
	if !pos.IsValid() {
		return -1
	}
	return int(pos) - 1
}
