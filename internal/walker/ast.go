package walker

import (
	"go/ast"
	"go/types"
)

func exprString(e ast.Expr) string {
	return types.ExprString(e)
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

// leftmost returns the identifier a path chain is rooted at.
func leftmost(e ast.Expr) *ast.Ident {
	for {
		switch n := e.(type) {
		case *ast.Ident:
			return n
		case *ast.ParenExpr:
			e = n.X
		case *ast.SelectorExpr:
			e = n.X
		case *ast.CallExpr:
			e = n.Fun
		case *ast.IndexExpr:
			e = n.X
		case *ast.StarExpr:
			e = n.X
		case *ast.TypeAssertExpr:
			e = n.X
		default:
			return nil
		}
	}
}
