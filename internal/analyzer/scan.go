// Package analyzer finds path expressions in Go source and reports what the
// path compiler makes of them: positioned diagnostics for misuse, and the
// compiled paths of every call site that compiles cleanly.
//
// A call site is a generic call into the eager package whose type argument
// names the root type:
//
//	eager.Path[Order]("o.LineItems[each].Product")
//	eager.Include[Order](q, "o.Customer[to].Address", "o.LineItems")
//	eager.NewSpec[Order]("Details").Include("o.Payment.(*CardPayment).Issuer")
//
// Types are resolved against the struct and interface declarations of the
// scanned package; no type checking is performed.
package analyzer

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/eagerpath/internal/typeinfo"
	"github.com/roach88/eagerpath/internal/walker"
)

// EagerImport is the import path of the public runtime package.
const EagerImport = "github.com/roach88/eagerpath/eager"

// CallKind distinguishes the recognized call shapes.
type CallKind int

const (
	CallPath CallKind = iota
	CallInclude
	CallSpec
)

func (k CallKind) String() string {
	switch k {
	case CallInclude:
		return "Include"
	case CallSpec:
		return "NewSpec.Include"
	}
	return "Path"
}

// Arg is one path argument of a call site.
type Arg struct {
	// Source is the unquoted literal text. Empty when Err is set.
	Source string

	// Err is the soft walker error for an argument that is not an inline
	// string literal.
	Err error

	// Pos is the position of the argument expression.
	Pos token.Pos

	// verbatim is true when every byte of Source appears unchanged in the
	// file right after the opening quote, so offsets into Source map onto
	// file positions.
	verbatim bool
}

// CallSite is one recognized call.
type CallSite struct {
	Kind CallKind

	// Root is the bare root type name from the type argument.
	Root string

	Pos  token.Pos
	Args []Arg
}

// Package is a scanned source directory.
type Package struct {
	Dir   string
	Name  string
	Fset  *token.FileSet
	Files []*ast.File

	// Schema holds the package's struct and interface declarations.
	Schema *typeinfo.Schema

	// Statics are identifiers lambdas may reference: imported package names
	// and package-level constants.
	Statics []string

	Calls []CallSite
}

// Position resolves pos against the package's file set.
func (p *Package) Position(pos token.Pos) token.Position {
	return p.Fset.Position(pos)
}

// Scan parses the .go files of dir and collects call sites. Generated files
// are skipped, and test files unless tests is set.
func Scan(dir string, tests bool) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	pkg := &Package{Dir: dir, Fset: token.NewFileSet()}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !tests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(pkg.Fset, filepath.Join(dir, name), nil, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if ast.IsGenerated(f) {
			continue
		}
		if pkg.Name == "" {
			pkg.Name = f.Name.Name
		}
		pkg.Files = append(pkg.Files, f)
	}
	if len(pkg.Files) == 0 {
		return nil, fmt.Errorf("scan %s: no Go files", dir)
	}

	pkg.Schema, err = typeinfo.FromGoFiles(pkg.Files)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	statics := make(map[string]bool)
	for _, f := range pkg.Files {
		local := eagerName(f)
		for name := range importNames(f) {
			statics[name] = true
		}
		for _, name := range constNames(f) {
			statics[name] = true
		}
		if local == "" {
			continue
		}
		ast.Inspect(f, func(n ast.Node) bool {
			if call, ok := n.(*ast.CallExpr); ok {
				if site, ok := callSite(call, local); ok {
					pkg.Calls = append(pkg.Calls, site)
				}
			}
			return true
		})
	}
	for name := range statics {
		pkg.Statics = append(pkg.Statics, name)
	}
	slices.Sort(pkg.Statics)
	return pkg, nil
}

// eagerName returns the local name of the eager import in f, or "".
func eagerName(f *ast.File) string {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != EagerImport {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				return ""
			}
			return imp.Name.Name
		}
		return "eager"
	}
	return ""
}

// importNames returns the local names of f's imports.
func importNames(f *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p == EagerImport {
			continue
		}
		switch {
		case imp.Name == nil:
			names[p[strings.LastIndexByte(p, '/')+1:]] = true
		case imp.Name.Name != "_" && imp.Name.Name != ".":
			names[imp.Name.Name] = true
		}
	}
	return names
}

func constNames(f *ast.File) []string {
	var names []string
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			for _, n := range spec.(*ast.ValueSpec).Names {
				if n.Name != "_" {
					names = append(names, n.Name)
				}
			}
		}
	}
	return names
}

// callSite recognizes call as one of the eager call shapes.
func callSite(call *ast.CallExpr, local string) (CallSite, bool) {
	if fn, root, ok := generic(call.Fun, local); ok {
		switch {
		case fn == "Path" && len(call.Args) == 1:
			return CallSite{Kind: CallPath, Root: root, Pos: call.Pos(), Args: args(call.Args)}, true
		case fn == "Include" && len(call.Args) >= 2:
			return CallSite{Kind: CallInclude, Root: root, Pos: call.Pos(), Args: args(call.Args[1:])}, true
		}
		return CallSite{}, false
	}

	// Spec builder chains: NewSpec[T](name)...Include(exprs...)
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Include" || len(call.Args) == 0 {
		return CallSite{}, false
	}
	for cur := sel.X; ; {
		inner, ok := cur.(*ast.CallExpr)
		if !ok {
			return CallSite{}, false
		}
		if fn, root, ok := generic(inner.Fun, local); ok {
			if fn != "NewSpec" {
				return CallSite{}, false
			}
			return CallSite{Kind: CallSpec, Root: root, Pos: call.Pos(), Args: args(call.Args)}, true
		}
		next, ok := inner.Fun.(*ast.SelectorExpr)
		if !ok {
			return CallSite{}, false
		}
		cur = next.X
	}
}

// generic matches local.Fn[T] and returns Fn and T's bare name.
func generic(fun ast.Expr, local string) (fn, root string, ok bool) {
	idx, ok := fun.(*ast.IndexExpr)
	if !ok {
		return "", "", false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != local {
		return "", "", false
	}
	ref := typeinfo.ParseTypeRef(types.ExprString(idx.Index))
	return sel.Sel.Name, ref.Target(), true
}

func args(exprs []ast.Expr) []Arg {
	out := make([]Arg, len(exprs))
	for i, e := range exprs {
		src, err := walker.Literal(e)
		out[i] = Arg{Source: src, Err: err, Pos: e.Pos()}
		if lit, ok := e.(*ast.BasicLit); ok && err == nil {
			out[i].verbatim = lit.Value[0] == '`' || len(lit.Value) == len(src)+2
		}
	}
	return out
}
