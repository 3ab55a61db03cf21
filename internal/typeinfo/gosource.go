package typeinfo

import (
	"go/ast"
	"go/types"
	"sort"
)

// FromGoFiles builds a Schema from the struct and interface declarations of
// parsed Go files, typically one package. Methods are attached to their
// receiver type when they have exactly one result.
//
// Generic type declarations are skipped; the walker has no way to name their
// instantiations.
func FromGoFiles(files []*ast.File) (*Schema, error) {
	decls := make(map[string]*Decl)

	for _, f := range files {
		for _, d := range f.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || ts.TypeParams != nil {
					continue
				}
				if decl := declOf(ts); decl != nil {
					decls[decl.Name] = decl
				}
			}
		}
	}

	for _, f := range files {
		for _, d := range f.Decls {
			fd, ok := d.(*ast.FuncDecl)
			if !ok || fd.Recv == nil || len(fd.Recv.List) != 1 {
				continue
			}
			recv := receiverName(fd.Recv.List[0].Type)
			decl, ok := decls[recv]
			if !ok || !fd.Name.IsExported() || !singleResult(fd.Type) {
				continue
			}
			if decl.Methods == nil {
				decl.Methods = make(map[string]string)
			}
			decl.Methods[fd.Name.Name] = types.ExprString(fd.Type.Results.List[0].Type)
		}
	}

	names := make([]string, 0, len(decls))
	for n := range decls {
		names = append(names, n)
	}
	sort.Strings(names)

	s := NewSchema()
	for _, n := range names {
		if err := s.Declare(*decls[n]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func declOf(ts *ast.TypeSpec) *Decl {
	switch t := ts.Type.(type) {
	case *ast.StructType:
		d := &Decl{Name: ts.Name.Name}
		for _, field := range t.Fields.List {
			typ := types.ExprString(field.Type)
			if len(field.Names) == 0 {
				d.Embeds = append(d.Embeds, ParseTypeRef(typ).Name)
				continue
			}
			for _, name := range field.Names {
				d.Fields = append(d.Fields, FieldDecl{Name: name.Name, Type: typ})
			}
		}
		return d

	case *ast.InterfaceType:
		d := &Decl{Name: ts.Name.Name, Interface: true}
		for _, m := range t.Methods.List {
			ft, ok := m.Type.(*ast.FuncType)
			if !ok || len(m.Names) == 0 {
				continue
			}
			if d.Methods == nil {
				d.Methods = make(map[string]string)
			}
			res := ""
			if singleResult(ft) {
				res = types.ExprString(ft.Results.List[0].Type)
			}
			d.Methods[m.Names[0].Name] = res
		}
		return d
	}
	return nil
}

func receiverName(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func singleResult(ft *ast.FuncType) bool {
	return ft.Results != nil && len(ft.Results.List) == 1 && len(ft.Results.List[0].Names) <= 1
}
