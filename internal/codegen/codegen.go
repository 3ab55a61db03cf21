// Package codegen emits Go source that registers a precompiled include
// function for every path expression in a package that compiles cleanly.
//
// The generated file calls eager.RegisterCompiled from init, so at run time
// eager.Include finds the lowered chain without walking the expression.
// Expressions the analyzer skips (not an inline literal, or a lambda that
// captures a variable) and expressions with error findings get no
// registration and are interpreted at run time instead.
package codegen

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/roach88/eagerpath/internal/analyzer"
	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/lower"
)

// DefaultOutput is the file name Write uses when none is given.
const DefaultOutput = "eagerpath_gen.go"

// Header marks generated files; the analyzer skips files carrying it.
const Header = "// Code generated by eagerpath generate. DO NOT EDIT."

// Options configures generation.
type Options struct {
	analyzer.Options

	// Package overrides the package name of the generated file.
	Package string
}

// Registration is one generated RegisterCompiled call.
type Registration struct {
	Root       string
	Source     string
	Directives []lower.Directive

	// At is "file.go:line" of the first call site.
	At string
}

// Generate analyzes dir and returns the formatted source of the generated
// file together with the analysis it was generated from.
func Generate(ctx context.Context, dir string, opts Options) ([]byte, *analyzer.Result, error) {
	res, err := analyzer.Analyze(ctx, dir, opts.Options)
	if err != nil {
		return nil, nil, err
	}
	regs, err := Registrations(res)
	if err != nil {
		return nil, res, err
	}
	pkg := cmp.Or(opts.Package, res.Package.Name)
	src, err := Render(pkg, regs)
	if err != nil {
		return nil, res, err
	}
	return src, res, nil
}

// Write generates into dir/name, or dir/DefaultOutput when name is empty.
func Write(ctx context.Context, dir, name string, opts Options) (string, *analyzer.Result, error) {
	src, res, err := Generate(ctx, dir, opts)
	if err != nil {
		return "", res, err
	}
	out := filepath.Join(dir, cmp.Or(name, DefaultOutput))
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return "", res, fmt.Errorf("write %s: %w", out, err)
	}
	return out, res, nil
}

// Registrations lowers the compiled paths of an analysis. A path compiled at
// several call sites is registered once. The result is sorted by root type,
// then source text.
func Registrations(res *analyzer.Result) ([]Registration, error) {
	type key struct{ root, src string }
	seen := make(map[key]bool)

	var regs []Registration
	for _, c := range res.Compiled {
		k := key{c.Root, c.Source}
		if seen[k] {
			continue
		}
		seen[k] = true

		dirs, err := lower.Lower(c.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: lower %q: %w", c.Pos, c.Source, err)
		}
		regs = append(regs, Registration{
			Root:       c.Root,
			Source:     c.Source,
			Directives: dirs,
			At:         fmt.Sprintf("%s:%d", filepath.Base(c.Pos.Filename), c.Pos.Line),
		})
	}

	slices.SortFunc(regs, func(a, b Registration) int {
		return cmp.Or(cmp.Compare(a.Root, b.Root), cmp.Compare(a.Source, b.Source))
	})
	return regs, nil
}

// Render returns the formatted source of a generated file.
func Render(pkg string, regs []Registration) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n\npackage %s\n", Header, pkg)

	if len(regs) > 0 {
		b.WriteString("\nimport \"github.com/roach88/eagerpath/eager\"\n\nfunc init() {\n")
		for i, r := range regs {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "\t// %s\n", r.At)
			fmt.Fprintf(&b, "\teager.RegisterCompiled(%s, %s, func(q eager.Query) eager.Query {\n",
				strconv.Quote(r.Root), strconv.Quote(r.Source))
			b.WriteString("\t\treturn q")
			for _, d := range r.Directives {
				b.WriteString(".\n\t\t\t")
				b.WriteString(call(d))
			}
			b.WriteString("\n\t})\n")
		}
		b.WriteString("}\n")
	}

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

// call renders one directive as a Query method call.
func call(d lower.Directive) string {
	var b bytes.Buffer
	if d.Kind == lower.KindRoot {
		fmt.Fprintf(&b, "Include(%s", strconv.Quote(d.Property))
	} else {
		fmt.Fprintf(&b, "ThenInclude(%s, %s", strconv.Quote(d.Property), via(d.Via))
	}
	for _, op := range d.Ops {
		fmt.Fprintf(&b, ", eager.Op{Verb: %s, Lambda: %s}", strconv.Quote(op.Verb), strconv.Quote(expr.Format(op.Lambda)))
	}
	b.WriteByte(')')
	return b.String()
}

func via(v lower.Via) string {
	if v == lower.ViaCollection {
		return "eager.ViaCollection"
	}
	return "eager.ViaReference"
}
