package analyzer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"go/token"
	"log/slog"
	"slices"

	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/validate"
	"github.com/roach88/eagerpath/internal/walker"
)

// CodeConflict marks an Include call whose paths cannot be applied together.
const CodeConflict = "CONFLICT"

// Diagnostic is one positioned analysis outcome.
type Diagnostic struct {
	Pos      token.Position    `json:"pos"`
	Code     string            `json:"code"`
	Severity validate.Severity `json:"severity"`
	Message  string            `json:"message"`
	Fix      string            `json:"fix,omitempty"`

	// Source is the path expression the diagnostic is about.
	Source string `json:"source"`
}

// String renders the diagnostic as "file:line:col: CODE severity: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Code, d.Severity, d.Message)
}

// Compiled is a call-site path that walked, validated without errors and
// reduced.
type Compiled struct {
	Root   string
	Source string
	Path   path.Path
	Pos    token.Position
}

// Skip is a call-site argument the analyzer could not compile ahead of time.
type Skip struct {
	Pos    token.Position `json:"pos"`
	Reason string         `json:"reason"`
}

// Options configures an analysis.
type Options struct {
	// Statics are added to the identifiers lambdas may reference.
	Statics []string

	// Tests includes _test.go files.
	Tests bool

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Result is the outcome of analyzing one package.
type Result struct {
	Package     *Package
	Diagnostics []Diagnostic
	Compiled    []Compiled
	Skipped     []Skip
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	return slices.ContainsFunc(r.Diagnostics, func(d Diagnostic) bool {
		return d.Severity == validate.SeverityError
	})
}

// Warnings counts warning diagnostics.
func (r *Result) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == validate.SeverityWarning {
			n++
		}
	}
	return n
}

// Analyze scans dir and compiles every call-site path.
func Analyze(ctx context.Context, dir string, opts Options) (*Result, error) {
	pkg, err := Scan(dir, opts.Tests)
	if err != nil {
		return nil, err
	}
	return AnalyzePackage(ctx, pkg, opts)
}

// AnalyzePackage compiles the call-site paths of a scanned package.
// Structurally equal paths are compiled once.
func AnalyzePackage(ctx context.Context, pkg *Package, opts Options) (*Result, error) {
	statics := slices.Concat(pkg.Statics, opts.Statics)
	slices.Sort(statics)
	cache := registry.NewCache(pkg.Schema, walker.Options{Statics: slices.Compact(statics)},
		registry.WithLogger(opts.logger()))

	a := &analysis{pkg: pkg, cache: cache, result: &Result{Package: pkg}}
	for _, site := range pkg.Calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.site(ctx, site)
	}

	slices.SortStableFunc(a.result.Diagnostics, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Pos.Filename, y.Pos.Filename),
			cmp.Compare(x.Pos.Offset, y.Pos.Offset),
		)
	})
	opts.logger().Debug("analyzed package",
		"dir", pkg.Dir,
		"calls", len(pkg.Calls),
		"compiled", len(a.result.Compiled),
		"diagnostics", len(a.result.Diagnostics),
		"skipped", len(a.result.Skipped))
	return a.result, nil
}

type analysis struct {
	pkg    *Package
	cache  *registry.Cache
	result *Result
}

func (a *analysis) site(ctx context.Context, site CallSite) {
	var compiled []Compiled
	for _, arg := range site.Args {
		if arg.Err != nil {
			a.result.Skipped = append(a.result.Skipped, Skip{Pos: a.pkg.Position(arg.Pos), Reason: arg.Err.Error()})
			continue
		}
		if c, ok := a.arg(ctx, site, arg); ok {
			compiled = append(compiled, c)
		}
	}

	if site.Kind != CallPath && len(compiled) > 1 {
		paths := make([]path.Path, len(compiled))
		for i, c := range compiled {
			paths[i] = c.Path
		}
		if err := lower.Compose(paths...); err != nil {
			a.result.Diagnostics = append(a.result.Diagnostics, Diagnostic{
				Pos:      a.pkg.Position(site.Pos),
				Code:     CodeConflict,
				Severity: validate.SeverityError,
				Message:  err.Error(),
				Source:   compiled[0].Source,
			})
			return
		}
	}
	a.result.Compiled = append(a.result.Compiled, compiled...)
}

// arg compiles one literal and records its diagnostics. It returns the
// compiled path when the literal compiled cleanly.
func (a *analysis) arg(ctx context.Context, site CallSite, arg Arg) (Compiled, bool) {
	entry, err := a.cache.Lookup(ctx, site.Root, arg.Source)
	if err != nil {
		if walker.IsSoft(err) {
			a.result.Skipped = append(a.result.Skipped, Skip{Pos: a.pkg.Position(arg.Pos), Reason: err.Error()})
			return Compiled{}, false
		}
		a.walkError(arg, err)
		return Compiled{}, false
	}

	findings := entry.Findings
	if entry.Source != arg.Source {
		// The cached entry was compiled from another spelling; positions
		// must come from this one.
		t, err := walker.ParseTrace(arg.Source, site.Root, a.cache.Universe(), a.cache.Options())
		if err != nil {
			a.walkError(arg, err)
			return Compiled{}, false
		}
		findings = validate.Validate(t)
	}

	for _, f := range findings {
		d := Diagnostic{
			Pos:      a.position(arg, f.Pos),
			Code:     string(f.Code),
			Severity: f.Severity,
			Message:  f.Message,
			Source:   arg.Source,
		}
		if f.Fix != nil {
			d.Fix = f.Fix.Replacement
		}
		a.result.Diagnostics = append(a.result.Diagnostics, d)
	}
	if validate.HasErrors(findings) {
		return Compiled{}, false
	}
	if entry.Err != nil {
		a.walkError(arg, entry.Err)
		return Compiled{}, false
	}

	return Compiled{
		Root:   site.Root,
		Source: arg.Source,
		Path:   entry.Path,
		Pos:    a.pkg.Position(arg.Pos),
	}, true
}

func (a *analysis) walkError(arg Arg, err error) {
	d := Diagnostic{
		Pos:      a.pkg.Position(arg.Pos),
		Code:     "WALK",
		Severity: validate.SeverityError,
		Message:  err.Error(),
		Source:   arg.Source,
	}
	var we *walker.WalkError
	if errors.As(err, &we) {
		d.Code = string(we.Kind)
		d.Message = we.Message
		d.Pos = a.position(arg, we.Pos)
	}
	a.result.Diagnostics = append(a.result.Diagnostics, d)
}

// position maps a position inside the parsed path text onto the file. When
// the literal's text does not map byte for byte, the literal itself is the
// position.
func (a *analysis) position(arg Arg, pos token.Pos) token.Position {
	off := walker.Offset(pos)
	if !arg.verbatim || off < 0 || off > len(arg.Source) {
		return a.pkg.Position(arg.Pos)
	}
	return a.pkg.Position(arg.Pos + 1 + token.Pos(off))
}
