package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/eagerpath/internal/ir"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/validate"
)

// Spec is a named, ordered group of paths over one root type plus query
// options. A Spec is immutable once built.
type Spec struct {
	name    string
	root    string
	paths   []path.Path
	sources []string
	imports []string
	opts    Options
}

// Name returns the spec name.
func (s *Spec) Name() string { return s.name }

// Root returns the root type.
func (s *Spec) Root() string { return s.root }

// Paths returns the paths in declared order, imports first.
func (s *Spec) Paths() []path.Path { return slices.Clone(s.paths) }

// Sources returns the expression text of each path, parallel to Paths.
func (s *Spec) Sources() []string { return slices.Clone(s.sources) }

// Imports returns the names of imported specs.
func (s *Spec) Imports() []string { return slices.Clone(s.imports) }

// Options returns the query options.
func (s *Spec) Options() Options { return s.opts }

// Digest returns the content-addressed identity of the spec: its name, root,
// options and the digests of its paths.
func (s *Spec) Digest() ir.Digest {
	paths := make(ir.IRArray, len(s.paths))
	for i, p := range s.paths {
		paths[i] = ir.IRString(p.Digest().String())
	}
	return ir.MustHashValue(ir.DomainSpec, ir.Tagged("spec",
		"name", ir.IRString(s.name),
		"root", ir.IRString(s.root),
		"split", ir.IRBool(s.opts.Split),
		"tracking", ir.IRString(s.opts.Tracking.String()),
		"paths", paths,
	))
}

// PathError reports an expression that cannot join a spec.
type PathError struct {
	Spec   string
	Source string

	// Err is the walk or reduction failure, when there is one.
	Err error

	// Findings are the error findings, when validation failed.
	Findings []validate.Finding
}

// Error implements the error interface.
func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spec %s: path %s: %v", e.Spec, e.Source, e.Err)
	}
	return fmt.Sprintf("spec %s: path %s: %s", e.Spec, e.Source, e.Findings[0].Message)
}

// Unwrap returns the underlying failure.
func (e *PathError) Unwrap() error { return e.Err }

// ErrBuilt is returned by a Builder used after Build.
var ErrBuilt = errors.New("spec builder already built")

// Builder assembles a Spec. Methods chain; the first error is kept and
// returned by Build.
type Builder struct {
	cache *Cache
	spec  *Spec
	err   error
	built bool
}

// NewBuilder starts a spec named name over root type root. Paths are
// compiled through cache.
func NewBuilder(cache *Cache, name, root string) *Builder {
	return &Builder{cache: cache, spec: &Spec{name: name, root: root}}
}

func (b *Builder) usable() bool {
	if b.built && b.err == nil {
		b.err = ErrBuilt
	}
	return b.err == nil
}

// Include adds path expressions. An expression that fails to walk or reduce,
// or whose validation produces errors, fails the builder.
func (b *Builder) Include(exprs ...string) *Builder {
	for _, src := range exprs {
		if !b.usable() {
			return b
		}
		entry, err := b.cache.Lookup(context.Background(), b.spec.root, src)
		switch {
		case err != nil:
			b.err = &PathError{Spec: b.spec.name, Source: src, Err: err}
		case entry.Err != nil:
			b.err = &PathError{Spec: b.spec.name, Source: src, Err: entry.Err}
		case validate.HasErrors(entry.Findings):
			b.err = &PathError{Spec: b.spec.name, Source: src, Findings: validate.Errors(entry.Findings)}
		default:
			b.spec.paths = append(b.spec.paths, entry.Path)
			b.spec.sources = append(b.spec.sources, src)
		}
	}
	return b
}

// Import adds every path of other, which must share the root type.
func (b *Builder) Import(other *Spec) *Builder {
	if !b.usable() {
		return b
	}
	if other.root != b.spec.root {
		b.err = fmt.Errorf("spec %s (root %s) cannot import %s (root %s)", b.spec.name, b.spec.root, other.name, other.root)
		return b
	}
	b.spec.paths = append(b.spec.paths, other.paths...)
	b.spec.sources = append(b.spec.sources, other.sources...)
	b.spec.imports = append(b.spec.imports, other.name)
	return b
}

// Split asks for one statement per include.
func (b *Builder) Split() *Builder {
	if b.usable() {
		b.spec.opts.Split = true
	}
	return b
}

// Tracking sets the change-tracking mode.
func (b *Builder) Tracking(t Tracking) *Builder {
	if b.usable() {
		b.spec.opts.Tracking = t
	}
	return b
}

// Build returns the spec. The builder cannot be used afterward.
func (b *Builder) Build() (*Spec, error) {
	if !b.usable() {
		return nil, b.err
	}
	if b.spec.name == "" {
		return nil, errors.New("spec name is required")
	}
	b.built = true
	return b.spec, nil
}
