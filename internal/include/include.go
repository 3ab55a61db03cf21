// Package include applies specs to a query: it lowers every path, checks
// the paths compose, merges the query options and feeds the directives to a
// Target in path order.
package include

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/registry"
)

// Target is a query that accepts lowered includes.
type Target interface {
	// Include adds one directive. Directives of one path arrive in
	// root-to-leaf order, starting with a root load.
	Include(d lower.Directive) error

	// Configure applies the merged query options. It is called once,
	// before any Include.
	Configure(opts registry.Options) error
}

// Applier applies specs and paths to targets.
type Applier struct {
	logger *slog.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// New returns an Applier. It logs to slog.Default unless WithLogger is given.
func New(opts ...Option) *Applier {
	a := &Applier{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply lowers and applies specs to t with a default Applier.
func Apply(ctx context.Context, t Target, specs ...*registry.Spec) error {
	return New().Apply(ctx, t, specs...)
}

// ApplyPaths lowers and applies paths to t with a default Applier.
func ApplyPaths(ctx context.Context, t Target, opts registry.Options, paths ...path.Path) error {
	return New().ApplyPaths(ctx, t, opts, paths...)
}

// Apply lowers and applies specs to t. All specs must share a root type.
func (a *Applier) Apply(ctx context.Context, t Target, specs ...*registry.Spec) error {
	var paths []path.Path
	for _, s := range specs {
		if len(paths) > 0 && s.Root() != paths[0].Root() {
			return fmt.Errorf("apply: spec %s has root %s, want %s", s.Name(), s.Root(), paths[0].Root())
		}
		paths = append(paths, s.Paths()...)
	}
	if err := lower.Compose(paths...); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return a.ApplyPaths(ctx, t, registry.MergeOptions(specs...), paths...)
}

// ApplyPaths lowers and applies paths to t with the given options. The caller
// is responsible for having checked that the paths compose.
func (a *Applier) ApplyPaths(ctx context.Context, t Target, opts registry.Options, paths ...path.Path) error {
	directives := make([][]lower.Directive, len(paths))
	for i, p := range paths {
		ds, err := lower.Lower(p)
		if err != nil {
			return fmt.Errorf("apply: lower %s: %w", p, err)
		}
		directives[i] = ds
	}

	if err := t.Configure(opts); err != nil {
		return fmt.Errorf("apply: configure: %w", err)
	}
	for i, ds := range directives {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, d := range ds {
			if err := t.Include(d); err != nil {
				return fmt.Errorf("apply: %s: %w", paths[i], err)
			}
		}
		a.logger.Debug("applied path", "path", paths[i].String(), "directives", len(ds))
	}
	return nil
}

// Recorder is a Target that records the include chain as text.
type Recorder struct {
	Options    registry.Options
	Directives []lower.Directive
	configured bool
}

// Configure implements Target.
func (r *Recorder) Configure(opts registry.Options) error {
	if r.configured {
		return errors.New("recorder configured twice")
	}
	r.configured = true
	r.Options = opts
	return nil
}

// Include implements Target.
func (r *Recorder) Include(d lower.Directive) error {
	if len(r.Directives) == 0 && d.Kind != lower.KindRoot {
		return fmt.Errorf("continuation %s without a root load", d.Property)
	}
	r.Directives = append(r.Directives, d)
	return nil
}

// String renders the recorded chain:
//
//	q.AsSplitQuery().Include(...).ThenInclude(...)
func (r *Recorder) String() string {
	var b strings.Builder
	b.WriteString("q")
	if r.Options.Split {
		b.WriteString(".AsSplitQuery()")
	}
	switch r.Options.Tracking {
	case registry.TrackingIdentityResolution:
		b.WriteString(".AsNoTrackingWithIdentityResolution()")
	case registry.TrackingNone:
		b.WriteString(".AsNoTracking()")
	}
	for _, d := range r.Directives {
		b.WriteByte('.')
		b.WriteString(d.Render())
	}
	return b.String()
}
