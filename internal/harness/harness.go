package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/eagerpath/internal/compiler"
	"github.com/roach88/eagerpath/internal/include"
	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/querysql"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/store"
	"github.com/roach88/eagerpath/internal/testutil"
	"github.com/roach88/eagerpath/internal/validate"
	"github.com/roach88/eagerpath/internal/walker"
)

// Version is recorded as the version of every harness run.
const Version = "harness"

// Harness executes the cases of one scenario.
type Harness struct {
	store   *store.Store
	run     store.Run
	cache   *registry.Cache
	mapping *querysql.Mapping
	applier *include.Applier
	logger  *slog.Logger
}

// outcome collects what one case produced, for its expect clause.
type outcome struct {
	calls      []string
	findings   []string
	errKind    string
	statements int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory plan store. A step clock and
// sequential run IDs keep the stored rows reproducible.
//
// Execution flow:
// 1. Compile and validate the CUE declarations
// 2. Compile every case: walk, validate, reduce, lower, compose, plan
// 3. Store the plan of every case that lowered
// 4. Check expect clauses and evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	decls, err := loadDeclarations(scenario.Specs)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(decls); len(verrs) > 0 {
		msgs := make([]error, len(verrs))
		for i, v := range verrs {
			msgs[i] = v
		}
		return nil, fmt.Errorf("invalid declarations: %w", errors.Join(msgs...))
	}
	schema, err := compiler.Schema(decls.Models)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewStepClock().Now),
		store.WithIDGenerator(testutil.NewSequentialIDs("")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	run, err := st.BeginRun(ctx, Version)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	statics := append(slices.Clone(scenario.Statics), compiler.Statics(decls.Specs)...)
	h := &Harness{
		store:   st,
		run:     run,
		cache:   registry.NewCache(schema, walker.Options{Statics: statics}, registry.WithLogger(logger)),
		mapping: compiler.Mapping(decls.Models),
		applier: include.New(include.WithLogger(logger)),
		logger:  logger,
	}

	result := NewResult()
	for _, c := range scenario.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := h.runCase(ctx, c, result)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		if c.Expect != nil {
			for _, msg := range checkExpect(c, out) {
				result.AddError(msg)
			}
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}
	return result, nil
}

// loadDeclarations compiles the CUE files into one declaration set.
func loadDeclarations(files []string) (*compiler.Declarations, error) {
	cctx := cuecontext.New()
	value := cctx.CompileString("{}")
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		v := cctx.CompileBytes(data, cue.Filename(file))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}
		value = value.Unify(v)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("unify specs: %w", err)
	}
	return compiler.Compile(value)
}

// runCase traces one case. Case failures are recorded as events; the
// returned error is reserved for the plan store.
func (h *Harness) runCase(ctx context.Context, c Case, result *Result) (outcome, error) {
	var (
		out   outcome
		paths []path.Path
		dirs  []lower.Directive
	)
	fail := func(err error) {
		kind := errorKind(err)
		if out.errKind == "" {
			out.errKind = kind
		}
		result.record(c.Name, EventError, fmt.Sprintf("%s: %s", kind, errorMessage(err)))
	}

	for _, src := range c.Paths {
		entry, err := h.cache.Lookup(ctx, c.Root, src)
		if err != nil {
			fail(err)
			continue
		}
		for _, f := range entry.Findings {
			out.findings = append(out.findings, string(f.Code))
			result.record(c.Name, EventFinding, fmt.Sprintf("%s: %s", f.Code, f.Message))
			if f.Fix != nil {
				result.record(c.Name, EventFix, f.Fix.Replacement)
			}
		}
		if validate.HasErrors(entry.Findings) {
			continue
		}
		if entry.Err != nil {
			fail(entry.Err)
			continue
		}

		ds, err := lower.Lower(entry.Path)
		if err != nil {
			fail(err)
			continue
		}
		for _, d := range ds {
			out.calls = append(out.calls, d.Render())
			result.record(c.Name, EventDirective, d.Render())
		}
		paths = append(paths, entry.Path)
		dirs = append(dirs, ds...)
	}

	if len(paths) != len(c.Paths) || out.errKind != "" {
		return out, nil
	}
	if err := lower.Compose(paths...); err != nil {
		fail(err)
		return out, nil
	}

	planner := querysql.NewPlanner(h.mapping, c.Root, nil)
	if err := h.applier.ApplyPaths(ctx, planner, registry.Options{}, paths...); err != nil {
		fail(err)
		return out, nil
	}
	stmts, err := planner.Statements()
	if err != nil {
		fail(err)
		return out, nil
	}
	sqls := make([]string, len(stmts))
	for i, s := range stmts {
		sqls[i] = s.SQL
		result.record(c.Name, EventStatement, s.SQL)
	}
	out.statements = len(stmts)

	plan, err := store.NewPlan(c.Name, c.Root, strings.Join(c.Paths, "; "), dirs, sqls)
	if err != nil {
		return out, err
	}
	plan.RunID = h.run.ID
	if _, _, err := h.store.WritePlan(ctx, plan); err != nil {
		return out, err
	}
	result.Plans[c.Name] = plan.PathHash
	result.record(c.Name, EventPlan, plan.PathHash)
	h.logger.Debug("case planned", "case", c.Name, "hash", plan.PathHash, "statements", len(stmts))
	return out, nil
}

// errorKind categorizes a case failure.
func errorKind(err error) string {
	var we *walker.WalkError
	switch {
	case errors.As(err, &we):
		return string(we.Kind)
	case lower.IsConflict(err):
		return "CONFLICT"
	case lower.IsInvariant(err):
		return "INVARIANT"
	}
	var te *querysql.TranslateError
	if errors.As(err, &te) {
		return "TRANSLATE"
	}
	return "ERROR"
}

func errorMessage(err error) string {
	var we *walker.WalkError
	if errors.As(err, &we) {
		return we.Message
	}
	return err.Error()
}

// checkExpect compares a case outcome with its expect clause.
func checkExpect(c Case, out outcome) []string {
	var errs []string
	exp := c.Expect

	if exp.Error != out.errKind {
		switch {
		case exp.Error == "":
			errs = append(errs, fmt.Sprintf("case %s: unexpected error %s", c.Name, out.errKind))
		case out.errKind == "":
			errs = append(errs, fmt.Sprintf("case %s: expected error %s, got none", c.Name, exp.Error))
		default:
			errs = append(errs, fmt.Sprintf("case %s: expected error %s, got %s", c.Name, exp.Error, out.errKind))
		}
	}
	if exp.Findings != nil && !slices.Equal(exp.Findings, out.findings) {
		errs = append(errs, fmt.Sprintf("case %s: expected findings %v, got %v", c.Name, exp.Findings, out.findings))
	}
	if exp.Calls != nil && !slices.Equal(exp.Calls, out.calls) {
		errs = append(errs, fmt.Sprintf("case %s: expected calls %q, got %q", c.Name, exp.Calls, out.calls))
	}
	if exp.Statements > 0 && exp.Statements != out.statements {
		errs = append(errs, fmt.Sprintf("case %s: expected %d statement(s), got %d", c.Name, exp.Statements, out.statements))
	}
	return errs
}
