package cli

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/eagerpath/internal/compiler"
	"github.com/roach88/eagerpath/internal/include"
	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/querysql"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Database string // plan database path
	SQL      bool   // plan relational loads
}

// DirectiveOutput is one lowered include call.
type DirectiveOutput struct {
	Verb     string `json:"verb"`
	Property string `json:"property"`
	Call     string `json:"call"`
}

// PathOutput is one lowered spec path.
type PathOutput struct {
	Source     string            `json:"source"`
	Hash       string            `json:"hash"`
	Directives []DirectiveOutput `json:"directives"`
}

// SpecOutput is one compiled spec.
type SpecOutput struct {
	Name    string           `json:"name"`
	Root    string           `json:"root"`
	Imports []string         `json:"imports,omitempty"`
	Options registry.Options `json:"options"`
	Digest  string           `json:"digest"`
	Paths   []PathOutput     `json:"paths"`

	// Statements are the planned loads of the whole spec, with --sql.
	Statements []querysql.Statement `json:"statements,omitempty"`

	plans []store.Plan
}

// CompilationResult holds every compiled spec in declaration order.
type CompilationResult struct {
	Specs []SpecOutput `json:"specs"`

	// Run and Inserted describe the persisted compile run, with --db.
	Run      string `json:"run,omitempty"`
	Inserted int    `json:"inserted,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Lower every spec path to include directives",
		Long: `Compile the CUE model and spec declarations in a directory.

Every spec path is walked, validated and lowered to nested include
directives. With --sql the relational loads of each spec are planned and
compiled to SQL. With --db the lowered plans are recorded as a compile
run in a SQLite database.

Examples:
  eagerpath compile ./specs
  eagerpath compile ./specs --sql --format json
  eagerpath compile ./specs --db ./plans.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Database = cmp.Or(opts.Database, opts.Project.Database)
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled specs as JSON to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the plans in this SQLite database")
	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "plan relational loads and print their SQL")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	ws, declErrs, err := LoadWorkspace(specsDir, opts.Project.Statics, logger)
	if err != nil {
		return commandError(formatter, err)
	}
	if len(declErrs) > 0 {
		return outputCompileErrors(formatter, declarationErrors(declErrs))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", ws.FileCount, specsDir)

	specs, err := compiler.Build(ws.Cache, ws.Decls.Specs)
	if err != nil {
		return outputCompileErrors(formatter, buildErrors(err))
	}

	applier := include.New(include.WithLogger(logger))
	result := &CompilationResult{Specs: make([]SpecOutput, len(specs))}
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		formatter.VerboseLog("Compiling spec: %s", spec.Name())
		g.Go(func() error {
			out, err := compileSpec(gctx, applier, ws, spec, opts.SQL)
			if err != nil {
				return err
			}
			result.Specs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return commandError(formatter, err)
	}

	if opts.Database != "" {
		if err := recordRun(ctx, opts.Database, result); err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeStoreFailed, err)
		}
		logger.Info("recorded compile run", "db", opts.Database, "run", result.Run, "inserted", result.Inserted)
	}

	if opts.Output != "" {
		if err := writeResultFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	return outputCompileSuccess(formatter, result, opts)
}

// compileSpec lowers every path of spec and, with withSQL, plans its loads.
func compileSpec(ctx context.Context, applier *include.Applier, ws *Workspace, spec *registry.Spec, withSQL bool) (SpecOutput, error) {
	out := SpecOutput{
		Name:    spec.Name(),
		Root:    spec.Root(),
		Imports: spec.Imports(),
		Options: spec.Options(),
		Digest:  spec.Digest().String(),
	}

	sources := spec.Sources()
	for i, p := range spec.Paths() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		dirs, err := lower.Lower(p)
		if err != nil {
			return out, fmt.Errorf("spec %s: lower %s: %w", spec.Name(), sources[i], err)
		}

		var stmts []string
		if withSQL {
			stmts, err = pathStatements(ctx, applier, ws.Mapping, spec, p)
			if err != nil {
				return out, fmt.Errorf("spec %s: plan %s: %w", spec.Name(), sources[i], err)
			}
		}

		plan, err := store.NewPlan(spec.Name(), spec.Root(), sources[i], dirs, stmts)
		if err != nil {
			return out, err
		}
		out.plans = append(out.plans, plan)
		out.Paths = append(out.Paths, PathOutput{
			Source:     sources[i],
			Hash:       plan.PathHash,
			Directives: directiveOutputs(dirs),
		})
	}

	if withSQL {
		planner := querysql.NewPlanner(ws.Mapping, spec.Root(), nil)
		if err := applier.Apply(ctx, planner, spec); err != nil {
			return out, fmt.Errorf("spec %s: %w", spec.Name(), err)
		}
		stmts, err := planner.Statements()
		if err != nil {
			return out, fmt.Errorf("spec %s: %w", spec.Name(), err)
		}
		out.Statements = stmts
	}
	return out, nil
}

// pathStatements plans one path on its own: the SQL stored with its plan.
func pathStatements(ctx context.Context, applier *include.Applier, m *querysql.Mapping, spec *registry.Spec, p path.Path) ([]string, error) {
	planner := querysql.NewPlanner(m, spec.Root(), nil)
	if err := applier.ApplyPaths(ctx, planner, spec.Options(), p); err != nil {
		return nil, err
	}
	stmts, err := planner.Statements()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out, nil
}

func directiveOutputs(dirs []lower.Directive) []DirectiveOutput {
	out := make([]DirectiveOutput, len(dirs))
	for i, d := range dirs {
		out[i] = DirectiveOutput{Verb: d.Verb(), Property: d.Property, Call: d.Render()}
	}
	return out
}

// recordRun writes every plan of result into a new compile run.
func recordRun(ctx context.Context, dbPath string, result *CompilationResult) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.BeginRun(ctx, Version)
	if err != nil {
		return err
	}
	result.Run = run.ID

	for _, spec := range result.Specs {
		for _, plan := range spec.plans {
			plan.RunID = run.ID
			_, inserted, err := st.WritePlan(ctx, plan)
			if err != nil {
				return err
			}
			if inserted {
				result.Inserted++
			}
		}
	}
	return nil
}

// declarationErrors converts declaration validation errors for output.
func declarationErrors(verrs []compiler.ValidationError) []CLIError {
	out := make([]CLIError, len(verrs))
	for i, ve := range verrs {
		out[i] = CLIError{Code: ve.Code, Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message)}
	}
	return out
}

// buildErrors splits the joined error of compiler.Build into one entry per
// failed spec.
func buildErrors(err error) []CLIError {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	out := make([]CLIError, 0, len(errs))
	for _, e := range errs {
		ce := CLIError{Code: ErrCodeGeneric, Message: e.Error()}
		var pe *registry.PathError
		if errors.As(e, &pe) {
			ce.Message = pe.Error()
			if len(pe.Findings) > 0 {
				ce.Code = string(pe.Findings[0].Code)
				ce.Details = pe.Findings
			} else if pe.Err != nil {
				ce.Code = pathError(pe.Err).Code
			}
		}
		out = append(out, ce)
	}
	return out
}

// outputCompileErrors outputs every compilation error. Compilation errors
// are command-level errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []CLIError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &errs[0],
			Data:   errs,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "%s Compilation failed\n\n", formatter.Mark(false))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, opts *CompileOptions) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	paths := 0
	for _, s := range result.Specs {
		paths += len(s.Paths)
	}
	fmt.Fprintf(w, "%s Compiled %d spec(s), %d path(s)\n", formatter.Mark(true), len(result.Specs), paths)

	for _, s := range result.Specs {
		fmt.Fprintln(w)
		writeSpec(w, s)
	}

	if result.Run != "" {
		fmt.Fprintf(w, "\nRecorded run %s in %s (%d new plan(s))\n", result.Run, opts.Database, result.Inserted)
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote compiled specs to %s\n", opts.Output)
	}
	return nil
}

func writeSpec(w io.Writer, s SpecOutput) {
	var flags []string
	if s.Options.Split {
		flags = append(flags, "split")
	}
	if s.Options.Tracking != registry.TrackingDefault {
		flags = append(flags, "tracking "+s.Options.Tracking.String())
	}
	if len(s.Imports) > 0 {
		flags = append(flags, "imports "+strings.Join(s.Imports, ", "))
	}
	fmt.Fprintf(w, "%s (%s)", s.Name, s.Root)
	if len(flags) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(flags, "; "))
	}
	fmt.Fprintln(w)

	for _, p := range s.Paths {
		fmt.Fprintf(w, "  %s\n", p.Source)
		for _, d := range p.Directives {
			fmt.Fprintf(w, "    %s\n", d.Call)
		}
	}

	if len(s.Statements) > 0 {
		fmt.Fprintln(w, "  SQL:")
		for _, st := range s.Statements {
			nav := cmp.Or(st.Navigation, s.Root)
			fmt.Fprintf(w, "    -- %s\n    %s\n", nav, st.SQL)
			for _, warn := range st.Warnings {
				fmt.Fprintf(w, "    -- warning: %s\n", warn)
			}
		}
	}
}

// writeResultFile writes the compilation result to a file as indented JSON.
func writeResultFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
