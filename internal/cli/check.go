package cli

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/eagerpath/internal/analyzer"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Strict   bool
	Watch    bool
	Tests    bool
	Debounce time.Duration
}

// CheckReport is the analysis of one Go package.
type CheckReport struct {
	Dir         string                `json:"dir"`
	Package     string                `json:"package"`
	Calls       int                   `json:"calls"`
	Compiled    int                   `json:"compiled"`
	Skipped     []analyzer.Skip       `json:"skipped,omitempty"`
	Diagnostics []analyzer.Diagnostic `json:"diagnostics,omitempty"`
}

// CheckResult holds the analysis of every checked package.
type CheckResult struct {
	Valid    bool          `json:"valid"`
	Packages []CheckReport `json:"packages"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [go-dir]",
		Short: "Check the path expressions written in a Go package",
		Long: `Scan a Go package for eager.Path, eager.Include and eager.NewSpec calls
and check every literal path expression against the package's types.

Without a directory, the entrypoints of the project file are checked.
With --watch the packages are re-checked whenever a .go file changes,
until interrupted.

Examples:
  eagerpath check ./internal/store
  eagerpath check ./internal/store --strict
  eagerpath check --watch`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Strict = strictFlag(cmd, opts.Strict, opts.Project)
			return runCheck(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-check on every change")
	cmd.Flags().BoolVar(&opts.Tests, "tests", false, "include _test.go files")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", analyzer.DefaultDebounce, "quiet period before a re-check")

	return cmd
}

// packageDirs returns the directory argument, or the project entrypoints.
func packageDirs(args []string, p Project) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(p.Entrypoints) == 0 {
		return nil, &LoadError{Code: ErrCodeNoInput, Message: "no package directory given and no entrypoints configured"}
	}
	return p.Entrypoints, nil
}

func (o *CheckOptions) analyzerOptions() analyzer.Options {
	return analyzer.Options{
		Statics: o.Project.Statics,
		Tests:   o.Tests,
		Logger:  o.logger(),
	}
}

func runCheck(ctx context.Context, opts *CheckOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dirs, err := packageDirs(args, opts.Project)
	if err != nil {
		return commandError(formatter, err)
	}

	if opts.Watch {
		return watchCheck(ctx, opts, dirs, formatter)
	}

	results := make([]*analyzer.Result, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	for i, dir := range dirs {
		g.Go(func() error {
			res, err := analyzer.Analyze(gctx, dir, opts.analyzerOptions())
			if err != nil {
				return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return commandError(formatter, err)
	}

	result := checkResult(dirs, results, opts.Strict)
	if err := outputCheck(formatter, result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("check failed: %d error(s), %d warning(s)", result.Errors, result.Warnings))
	}
	return nil
}

// watchCheck re-checks every directory on change until ctx is done. Scan
// failures mid-edit are reported and the watch continues.
func watchCheck(ctx context.Context, opts *CheckOptions, dirs []string, formatter *OutputFormatter) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		g.Go(func() error {
			return analyzer.Watch(gctx, dir, opts.analyzerOptions(), opts.Debounce, func(res *analyzer.Result, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
					return
				}
				_ = outputCheck(formatter, checkResult([]string{dir}, []*analyzer.Result{res}, opts.Strict))
			})
		})
	}
	if err := g.Wait(); err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()})
	}
	return nil
}

func checkResult(dirs []string, results []*analyzer.Result, strict bool) *CheckResult {
	out := &CheckResult{}
	for i, res := range results {
		out.Packages = append(out.Packages, CheckReport{
			Dir:         dirs[i],
			Package:     res.Package.Name,
			Calls:       len(res.Package.Calls),
			Compiled:    len(res.Compiled),
			Skipped:     res.Skipped,
			Diagnostics: res.Diagnostics,
		})
		w := res.Warnings()
		out.Warnings += w
		out.Errors += len(res.Diagnostics) - w
	}
	out.Valid = out.Errors == 0 && (!strict || out.Warnings == 0)
	return out
}

func outputCheck(formatter *OutputFormatter, result *CheckResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		return formatter.Failure(ErrCodeInvalid, "check failed", result)
	}

	w := formatter.Writer
	for _, p := range result.Packages {
		fmt.Fprintf(w, "%s (%s): %d call(s), %d path(s) compiled, %d skipped\n",
			p.Package, p.Dir, p.Calls, p.Compiled, len(p.Skipped))
		for _, d := range p.Diagnostics {
			fmt.Fprintf(w, "  %s: %s %s: %s\n", relPos(p.Dir, d.Pos), d.Code, d.Severity, d.Message)
			if d.Fix != "" {
				fmt.Fprintf(w, "    fix: %s\n", d.Fix)
			}
		}
		if formatter.Verbose {
			writeSkips(w, p)
		}
	}

	if result.Valid {
		fmt.Fprintf(w, "%s %d error(s), %d warning(s)\n", formatter.Mark(true), result.Errors, result.Warnings)
	} else {
		fmt.Fprintf(w, "%s %d error(s), %d warning(s)\n", formatter.Mark(false), result.Errors, result.Warnings)
	}
	return nil
}

func writeSkips(w io.Writer, p CheckReport) {
	for _, s := range p.Skipped {
		fmt.Fprintf(w, "  %s: skipped: %s\n", relPos(p.Dir, s.Pos), s.Reason)
	}
}

// relPos renders pos with its file name relative to dir.
func relPos(dir string, pos token.Position) string {
	if rel, err := filepath.Rel(dir, pos.Filename); err == nil {
		pos.Filename = rel
	}
	return pos.String()
}
