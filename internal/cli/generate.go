package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/eagerpath/internal/analyzer"
	"github.com/roach88/eagerpath/internal/codegen"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output  string
	Package string
	Tests   bool
}

// GenerateResult describes one generated file.
type GenerateResult struct {
	File          string                `json:"file"`
	Package       string                `json:"package"`
	Registrations int                   `json:"registrations"`
	Skipped       int                   `json:"skipped"`
	Errors        int                   `json:"errors"`
	Diagnostics   []analyzer.Diagnostic `json:"diagnostics,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [go-dir]",
		Short: "Precompile the path expressions of a Go package",
		Long: `Generate a Go file that registers a precompiled include chain for every
literal path expression in a package that checks cleanly. Expressions
that do not are reported and left to run-time interpretation.

Without a directory, every entrypoint of the project file is generated.

Examples:
  eagerpath generate ./internal/store
  eagerpath generate ./internal/store -o paths_gen.go`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", codegen.DefaultOutput, "generated file name, inside the package directory")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package name of the generated file (default: the scanned package)")
	cmd.Flags().BoolVar(&opts.Tests, "tests", false, "include _test.go files")

	return cmd
}

func runGenerate(ctx context.Context, opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dirs, err := packageDirs(args, opts.Project)
	if err != nil {
		return commandError(formatter, err)
	}

	genOpts := codegen.Options{
		Options: analyzer.Options{
			Statics: opts.Project.Statics,
			Tests:   opts.Tests,
			Logger:  opts.logger(),
		},
		Package: opts.Package,
	}

	var results []GenerateResult
	failed := false
	for _, dir := range dirs {
		file, res, err := codegen.Write(ctx, dir, opts.Output, genOpts)
		if err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
		}
		regs, err := codegen.Registrations(res)
		if err != nil {
			return commandError(formatter, err)
		}
		opts.logger().Debug("generated", "file", file, "registrations", len(regs))

		failed = failed || res.HasErrors()
		results = append(results, GenerateResult{
			File:          file,
			Package:       res.Package.Name,
			Registrations: len(regs),
			Skipped:       len(res.Skipped),
			Errors:        len(res.Diagnostics) - res.Warnings(),
			Diagnostics:   res.Diagnostics,
		})
	}

	if err := outputGenerate(formatter, results, failed); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, "generated with errors: some paths were not precompiled")
	}
	return nil
}

func outputGenerate(formatter *OutputFormatter, results []GenerateResult, failed bool) error {
	if formatter.Format == "json" {
		if failed {
			return formatter.Failure(ErrCodeInvalid, "generated with errors", results)
		}
		return formatter.Success(results)
	}

	w := formatter.Writer
	for _, r := range results {
		fmt.Fprintf(w, "%s Wrote %s: %d registration(s), %d skipped\n",
			formatter.Mark(r.Errors == 0), r.File, r.Registrations, r.Skipped)
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s: %s %s: %s\n", relPos(filepath.Dir(r.File), d.Pos), d.Code, d.Severity, d.Message)
		}
	}
	return nil
}
