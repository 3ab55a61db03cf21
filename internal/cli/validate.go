package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eagerpath/internal/compiler"
	"github.com/roach88/eagerpath/internal/validate"
	"github.com/roach88/eagerpath/internal/walker"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// PathReport is the outcome of one spec path that did not validate cleanly.
type PathReport struct {
	Spec     string             `json:"spec"`
	Source   string             `json:"source"`
	Findings []validate.Finding `json:"findings,omitempty"`
	Error    *CLIError          `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                       `json:"valid"`
	Declarations []compiler.ValidationError `json:"declarations,omitempty"`
	Paths        []PathReport               `json:"paths,omitempty"`
	Checked      int                        `json:"checked"`
	Errors       int                        `json:"errors"`
	Warnings     int                        `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Check declarations and spec paths without lowering",
		Long: `Validate CUE model and spec declarations, then walk every spec path
and report its findings.

Exit status is 1 when any error finding is reported, or any warning with
--strict.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Strict = strictFlag(cmd, opts.Strict, opts.Project)
			return runValidate(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")

	return cmd
}

// strictFlag returns the --strict flag when set, the project default
// otherwise.
func strictFlag(cmd *cobra.Command, flag bool, p Project) bool {
	if cmd.Flags().Changed("strict") {
		return flag
	}
	return flag || p.Strict
}

func runValidate(ctx context.Context, opts *ValidateOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ws, declErrs, err := LoadWorkspace(specsDir, opts.Project.Statics, opts.logger())
	if err != nil {
		return commandError(formatter, err)
	}

	result := &ValidationResult{Declarations: declErrs, Errors: len(declErrs)}
	if ws != nil {
		formatter.VerboseLog("Found %d CUE file(s) in %s", ws.FileCount, specsDir)
		reports, checked, err := validatePaths(ctx, ws, formatter)
		if err != nil {
			return commandError(formatter, err)
		}
		result.Paths = reports
		result.Checked = checked
		for _, r := range reports {
			if r.Error != nil {
				result.Errors++
			}
			result.Errors += len(validate.Errors(r.Findings))
			result.Warnings += len(validate.Warnings(r.Findings))
		}
	}

	result.Valid = result.Errors == 0 && (!opts.Strict || result.Warnings == 0)
	if err := outputValidation(formatter, result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d error(s), %d warning(s)", result.Errors, result.Warnings))
	}
	return nil
}

// validatePaths walks every declared spec path through the workspace cache.
// Paths without findings are counted but not reported.
func validatePaths(ctx context.Context, ws *Workspace, formatter *OutputFormatter) ([]PathReport, int, error) {
	var reports []PathReport
	checked := 0
	for _, spec := range ws.Decls.Specs {
		formatter.VerboseLog("Validating spec: %s", spec.Name)
		for _, src := range spec.Paths {
			if err := ctx.Err(); err != nil {
				return nil, checked, err
			}
			checked++

			report := PathReport{Spec: spec.Name, Source: src}
			entry, err := ws.Cache.Lookup(ctx, spec.Root, src)
			switch {
			case err != nil:
				report.Error = pathError(err)
			case validate.HasErrors(entry.Findings):
				report.Findings = entry.Findings
			default:
				report.Findings = entry.Findings
				if entry.Err != nil {
					report.Error = pathError(entry.Err)
				}
			}
			if report.Error != nil || len(report.Findings) > 0 {
				reports = append(reports, report)
			}
		}
	}
	return reports, checked, nil
}

// pathError classifies a walk or reduction failure.
func pathError(err error) *CLIError {
	var we *walker.WalkError
	if errors.As(err, &we) {
		return &CLIError{Code: string(we.Kind), Message: we.Message}
	}
	return &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

func outputValidation(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		return formatter.Failure(ErrCodeInvalid, "validation failed", result)
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "%s Validated %d path(s)", formatter.Mark(true), result.Checked)
		if result.Warnings > 0 {
			fmt.Fprintf(w, " with %d warning(s)", result.Warnings)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "%s Validation failed: %d error(s), %d warning(s)\n", formatter.Mark(false), result.Errors, result.Warnings)
	}

	for _, ve := range result.Declarations {
		fmt.Fprintf(w, "\n%s\n  %s: %s\n", ve.Field, ve.Code, ve.Message)
	}
	for _, r := range result.Paths {
		fmt.Fprintf(w, "\n%s: %s\n", r.Spec, r.Source)
		if r.Error != nil {
			fmt.Fprintf(w, "  %s: %s\n", r.Error.Code, r.Error.Message)
		}
		writeFindings(w, r.Findings)
	}
	return nil
}
