package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/eagerpath/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []harness.FileResult `json:"scenarios"`
	Passed    int                  `json:"passed"`
	Failed    int                  `json:"failed"`
	Total     int                  `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <specs-dir> <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against model declarations.

Each scenario file compiles a list of cases and checks their expected
include calls, findings and errors, trace assertions and the recorded plans.
A scenario with a golden file must also reproduce its trace exactly.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  eagerpath test ./specs ./scenarios
  eagerpath test ./specs ./scenarios --filter "nav*"
  eagerpath test ./specs ./scenarios --update`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, specsDir, scenariosDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	for _, dir := range []string{specsDir, scenariosDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("directory not found: %s", dir)})
		}
	}

	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeScanError, Message: err.Error()})
	}

	result := TestResult{
		Scenarios: make([]harness.FileResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		formatter.VerboseLog("Running scenario: %s", file)
		fr := harness.RunFile(ctx, file, specsDir, opts.Update)
		result.Scenarios = append(result.Scenarios, fr)
		if fr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		opts.logger().Debug("scenario finished", "file", file, "pass", fr.Pass, "golden", fr.Golden)
	}

	if err := outputTests(formatter, result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTests(formatter *OutputFormatter, result TestResult) error {
	if formatter.Format == "json" {
		if result.Failed > 0 {
			return formatter.Failure(ErrCodeTestFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed), result)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	for _, fr := range result.Scenarios {
		switch fr.Golden {
		case harness.GoldenUpdated:
			fmt.Fprintf(w, "%s %s (golden updated)\n", formatter.Mark(fr.Pass), fr.Name)
		default:
			fmt.Fprintf(w, "%s %s\n", formatter.Mark(fr.Pass), fr.Name)
		}
		for _, e := range fr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintf(w, "%s All scenarios passed\n", formatter.Mark(true))
	}
	return nil
}
