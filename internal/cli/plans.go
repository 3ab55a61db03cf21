package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/eagerpath/internal/store"
)

// PlansOptions holds flags for the plans command.
type PlansOptions struct {
	*RootOptions
	Database string
	Runs     bool   // list runs instead of plans
	Diff     string // run to compare against
	Hash     string // find plans by path hash
}

// PlansResult is the plans of one run.
type PlansResult struct {
	Run   store.Run    `json:"run"`
	Plans []store.Plan `json:"plans"`
}

// DiffResult is the plan differences between two runs.
type DiffResult struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Changes []store.Change `json:"changes"`
}

// NewPlansCommand creates the plans command.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plans [run-id]",
		Short: "Inspect recorded compile runs",
		Long: `Show the plans recorded by "eagerpath compile --db".

Without a run ID the latest run is shown. --diff compares the run with
an older one; --hash finds every run that produced a given plan.

Examples:
  eagerpath plans --db ./plans.db
  eagerpath plans --db ./plans.db --runs
  eagerpath plans --db ./plans.db <run-id> --diff <older-run-id>`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Database = cmp.Or(opts.Database, opts.Project.Database)
			var run string
			if len(args) > 0 {
				run = args[0]
			}
			return runPlans(cmd.Context(), opts, run, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the plan database")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list compile runs")
	cmd.Flags().StringVar(&opts.Diff, "diff", "", "compare with this older run")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "find plans with this path hash")

	return cmd
}

func runPlans(ctx context.Context, opts *PlansOptions, runID string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		return commandError(formatter, &LoadError{Code: ErrCodeNoInput, Message: "no plan database given (--db)"})
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error()})
	}
	defer st.Close()

	storeErr := func(err error) error {
		return commandError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error()})
	}

	switch {
	case opts.Runs:
		runs, err := st.Runs(ctx)
		if err != nil {
			return storeErr(err)
		}
		return outputRuns(formatter, runs)

	case opts.Hash != "":
		plans, err := st.FindPlans(ctx, opts.Hash)
		if err != nil {
			return storeErr(err)
		}
		return outputPlans(formatter, &PlansResult{Plans: plans})
	}

	var run store.Run
	if runID == "" {
		run, err = st.LatestRun(ctx)
		if errors.Is(err, store.ErrNoRuns) {
			if formatter.Format == "json" {
				return formatter.Success(&PlansResult{Plans: []store.Plan{}})
			}
			fmt.Fprintln(formatter.Writer, "No runs recorded")
			return nil
		}
	} else {
		run, err = st.ReadRun(ctx, runID)
	}
	if err != nil {
		return storeErr(err)
	}

	if opts.Diff != "" {
		changes, err := st.Diff(ctx, opts.Diff, run.ID)
		if err != nil {
			return storeErr(err)
		}
		return outputDiff(formatter, &DiffResult{From: opts.Diff, To: run.ID, Changes: changes})
	}

	plans, err := st.ReadPlans(ctx, run.ID)
	if err != nil {
		return storeErr(err)
	}
	return outputPlans(formatter, &PlansResult{Run: run, Plans: plans})
}

func outputRuns(formatter *OutputFormatter, runs []store.Run) error {
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Version)
	}
	return nil
}

func outputPlans(formatter *OutputFormatter, result *PlansResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	if result.Run.ID != "" {
		fmt.Fprintf(w, "Run %s (%s, %s): %d plan(s)\n", result.Run.ID, result.Run.StartedAt.Format(time.RFC3339), result.Run.Version, len(result.Plans))
	}
	for _, p := range result.Plans {
		fmt.Fprintf(w, "%3d %s %s: %s\n", p.Seq, shortHash(p.PathHash), p.Spec, p.Source)
		if formatter.Verbose {
			fmt.Fprintf(w, "    %s\n", p.Directives)
			for _, s := range p.Statements {
				fmt.Fprintf(w, "    %s\n", s)
			}
		}
	}
	return nil
}

func outputDiff(formatter *OutputFormatter, result *DiffResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	if len(result.Changes) == 0 {
		fmt.Fprintf(w, "%s No plan changes from %s to %s\n", formatter.Mark(true), result.From, result.To)
		return nil
	}
	for _, c := range result.Changes {
		switch c.Kind {
		case store.ChangeAdded:
			fmt.Fprintf(w, "+ %s: %s\n", c.Spec, c.Source)
		case store.ChangeRemoved:
			fmt.Fprintf(w, "- %s: %s\n", c.Spec, c.Source)
		default:
			fmt.Fprintf(w, "~ %s: %s (%s -> %s)\n", c.Spec, c.Source, shortHash(c.From), shortHash(c.To))
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
