package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// Version is recorded with every compile run.
const Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string

	// Project holds the project file defaults. Loaded before any command runs.
	Project Project

	// Logger receives diagnostic output. Nil logs to stderr.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the eagerpath CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eagerpath",
		Short: "Compile eager-loading path expressions",
		Long: `eagerpath compiles path expressions such as
"o.LineItems[each].Product" into nested include directives, checks them
against a type universe, and plans the relational loads they imply.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "project file (default "+DefaultConfigFile+" if present)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewPlansCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the project file, applies its defaults to flags the user did
// not set, validates the format and installs the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	project, err := LoadProject(o.Config)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return WrapExitError(ExitCommandError, "loading project file", err)
	}
	o.Project = project

	if project.Format != "" && !cmd.Flags().Changed("format") {
		o.Format = project.Format
	}
	if !isValidFormat(o.Format) {
		msg := fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats)
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)
		return NewExitError(ExitCommandError, msg)
	}

	o.Logger = NewLogger(cmd.ErrOrStderr(), o.Verbose)
	slog.SetDefault(o.Logger)
	if project.Path != "" {
		o.Logger.Debug("loaded project file", "path", project.Path)
	}
	return nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// NewLogger returns a text logger on w at Info, or Debug when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
