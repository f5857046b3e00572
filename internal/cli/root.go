package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	SeqURL  string // optional Seq server for structured logs
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the joinopt CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "joinopt",
		Short: "joinopt - join order optimizer for triple-pattern queries",
		Long: `Find cheap evaluation orders for graph queries.

joinopt reads CUE workloads of triple-pattern queries, costs them against
dataset statistics, and searches the space of join orders with Monte Carlo
tree search. Plans and statistics can be kept in a SQLite store for replay
and history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.SeqURL, "seq-url", "", "also send logs to this Seq server")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the command logger. Logs go to stderr so JSON on
// stdout stays clean.
func newLogger(opts *RootOptions, cmd *cobra.Command) (*slog.Logger, func() error, error) {
	return logging.New(logging.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
		SeqURL:  opts.SeqURL,
	})
}
