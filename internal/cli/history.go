package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/history"
	"github.com/roach88/contracttape/internal/impact"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB        string
	Fixture   string
	Index     string
	MinImpact string
	Limit     int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded passes from the impact history",
		Long: `List recording passes stored in the SQLite history database.

The database defaults to history_db from the configuration file.

Examples:
  contracttape history --db .contracttape/history.db
  contracttape history --fixture recordings/weather --min-impact minor --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "history database (overrides history_db)")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "only passes for this fixture base path")
	cmd.Flags().StringVar(&opts.Index, "index", "", "only passes for this index key (profile/provider/usecase)")
	cmd.Flags().StringVar(&opts.MinImpact, "min-impact", "none", "lowest impact to list (none|patch|minor|major)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent N passes")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	path := opts.DB
	if path == "" {
		path = opts.Config().HistoryDB
	}
	if path == "" {
		return outputCommandError(out, ErrCodeInvalid, "no history database: set history_db or pass --db", nil)
	}

	minImpact, err := impact.ParseLevel(opts.MinImpact)
	if err != nil {
		return outputCommandError(out, ErrCodeInvalid, fmt.Sprintf("invalid --min-impact %q", opts.MinImpact), err)
	}

	store, err := history.Open(path)
	if err != nil {
		return outputCommandError(out, ErrCodeHistory, "cannot open history database", err)
	}
	defer store.Close()

	records, err := store.ListPasses(cmd.Context(), history.Query{
		Fixture:   opts.Fixture,
		Index:     opts.Index,
		MinImpact: minImpact,
		Limit:     opts.Limit,
	})
	if err != nil {
		return outputCommandError(out, ErrCodeHistory, "cannot query history", err)
	}

	return out.Report(records, false, func(w io.Writer) {
		if len(records) == 0 {
			fmt.Fprintln(w, "No passes recorded")
			return
		}
		for _, r := range records {
			fmt.Fprintf(w, "%4d %-6s %s %s findings=%d leaks=%d", r.Seq, r.Impact, r.Index, r.Fixture, r.Findings, r.Leaks)
			if r.Promoted {
				fmt.Fprint(w, " promoted")
			}
			fmt.Fprintln(w)
		}
	})
}
