package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/recording"
)

// PromoteOutput is the promote command result.
type PromoteOutput struct {
	Main     string `json:"main"`
	Archived string `json:"archived,omitempty"`
	Promoted int    `json:"promoted"`
}

// NewPromoteCommand creates the promote command.
func NewPromoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote <fixture-base>",
		Short: "Promote a candidate recording to the main recording",
		Long: `Merge <base>-new.json into <base>.json.

The previous main file is moved to old/<name>_<n>.json before the merged
file is written, then the candidate is deleted.

Examples:
  contracttape promote recordings/weather`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromote(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPromote(opts *RootOptions, base string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	result, err := recording.PromoteCandidate(base)
	if recording.IsNotFound(err) {
		return outputCommandError(out, ErrCodeNotFound, "no candidate recording for "+base, err)
	}
	if err != nil {
		return outputCommandError(out, ErrCodeGeneric, "promote failed", err)
	}

	opts.Logger().Info("promoted candidate", "base", base, "entries", result.Promoted, "archived", result.Archived)

	output := PromoteOutput{
		Main:     recording.MainPath(base),
		Archived: result.Archived,
		Promoted: result.Promoted,
	}
	return out.Report(output, false, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Promoted %d entr%s into %s\n", output.Promoted, plural(output.Promoted, "y", "ies"), output.Main)
		if output.Archived != "" {
			fmt.Fprintf(w, "  previous recording archived to %s\n", output.Archived)
		}
	})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
