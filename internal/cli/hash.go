package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/recording"
)

// HashOutput is the hash command result.
type HashOutput struct {
	Hash string `json:"hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash <input.json | ->",
		Short: "Print the input hash of a test case input",
		Long: `Hash a JSON test case input the way recordings are keyed.

The input is canonicalized before hashing, so key order and whitespace do
not change the result. Use - to read from stdin.

Examples:
  contracttape hash input.json
  echo '{"city":"Prague"}' | contracttape hash -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runHash(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return outputCommandError(out, ErrCodeNotFound, "input file not found: "+path, err)
	}
	if err != nil {
		return outputCommandError(out, ErrCodeGeneric, "read input", err)
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return outputCommandError(out, ErrCodeInvalid, "input is not valid JSON", err)
	}

	hash, err := recording.HashInput(input)
	if err != nil {
		return outputCommandError(out, ErrCodeInvalid, "cannot hash input", err)
	}

	return out.Report(HashOutput{Hash: hash}, false, func(w io.Writer) {
		fmt.Fprintln(w, hash)
	})
}
