package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/contracttape/internal/scrub"
)

// LeaksOptions holds flags for the leaks command.
type LeaksOptions struct {
	*RootOptions
	Provider    string
	Credentials string
	Input       string
}

// CredentialsFile is the on-disk shape of --credentials.
type CredentialsFile struct {
	Credentials map[string]scrub.Credential `yaml:"credentials"`
	Parameters  map[string]string           `yaml:"parameters,omitempty"`
}

// EntryLeak is a leak found in one recording entry.
type EntryLeak struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
	scrub.Leak
}

// LeaksOutput is the leaks command result.
type LeaksOutput struct {
	File    string      `json:"file"`
	Entries int         `json:"entries"`
	Leaks   []EntryLeak `json:"leaks"`
}

// NewLeaksCommand creates the leaks command.
func NewLeaksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "leaks <recording.json>",
		Short: "Scan a recording for unscrubbed secrets",
		Long: `Check that no credential, parameter or input value survived scrubbing.

Credentials are read from a YAML file keyed by security scheme id. Values of
the form $NAME are resolved from the environment (and .env).

Exit codes:
  0 - No leaks
  1 - At least one raw value is still present
  2 - Command error

Examples:
  contracttape leaks recordings/weather.json --provider weather.provider.yaml --credentials creds.yaml
  contracttape leaks recordings/weather.json --provider weather.provider.yaml --credentials creds.yaml --input input.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaks(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Provider, "provider", "", "provider definition YAML (required)")
	cmd.Flags().StringVar(&opts.Credentials, "credentials", "", "credentials YAML")
	cmd.Flags().StringVar(&opts.Input, "input", "", "test case input JSON")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func runLeaks(opts *LeaksOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	def, err := scrub.LoadProvider(opts.Provider)
	if err != nil {
		return outputCommandError(out, ErrCodeInvalid, "cannot load provider "+opts.Provider, err)
	}

	creds := CredentialsFile{}
	if opts.Credentials != "" {
		if creds, err = loadCredentials(opts.Credentials); err != nil {
			return outputCommandError(out, ErrCodeInvalid, "cannot load credentials "+opts.Credentials, err)
		}
	}

	var input map[string]any
	if opts.Input != "" {
		if input, err = loadInput(opts.Input); err != nil {
			return outputCommandError(out, ErrCodeInvalid, "cannot load input "+opts.Input, err)
		}
	}

	specs, err := scrub.Resolve(def, creds.Credentials, creds.Parameters, input, os.LookupEnv)
	if err != nil {
		return outputCommandError(out, ErrCodeInvalid, "cannot resolve placeholders", err)
	}

	file, err := readRecordingFile(out, path)
	if err != nil {
		return err
	}

	output := LeaksOutput{File: path, Leaks: []EntryLeak{}}
	for _, e := range file.Entries() {
		output.Entries++
		for _, leak := range scrub.FindLeaks(e.Set, specs) {
			output.Leaks = append(output.Leaks, EntryLeak{Key: e.Index, Hash: e.Hash, Leak: leak})
		}
	}
	opts.Logger().Debug("scanned recording", "file", path, "entries", output.Entries, "placeholders", len(specs))

	failed := len(output.Leaks) > 0
	if err := out.Report(output, failed, func(w io.Writer) { writeLeaksText(w, output) }); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d leak(s) in %s", len(output.Leaks), path))
	}
	return nil
}

func loadCredentials(path string) (CredentialsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CredentialsFile{}, err
	}
	var creds CredentialsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&creds); err != nil && err != io.EOF {
		return CredentialsFile{}, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

func loadInput(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return input, nil
}

func writeLeaksText(w io.Writer, o LeaksOutput) {
	if len(o.Leaks) == 0 {
		fmt.Fprintf(w, "✓ No leaks in %d entr%s of %s\n", o.Entries, plural(o.Entries, "y", "ies"), o.File)
		return
	}
	fmt.Fprintf(w, "✗ %d leak(s) in %s\n", len(o.Leaks), o.File)
	for _, l := range o.Leaks {
		fmt.Fprintf(w, "  %s %s: %s\n", l.Key, l.Hash, l.Leak)
	}
}
