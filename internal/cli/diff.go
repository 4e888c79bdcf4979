package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
)

// Entry statuses reported by diff.
const (
	EntryUnchanged = "unchanged"
	EntryChanged   = "changed"
	EntryRemoved   = "removed"
	EntryAdded     = "added"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	FailOn string
}

// Finding is a matcher finding tagged with its bucket.
type Finding struct {
	Bucket match.Bucket `json:"bucket"`
	match.DiffError
}

// EntryDiff compares one (index, hash) entry of two recording files.
type EntryDiff struct {
	Index    string          `json:"index"`
	Hash     string          `json:"hash"`
	Status   string          `json:"status"`
	Impact   impact.Level    `json:"impact"`
	Findings []Finding       `json:"findings,omitempty"`
	Reasons  []impact.Reason `json:"reasons,omitempty"`
}

// DiffResult is the outcome of comparing two recording files.
type DiffResult struct {
	Old     string       `json:"old"`
	New     string       `json:"new"`
	Impact  impact.Level `json:"impact"`
	Entries []EntryDiff  `json:"entries"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json> | diff <fixture-base>",
		Short: "Compare two recording files",
		Long: `Compare every entry of two recording files structurally.

Entries are matched by index key and input hash. An entry only present in
the old file is a removed test case and counts as major. An entry only
present in the new file is reported as added with no impact.

With a single argument, the main recording <base>.json is compared with
its candidate <base>-new.json.

Exit codes:
  0 - Overall impact below --fail-on
  1 - Overall impact at or above --fail-on
  2 - Command error (missing file, undecodable payload, etc.)

Examples:
  contracttape diff recordings/weather.json recordings/weather-new.json
  contracttape diff recordings/weather
  contracttape diff recordings/weather --fail-on minor --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPath, newPath := recording.MainPath(args[0]), recording.CandidatePath(args[0])
			if len(args) == 2 {
				oldPath, newPath = args[0], args[1]
			}
			return runDiff(opts, oldPath, newPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "major", "lowest impact that fails the command (patch|minor|major)")

	return cmd
}

func runDiff(opts *DiffOptions, oldPath, newPath string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	failOn, err := impact.ParseLevel(opts.FailOn)
	if err != nil || failOn == impact.None {
		return outputCommandError(out, ErrCodeInvalid, fmt.Sprintf("invalid --fail-on %q: must be patch, minor or major", opts.FailOn), nil)
	}

	oldFile, err := readRecordingFile(out, oldPath)
	if err != nil {
		return err
	}
	newFile, err := readRecordingFile(out, newPath)
	if err != nil {
		return err
	}

	opts.Logger().Debug("diffing recordings", "old", oldPath, "new", newPath)
	result, err := DiffFiles(oldFile, newFile)
	if isDecodeError(err) {
		return outputCommandError(out, ErrCodeDecode, "cannot decode recorded payload", err)
	}
	if err != nil {
		return outputCommandError(out, ErrCodeGeneric, "diff failed", err)
	}
	result.Old, result.New = oldPath, newPath

	failed := result.Impact >= failOn
	if err := out.Report(result, failed, func(w io.Writer) { writeDiffText(w, result) }); err != nil {
		return err
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("impact %s at or above %s", result.Impact, failOn))
	}
	return nil
}

// readRecordingFile reads a recording file, reporting failures through out.
func readRecordingFile(out *OutputFormatter, path string) (recording.File, error) {
	file, err := recording.ReadFile(path)
	if recording.IsNotFound(err) {
		return nil, outputCommandError(out, ErrCodeNotFound, "recording file not found: "+path, err)
	}
	if err != nil {
		return nil, outputCommandError(out, ErrCodeInvalid, "invalid recording file: "+path, err)
	}
	return file, nil
}

// DiffFiles matches every entry of oldFile against newFile. The overall
// impact is the maximum over all entries.
func DiffFiles(oldFile, newFile recording.File) (DiffResult, error) {
	type key struct{ index, hash string }
	keys := map[key]bool{}
	for _, e := range oldFile.Entries() {
		keys[key{e.Index, e.Hash}] = true
	}
	for _, e := range newFile.Entries() {
		keys[key{e.Index, e.Hash}] = true
	}

	ordered := make([]key, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].index != ordered[j].index {
			return ordered[i].index < ordered[j].index
		}
		return ordered[i].hash < ordered[j].hash
	})

	result := DiffResult{Entries: make([]EntryDiff, 0, len(ordered))}
	for _, k := range ordered {
		oldSet, inOld := oldFile.Lookup(k.index, k.hash)
		newSet, inNew := newFile.Lookup(k.index, k.hash)

		entry := EntryDiff{Index: k.index, Hash: k.hash}
		switch {
		case !inNew:
			entry.Status = EntryRemoved
			entry.Impact = impact.Major
		case !inOld:
			entry.Status = EntryAdded
		default:
			m, err := match.Match(oldSet, newSet)
			if err != nil {
				return DiffResult{}, fmt.Errorf("%s %s: %w", k.index, k.hash, err)
			}
			entry.Status = EntryUnchanged
			if !m.Valid {
				entry.Status = EntryChanged
			}
			entry.Impact = impact.Classify(m.Errors)
			entry.Reasons = impact.Reasons(m.Errors)
			entry.Findings = findings(m.Errors)
		}

		result.Impact = max(result.Impact, entry.Impact)
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func findings(b match.ErrorBucket) []Finding {
	var out []Finding
	for _, bucket := range []match.Bucket{match.BucketAdded, match.BucketRemoved, match.BucketChanged} {
		for _, e := range b.In(bucket) {
			out = append(out, Finding{Bucket: bucket, DiffError: e})
		}
	}
	return out
}

func writeDiffText(w io.Writer, r DiffResult) {
	fmt.Fprintf(w, "old: %s\n", r.Old)
	fmt.Fprintf(w, "new: %s\n", r.New)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%s %s: %s (%s)\n", e.Index, e.Hash, e.Status, e.Impact)
		for _, f := range e.Findings {
			fmt.Fprintf(w, "  %s %s\n", f.Bucket, f.DiffError)
		}
	}
	fmt.Fprintf(w, "impact: %s\n", r.Impact)
}

// isDecodeError reports whether err came from an undecodable payload.
func isDecodeError(err error) bool {
	var decodeErr *match.DecodeError
	return errors.Is(err, match.ErrDecodeUnsupported) || errors.As(err, &decodeErr)
}
