package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Impact string   `json:"impact,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios-dir>",
		Short: "Run matcher scenarios",
		Long: `Run matcher and impact scenarios.

Each scenario pairs recorded traffic with new traffic and states the
expected impact and findings. When <scenarios-dir>/golden/<name>.golden
exists, the scenario report must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  contracttape check ./scenarios
  contracttape check ./scenarios --filter "status_*"
  contracttape check ./scenarios --update
  contracttape check ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return outputCommandError(out, ErrCodeNotFound, "scenarios directory not found: "+dir, err)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return outputCommandError(out, ErrCodeInvalid, "cannot list scenarios", err)
	}

	result := CheckResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := checkScenario(opts, file)
		opts.Logger().Debug("scenario checked", "file", file, "pass", sr.Pass)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	failed := result.Failed > 0
	if err := out.Report(result, failed, func(w io.Writer) { writeCheckText(w, result) }); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles lists the YAML scenarios directly under dir whose base
// name matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func checkScenario(opts *CheckOptions, file string) ScenarioResult {
	s, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	r, err := harness.Run(s)
	if err != nil {
		return ScenarioResult{
			Name:   s.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	sr := ScenarioResult{Name: s.Name, Pass: r.Pass, Errors: r.Errors}
	if r.MatchErr == nil {
		sr.Impact = r.Impact.String()
	}

	report := harness.Report(s, r)
	golden := goldenFilePath(file)
	if opts.Update {
		if err := writeGoldenFile(golden, report); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return sr
	}

	want, err := os.ReadFile(golden)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(want, report):
		sr.Pass = false
		sr.Errors = append(sr.Errors, "report does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns <dir>/golden/<name>.golden for a scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCheckText(w io.Writer, r CheckResult) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}
