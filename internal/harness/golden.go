package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Report renders a result as the stable text stored in golden files.
// Diagnostic messages are left out since their wording belongs to the
// schema validator.
func Report(s *Scenario, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", s.Name)

	if r.MatchErr != nil {
		fmt.Fprintf(&b, "error: %s\n", s.Expect.Error)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "impact: %s\n", r.Impact)
	fmt.Fprintf(&b, "valid: %t\n", r.Valid)

	if len(r.Findings) > 0 {
		b.WriteString("findings:\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  %s\n", f.Key())
		}
	}
	if len(r.Reasons) > 0 {
		b.WriteString("reasons:\n")
		for _, reason := range r.Reasons {
			fmt.Fprintf(&b, "  %s\n", reason)
		}
	}
	return []byte(b.String())
}

// RunWithGolden runs s, fails t on any unmet expectation, and compares the
// report with testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	r, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}
	for _, msg := range r.Errors {
		t.Errorf("%s: %s", s.Name, msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Report(s, r))
	return r
}
