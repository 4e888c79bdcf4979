package harness

import (
	"github.com/roach88/contracttape/internal/impact"
)

// checkExpectations compares a completed run against want.
func checkExpectations(r *Result, want Expect) {
	if want.Error != "" {
		return
	}

	level, err := impact.ParseLevel(want.Impact)
	if err != nil {
		r.fail("expect.impact: %v", err)
		return
	}
	if r.Impact != level {
		r.fail("impact: got %s, want %s", r.Impact, level)
	}

	valid := level == impact.None
	if want.Valid != nil {
		valid = *want.Valid
	}
	if r.Valid != valid {
		r.fail("valid: got %t, want %t", r.Valid, valid)
	}

	if want.Findings != nil {
		checkFindings(r, want.Findings)
	}
}

// checkFindings requires the findings to equal want as a multiset.
func checkFindings(r *Result, want []ExpectedFinding) {
	remaining := make(map[ExpectedFinding]int, len(want))
	for _, f := range want {
		remaining[f]++
	}

	for _, f := range r.Findings {
		key := f.Key()
		if remaining[key] == 0 {
			r.fail("unexpected finding: %s", f.DiffError)
			continue
		}
		remaining[key]--
	}

	for _, f := range want {
		if remaining[f] > 0 {
			r.fail("missing finding: %s", f)
			remaining[f]--
		}
	}
}
