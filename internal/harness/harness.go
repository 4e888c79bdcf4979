package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
)

// Finding is a matcher finding tagged with its bucket.
type Finding struct {
	Bucket match.Bucket
	match.DiffError
}

// Key drops the diagnostic text so findings can be compared with
// expectations.
func (f Finding) Key() ExpectedFinding {
	return ExpectedFinding{Bucket: f.Bucket, Kind: f.Kind, Index: f.Index, Header: f.Header}
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation held.
	Pass   bool
	Errors []string

	Valid    bool
	Impact   impact.Level
	Findings []Finding
	Reasons  []impact.Reason

	// MatchErr is the error Match returned, if any.
	MatchErr error
}

func (r *Result) fail(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run matches the scenario's traffic, classifies it and checks the
// expectations. The error is non-nil only when the scenario itself is
// malformed.
func Run(s *Scenario) (*Result, error) {
	recorded, err := s.RecordedSet()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: recorded: %w", s.Name, err)
	}
	current, err := s.CurrentSet()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: current: %w", s.Name, err)
	}

	r := &Result{Pass: true}

	m, err := match.Match(recorded, current)
	if err != nil {
		r.MatchErr = err
		checkError(r, s.Expect, err)
		return r, nil
	}
	if s.Expect.Error != "" {
		r.fail("expected error containing %q, got none", s.Expect.Error)
	}

	r.Valid = m.Valid
	r.Impact = impact.Classify(m.Errors)
	r.Reasons = impact.Reasons(m.Errors)
	for _, bucket := range []match.Bucket{match.BucketAdded, match.BucketRemoved, match.BucketChanged} {
		for _, e := range m.Errors.In(bucket) {
			r.Findings = append(r.Findings, Finding{Bucket: bucket, DiffError: e})
		}
	}

	checkExpectations(r, s.Expect)
	return r, nil
}

func checkError(r *Result, want Expect, err error) {
	if want.Error == "" {
		r.fail("unexpected match error: %v", err)
		return
	}
	if !strings.Contains(err.Error(), want.Error) {
		r.fail("match error %q does not contain %q", err.Error(), want.Error)
	}
}
