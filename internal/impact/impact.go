// Package impact grades the differences found by the matcher.
//
// Levels borrow their names from semantic versioning. Response removals and
// changes are MAJOR; purely additive response content is MINOR. Request-side
// differences are PATCH because the consumer builds the request.
package impact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/contracttape/internal/match"
)

// Level is an ordered severity. The zero value is None.
type Level int

const (
	None Level = iota
	Patch
	Minor
	Major
)

var levelNames = [...]string{"none", "patch", "minor", "major"}

func (l Level) String() string {
	if l < None || l > Major {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText renders the level as its lower-case name.
func (l Level) MarshalText() ([]byte, error) {
	if l < None || l > Major {
		return nil, fmt.Errorf("invalid impact level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText accepts a level name in any case.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return None, fmt.Errorf("unknown impact level %q", s)
}

// Reason is one rule that fired during classification.
type Reason struct {
	Level  Level        `json:"level"`
	Bucket match.Bucket `json:"bucket"`
	Kind   match.Kind   `json:"kind"`
}

func (r Reason) String() string {
	return fmt.Sprintf("%s: %s %s", r.Level, r.Bucket, r.Kind)
}

type rule struct {
	level  Level
	bucket match.Bucket
	kind   match.Kind
}

// rules are checked against every finding. Findings not covered here fall
// through to Patch in levelOf.
var rules = []rule{
	{Major, match.BucketRemoved, match.KindResponse},
	{Major, match.BucketChanged, match.KindResponse},
	{Major, match.BucketChanged, match.KindStatus},
	{Major, match.BucketRemoved, match.KindResponseHeader},
	{Major, match.BucketChanged, match.KindResponseHeader},
	{Major, match.BucketAdded, match.KindLength},
	{Major, match.BucketRemoved, match.KindLength},

	{Minor, match.BucketAdded, match.KindResponse},
	{Minor, match.BucketAdded, match.KindResponseHeader},
}

// levelOf grades a single finding.
//
// Any finding that no rule names is Patch. This catch-all is deliberate and
// also covers kinds added to the matcher later; tightening it must be an
// explicit change to rules.
func levelOf(bucket match.Bucket, kind match.Kind) Level {
	for _, r := range rules {
		if r.bucket == bucket && r.kind == kind {
			return r.level
		}
	}
	return Patch
}

// Classify returns the highest level over all findings in b, or None when b
// is empty.
func Classify(b match.ErrorBucket) Level {
	level := None
	for _, bucket := range buckets {
		for _, e := range b.In(bucket) {
			level = max(level, levelOf(bucket, e.Kind))
		}
	}
	return level
}

var buckets = []match.Bucket{match.BucketAdded, match.BucketRemoved, match.BucketChanged}

// Reasons lists the distinct (bucket, kind) pairs found in b with their
// level, most severe first.
func Reasons(b match.ErrorBucket) []Reason {
	seen := make(map[Reason]bool)
	var reasons []Reason
	for _, bucket := range buckets {
		for _, e := range b.In(bucket) {
			r := Reason{Level: levelOf(bucket, e.Kind), Bucket: bucket, Kind: e.Kind}
			if !seen[r] {
				seen[r] = true
				reasons = append(reasons, r)
			}
		}
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].Level > reasons[j].Level
	})
	return reasons
}
