// Package match compares two recorded interaction sets structurally.
//
// Interactions are aligned by position; the set is assumed to come from a test
// with deterministic call ordering. Scalar properties (method, status, scope,
// path) are compared exactly. Bodies and responses are compared by inferring a
// schema from the recorded value and validating the new value against it, so
// that data changes are ignored while shape changes are reported.
//
// Match is a pure function: it holds no state between calls and never mutates
// its inputs.
package match

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/schema"
)

// Headers compared between recordings. Names are matched case-insensitively.
var (
	RequestHeaders  = []string{"accept", "content-type"}
	ResponseHeaders = []string{"content-type", "content-encoding", "content-length"}
)

// Result is the outcome of Match.
type Result struct {
	Valid  bool        `json:"valid"`
	Errors ErrorBucket `json:"errors"`
}

// Match compares recorded traffic against new traffic.
//
// The returned error is non-nil only when a payload cannot be decoded, in
// particular for unsupported content encodings (*DecodeUnsupportedError).
// Differences are reported in Result.Errors.
func Match(recorded, current recording.InteractionSet) (Result, error) {
	var c Collector

	if len(recorded) != len(current) {
		lengthErr := DiffError{
			Kind:  KindLength,
			Index: -1,
			Old:   strconv.Itoa(len(recorded)),
			New:   strconv.Itoa(len(current)),
		}
		if len(current) > len(recorded) {
			c.Add(BucketAdded, lengthErr)
		} else {
			c.Add(BucketRemoved, lengthErr)
		}
	}

	n := min(len(recorded), len(current))
	for i := 0; i < n; i++ {
		if err := matchInteraction(&c, i, recorded[i], current[i]); err != nil {
			return Result{}, err
		}
	}

	bucket := c.Drain()
	return Result{Valid: bucket.Empty(), Errors: bucket}, nil
}

func matchInteraction(c *Collector, index int, recorded, current recording.Interaction) error {
	exact := []struct {
		kind     Kind
		old, new string
	}{
		{KindMethod, recorded.Method, current.Method},
		{KindStatus, strconv.Itoa(recorded.Status), strconv.Itoa(current.Status)},
		{KindBaseURL, recorded.Scope, current.Scope},
		{KindPath, recorded.Path, current.Path},
	}
	for _, e := range exact {
		if e.old != e.new {
			c.Add(BucketChanged, DiffError{Kind: e.kind, Index: index, Old: e.old, New: e.new})
		}
	}

	for _, name := range RequestHeaders {
		oldValue, oldOK := recorded.RequestHeader(name)
		newValue, newOK := current.RequestHeader(name)
		compareHeader(c, KindRequestHeader, index, name, oldValue, oldOK, newValue, newOK)
	}
	for _, name := range ResponseHeaders {
		oldValue, oldOK := recorded.ResponseHeader(name)
		newValue, newOK := current.ResponseHeader(name)
		compareHeader(c, KindResponseHeader, index, name, oldValue, oldOK, newValue, newOK)
	}

	if err := matchBody(c, index, recorded, current); err != nil {
		return err
	}
	return matchResponse(c, index, recorded, current)
}

func compareHeader(c *Collector, kind Kind, index int, name, oldValue string, oldOK bool, newValue string, newOK bool) {
	switch {
	case !oldOK && newOK:
		c.Add(BucketAdded, DiffError{Kind: kind, Index: index, Header: name, New: newValue})
	case oldOK && !newOK:
		c.Add(BucketRemoved, DiffError{Kind: kind, Index: index, Header: name, Old: oldValue})
	case oldOK && newOK && oldValue != newValue:
		c.Add(BucketChanged, DiffError{Kind: kind, Index: index, Header: name, Old: oldValue, New: newValue})
	}
}

func matchBody(c *Collector, index int, recorded, current recording.Interaction) error {
	var oldBody, newBody any
	var err error

	if recorded.HasBody() {
		if oldBody, err = decodeBody(recorded); err != nil {
			return fmt.Errorf("interaction %d: recorded %w", index, err)
		}
	}
	if current.HasBody() {
		if newBody, err = decodeBody(current); err != nil {
			return fmt.Errorf("interaction %d: new %w", index, err)
		}
	}

	return compareStructured(c, KindRequestBody, index, oldBody, recorded.HasBody(), newBody, current.HasBody())
}

func matchResponse(c *Collector, index int, recorded, current recording.Interaction) error {
	oldResponse, oldOK, err := decodeResponse(recorded, index)
	if err != nil {
		return err
	}
	newResponse, newOK, err := decodeResponse(current, index)
	if err != nil {
		return err
	}

	return compareStructured(c, KindResponse, index, oldResponse, oldOK, newResponse, newOK)
}

// compareStructured applies the infer-and-validate strategy: a schema inferred
// from the recorded value must accept the new one.
func compareStructured(c *Collector, kind Kind, index int, oldValue any, oldOK bool, newValue any, newOK bool) error {
	switch {
	case !oldOK && !newOK:
		return nil
	case !oldOK:
		c.Add(BucketAdded, DiffError{Kind: kind, Index: index, New: summarize(newValue)})
		return nil
	case !newOK:
		c.Add(BucketRemoved, DiffError{Kind: kind, Index: index, Old: summarize(oldValue)})
		return nil
	}

	verdict, err := schema.Infer(oldValue).Validate(newValue)
	if err != nil {
		return fmt.Errorf("interaction %d: validate %s: %w", index, strings.ToLower(string(kind)), err)
	}

	switch {
	case verdict.Matches():
	case !verdict.Compatible:
		c.Add(BucketChanged, DiffError{Kind: kind, Index: index, Message: verdict.Message})
	default:
		c.Add(BucketAdded, DiffError{Kind: kind, Index: index, Message: verdict.Message})
	}
	return nil
}

const summaryLimit = 120

func summarize(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(data)
	if len(s) > summaryLimit {
		s = s[:summaryLimit] + "..."
	}
	return s
}
