package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/parser"
)

// Verdict is the outcome of validating a candidate against a Schema.
type Verdict struct {
	// Compatible is false when the candidate violates the open schema:
	// a type changed, a required field is missing, and so on.
	Compatible bool

	// Additive is true when the candidate is compatible but carries object
	// fields the baseline never had.
	Additive bool

	// Message holds the validator diagnostics for a failed check.
	Message string
}

// Matches reports whether the candidate fits the schema with no extra fields.
func (v Verdict) Matches() bool {
	return v.Compatible && !v.Additive
}

// Validate checks candidate, a decoded JSON value, against the schema.
// An error is returned only when the schema or candidate cannot be built,
// never for a validation failure.
func (s Schema) Validate(candidate any) (Verdict, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return Verdict{}, fmt.Errorf("encode candidate: %w", err)
	}
	return s.ValidateJSON(data)
}

// ValidateJSON is like Validate for a raw JSON document.
func (s Schema) ValidateJSON(data []byte) (Verdict, error) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return Verdict{}, fmt.Errorf("decode candidate: %w", err)
	}
	if dec.More() {
		return Verdict{}, fmt.Errorf("decode candidate: trailing data after JSON value")
	}

	ctx := cuecontext.New()
	value, err := buildCandidate(ctx, decoded)
	if err != nil {
		return Verdict{}, err
	}

	open := ctx.CompileString(s.Open(), cue.Filename("schema"))
	if err := open.Err(); err != nil {
		return Verdict{}, fmt.Errorf("compile schema: %w", err)
	}
	if err := open.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return Verdict{Compatible: false, Message: formatCUEError(err)}, nil
	}

	if extra := s.root.extraFields(decoded, nil, nil); len(extra) > 0 {
		return Verdict{Compatible: true, Additive: true, Message: strings.Join(extra, "; ")}, nil
	}

	return Verdict{Compatible: true}, nil
}

// buildCandidate turns a decoded JSON value into a CUE value. The value is
// re-encoded and parsed as a CUE expression so that every key stays a quoted
// regular field: keys such as "#text" or "_id" must not become definitions or
// hidden fields.
func buildCandidate(ctx *cue.Context, decoded any) (cue.Value, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(decoded); err != nil {
		return cue.Value{}, fmt.Errorf("encode candidate: %w", err)
	}

	expr, err := parser.ParseExpr("candidate", buf.Bytes())
	if err != nil {
		return cue.Value{}, fmt.Errorf("parse candidate: %w", err)
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("build candidate: %w", err)
	}
	return value, nil
}

// formatCUEError flattens a CUE error list into one line per error.
func formatCUEError(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	seen := make(map[string]bool, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
