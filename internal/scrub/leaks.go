package scrub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
)

// Leak is a raw value still present in an interaction after scrubbing.
type Leak struct {
	Index       int    `json:"index"`
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
}

func (l Leak) String() string {
	return fmt.Sprintf("interaction %d: %s %q is not replaced by %s", l.Index, l.Kind, l.Name, l.Placeholder)
}

// FindLeaks reports, per interaction and spec, whether the raw value of the
// spec still appears anywhere in the serialized interaction or in its
// decompressed response. Leaks are advisory; callers log them.
func FindLeaks(set recording.InteractionSet, specs []PlaceholderSpec) []Leak {
	var leaks []Leak
	for i, interaction := range set {
		text := serialize(interaction)
		for _, s := range specs {
			if s.Value == "" {
				continue
			}
			if containsValue(text, s.Value) {
				leaks = append(leaks, Leak{Index: i, Kind: s.Kind, Name: s.Name, Placeholder: s.Placeholder})
			}
		}
	}
	return leaks
}

func containsValue(text, value string) bool {
	if strings.Contains(text, value) {
		return true
	}
	if escaped := url.QueryEscape(value); escaped != value && strings.Contains(text, escaped) {
		return true
	}
	// Quotes and backslashes appear escaped in serialized JSON.
	quoted, _ := json.Marshal(value)
	inner := string(quoted[1 : len(quoted)-1])
	return inner != value && strings.Contains(text, inner)
}

func serialize(i recording.Interaction) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(i)

	if encoding, ok := i.ResponseHeader("content-encoding"); ok && i.HasResponse() {
		if body, err := match.DecodePayload(i.Response, encoding); err == nil {
			buf.WriteByte('\n')
			buf.Write(body)
		}
	}
	return buf.String()
}
