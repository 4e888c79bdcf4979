package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Interaction is one recorded HTTP call.
//
// Bodies and responses are kept as raw JSON so that any payload shape survives
// a read/write cycle. A non-JSON payload is stored as a JSON string.
type Interaction struct {
	// Scope is the origin of the call, e.g. "https://api.example.com".
	Scope string `json:"scope"`

	Method string `json:"method"`

	// Path includes the query string.
	Path string `json:"path"`

	Status int `json:"status"`

	RequestHeaders map[string]HeaderValue `json:"reqheaders,omitempty"`

	// RawHeaders holds response headers as flat name,value pairs in wire order.
	RawHeaders []string `json:"rawHeaders,omitempty"`

	Body json.RawMessage `json:"body,omitempty"`

	Response json.RawMessage `json:"response,omitempty"`

	// DecodedResponse is populated when Response is transfer encoded.
	DecodedResponse json.RawMessage `json:"decodedResponse,omitempty"`
}

// InteractionSet is the ordered sequence of interactions of one test run.
type InteractionSet []Interaction

// HeaderValue is a request header value. It marshals as a plain string when it
// holds a single value and as a list otherwise.
type HeaderValue []string

// MarshalJSON implements json.Marshaler.
func (h HeaderValue) MarshalJSON() ([]byte, error) {
	if len(h) == 1 {
		return json.Marshal(h[0])
	}
	return json.Marshal([]string(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HeaderValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return fmt.Errorf("header value list: %w", err)
		}
		*h = values
		return nil
	}

	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return fmt.Errorf("header value: %w", err)
	}
	*h = HeaderValue{value}
	return nil
}

// String joins multiple values the way HTTP folds repeated headers.
func (h HeaderValue) String() string {
	return strings.Join(h, ", ")
}

// RequestHeader looks up a request header by case-insensitive name. When
// several keys differ only in case, the lower-case key wins, then the first
// key in sorted order.
func (i Interaction) RequestHeader(name string) (string, bool) {
	if v, ok := i.RequestHeaders[strings.ToLower(name)]; ok {
		return v.String(), true
	}

	keys := make([]string, 0, len(i.RequestHeaders))
	for k := range i.RequestHeaders {
		if strings.EqualFold(k, name) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return i.RequestHeaders[keys[0]].String(), true
}

// ResponseHeader looks up a response header in RawHeaders by case-insensitive
// name. Repeated headers are joined with ", ".
func (i Interaction) ResponseHeader(name string) (string, bool) {
	var values []string
	for j := 0; j+1 < len(i.RawHeaders); j += 2 {
		if strings.EqualFold(i.RawHeaders[j], name) {
			values = append(values, i.RawHeaders[j+1])
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ", "), true
}

// HasBody reports whether a request body was recorded.
func (i Interaction) HasBody() bool {
	return present(i.Body)
}

// HasResponse reports whether a response payload was recorded.
func (i Interaction) HasResponse() bool {
	return present(i.Response)
}

// HasDecodedResponse reports whether a decoded response payload was recorded.
func (i Interaction) HasDecodedResponse() bool {
	return present(i.DecodedResponse)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Clone returns a deep copy of the interaction.
func (i Interaction) Clone() Interaction {
	out := i
	if i.RequestHeaders != nil {
		out.RequestHeaders = make(map[string]HeaderValue, len(i.RequestHeaders))
		for k, v := range i.RequestHeaders {
			out.RequestHeaders[k] = append(HeaderValue(nil), v...)
		}
	}
	out.RawHeaders = cloneStrings(i.RawHeaders)
	out.Body = cloneRaw(i.Body)
	out.Response = cloneRaw(i.Response)
	out.DecodedResponse = cloneRaw(i.DecodedResponse)
	return out
}

// Clone returns a deep copy of the set.
func (s InteractionSet) Clone() InteractionSet {
	if s == nil {
		return nil
	}
	out := make(InteractionSet, len(s))
	for i, interaction := range s {
		out[i] = interaction.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	return append(json.RawMessage(nil), in...)
}

// Phase prefixes for interactions recorded outside the test body.
const (
	PhaseSetup    = "setup"
	PhaseTeardown = "teardown"
)

// IndexKey addresses a recording within a file.
type IndexKey struct {
	Profile  string
	Provider string
	UseCase  string

	// Prefix marks setup/teardown recordings. Empty for the test body.
	Prefix string
}

// String renders the key as "[prefix-]profile/provider/usecase".
func (k IndexKey) String() string {
	key := k.Profile + "/" + k.Provider + "/" + k.UseCase
	if k.Prefix != "" {
		return k.Prefix + "-" + key
	}
	return key
}

// Validate checks that k renders to a string ParseIndexKey reads back as k.
// Components must be non-empty and free of "/", the prefix must be a known
// phase, and a profile must not start with a phase prefix.
func (k IndexKey) Validate() error {
	for _, part := range []string{k.Profile, k.Provider, k.UseCase} {
		if part == "" || strings.Contains(part, "/") {
			return fmt.Errorf("%w %q: components must be non-empty and contain no \"/\"", ErrInvalidIndexKey, k.String())
		}
	}
	switch k.Prefix {
	case "", PhaseSetup, PhaseTeardown:
	default:
		return fmt.Errorf("%w %q: unknown prefix %q", ErrInvalidIndexKey, k.String(), k.Prefix)
	}
	for _, phase := range []string{PhaseSetup, PhaseTeardown} {
		if strings.HasPrefix(k.Profile, phase+"-") {
			return fmt.Errorf("%w %q: profile must not start with %q", ErrInvalidIndexKey, k.String(), phase+"-")
		}
	}
	return nil
}

// ParseIndexKey is the inverse of IndexKey.String.
func ParseIndexKey(s string) (IndexKey, error) {
	var key IndexKey
	for _, prefix := range []string{PhaseSetup, PhaseTeardown} {
		if strings.HasPrefix(s, prefix+"-") {
			key.Prefix = prefix
			s = strings.TrimPrefix(s, prefix+"-")
			break
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return IndexKey{}, fmt.Errorf("invalid index key %q: want profile/provider/usecase", s)
	}
	key.Profile, key.Provider, key.UseCase = parts[0], parts[1], parts[2]
	return key, nil
}
