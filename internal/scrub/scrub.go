package scrub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"

	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
)

// Direction selects which way Apply substitutes.
type Direction int

const (
	// Scrub replaces values with placeholders.
	Scrub Direction = iota
	// Restore replaces placeholders with values.
	Restore
)

func (d Direction) String() string {
	if d == Restore {
		return "restore"
	}
	return "scrub"
}

// Apply returns a copy of set with every spec substituted in direction dir.
// The input set is never modified.
//
// Values are searched in the scope, URL path segments and query values,
// request headers, raw response headers, the request body, the response
// (decompressed first when it carries a content encoding) and the decoded
// response. Bodies are walked as JSON and only string leaves and object keys
// are rewritten. Credentials of http schemes are only touched in the
// Authorization header and in raw headers; everything else is replaced
// wherever it appears.
//
// Specs with an empty value are skipped. Locations missing from an
// interaction are skipped too.
func Apply(set recording.InteractionSet, specs []PlaceholderSpec, dir Direction) (recording.InteractionSet, error) {
	for _, s := range specs {
		if s.Value != "" && s.Placeholder == "" {
			return nil, fmt.Errorf("%s: spec %q has no placeholder", ErrCodeEmptyPlaceholder, s.Name)
		}
	}

	everywhere := newSubstitution(specs, dir, false)
	authorization := newSubstitution(specs, dir, true)

	out := set.Clone()
	if everywhere.empty() && authorization.empty() {
		return out, nil
	}

	for i := range out {
		if err := applyInteraction(&out[i], everywhere, authorization); err != nil {
			return nil, &ApplyError{Code: ErrCodeInvalidBody, Index: i, Err: err}
		}
	}
	return out, nil
}

// substitution is a single-pass string rewrite for one direction.
type substitution struct {
	r     *strings.Replacer
	pairs int
}

type pair struct {
	from, to string
}

// newSubstitution builds the rewrite for specs. withAuthorization adds the
// http credentials that are otherwise excluded.
//
// Longer search strings come first so that, at any position, the longest
// value or placeholder wins over one that is its prefix.
func newSubstitution(specs []PlaceholderSpec, dir Direction, withAuthorization bool) substitution {
	var pairs []pair
	seen := make(map[string]bool)
	add := func(from, to string) {
		if from == "" || seen[from] {
			return
		}
		seen[from] = true
		pairs = append(pairs, pair{from: from, to: to})
	}

	for _, s := range specs {
		if s.Value == "" {
			continue
		}
		if s.authorizationOnly() && !withAuthorization {
			continue
		}
		if dir == Restore {
			add(s.Placeholder, s.Value)
			continue
		}
		for _, v := range variants(s.Value) {
			add(v, s.Placeholder)
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].from) > len(pairs[j].from)
	})

	oldnew := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		oldnew = append(oldnew, p.from, p.to)
	}
	return substitution{r: strings.NewReplacer(oldnew...), pairs: len(pairs)}
}

// variants lists a value in raw and percent-encoded forms.
func variants(value string) []string {
	return []string{value, url.QueryEscape(value), url.PathEscape(value)}
}

func (s substitution) empty() bool {
	return s.pairs == 0
}

func (s substitution) replace(v string) string {
	if s.empty() {
		return v
	}
	return s.r.Replace(v)
}

func applyInteraction(i *recording.Interaction, everywhere, authorization substitution) error {
	i.Scope = everywhere.replace(i.Scope)
	i.Path = rewritePath(i.Path, everywhere)

	for name, values := range i.RequestHeaders {
		sub := everywhere
		if strings.EqualFold(name, "authorization") {
			sub = authorization
		}
		for j, v := range values {
			values[j] = sub.replace(v)
		}
	}

	for j := 1; j < len(i.RawHeaders); j += 2 {
		i.RawHeaders[j] = authorization.replace(i.RawHeaders[j])
	}

	if i.HasBody() {
		contentType, _ := i.RequestHeader("content-type")
		body, err := rewriteJSON(i.Body, everywhere, isForm(contentType))
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		i.Body = body
	}

	if i.HasResponse() {
		response, err := rewriteResponse(*i, everywhere)
		if err != nil {
			return fmt.Errorf("response: %w", err)
		}
		i.Response = response
	}

	if i.HasDecodedResponse() {
		decoded, err := rewriteJSON(i.DecodedResponse, everywhere, false)
		if err != nil {
			return fmt.Errorf("decoded response: %w", err)
		}
		i.DecodedResponse = decoded
	}
	return nil
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// rewriteResponse rewrites the response payload. Compressed payloads are
// decompressed, rewritten and compressed again with the same encoding. A
// payload that cannot be decompressed is left untouched; the matcher reports
// it.
func rewriteResponse(i recording.Interaction, sub substitution) (json.RawMessage, error) {
	encoding, ok := i.ResponseHeader("content-encoding")
	if enc := strings.ToLower(strings.TrimSpace(encoding)); !ok || enc == "" || enc == "identity" {
		return rewriteJSON(i.Response, sub, false)
	}

	body, err := match.DecodePayload(i.Response, encoding)
	if err != nil {
		return i.Response, nil
	}

	var rewritten []byte
	if json.Valid(body) {
		out, err := rewriteJSON(body, sub, false)
		if err != nil {
			return nil, err
		}
		rewritten = out
	} else {
		rewritten = []byte(sub.replace(string(body)))
	}

	if bytes.Equal(rewritten, body) {
		return i.Response, nil
	}
	return match.CompressPayload(rewritten, encoding)
}

// rewriteJSON rewrites string leaves and object keys of a JSON document. The
// original bytes are returned when nothing changed. A top-level string is
// treated as a url-encoded form when form is set.
func rewriteJSON(raw json.RawMessage, sub substitution, form bool) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var rewritten any
	var changed bool
	if s, ok := v.(string); ok && form {
		out := rewriteQuery(s, sub)
		rewritten, changed = out, out != s
	} else {
		rewritten, changed = rewriteValue(v, sub)
	}
	if !changed {
		return raw, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rewritten); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func rewriteValue(v any, sub substitution) (any, bool) {
	switch val := v.(type) {
	case string:
		out := sub.replace(val)
		return out, out != val
	case []any:
		changed := false
		out := make([]any, len(val))
		for i, item := range val {
			var c bool
			out[i], c = rewriteValue(item, sub)
			changed = changed || c
		}
		return out, changed
	case map[string]any:
		changed := false
		out := make(map[string]any, len(val))
		for k, item := range val {
			key := sub.replace(k)
			rewritten, c := rewriteValue(item, sub)
			out[key] = rewritten
			changed = changed || c || key != k
		}
		return out, changed
	default:
		return v, false
	}
}

// rewritePath rewrites URL path segments and query values. Components are
// unescaped before matching and escaped again only when they changed.
func rewritePath(p string, sub substitution) string {
	if sub.empty() || p == "" {
		return p
	}

	path, query, hasQuery := strings.Cut(p, "?")

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			segments[i] = sub.replace(seg)
			continue
		}
		if out := sub.replace(unescaped); out != unescaped {
			segments[i] = url.PathEscape(out)
		}
	}
	path = strings.Join(segments, "/")

	if !hasQuery {
		return path
	}
	return path + "?" + rewriteQuery(query, sub)
}

// rewriteQuery rewrites the keys and values of a url-encoded query or form,
// keeping the pair order and untouched pairs byte for byte.
func rewriteQuery(q string, sub substitution) string {
	if q == "" {
		return q
	}

	parts := strings.Split(q, "&")
	for i, part := range parts {
		key, value, hasValue := strings.Cut(part, "=")
		key = rewriteQueryComponent(key, sub)
		if hasValue {
			parts[i] = key + "=" + rewriteQueryComponent(value, sub)
		} else {
			parts[i] = key
		}
	}
	return strings.Join(parts, "&")
}

func rewriteQueryComponent(c string, sub substitution) string {
	unescaped, err := url.QueryUnescape(c)
	if err != nil {
		return sub.replace(c)
	}
	if out := sub.replace(unescaped); out != unescaped {
		return url.QueryEscape(out)
	}
	return c
}
