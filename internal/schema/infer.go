// Package schema infers structural CUE schemas from JSON values and validates
// other values against them.
//
// Inference follows the same rules as JSON-schema generators: every value
// contributes its type, arrays merge the shapes of all their elements, and
// object fields present in every merged object are required while the others
// are optional. Values themselves are never part of a schema, so two payloads
// that differ only in their data are compatible.
//
// A Schema renders as an open CUE expression that accepts extra object fields.
// Validate unifies the candidate with it to find incompatible changes, then
// walks the candidate against the inferred shape to find purely additive ones.
package schema

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Schema is a structural description of a JSON value.
type Schema struct {
	root *shape
}

// Infer builds a Schema from a decoded JSON value. Values are expected in the
// form produced by encoding/json (maps, slices, strings, bools, nil, float64 or
// json.Number).
func Infer(v any) Schema {
	root := &shape{}
	root.merge(v)
	return Schema{root: root}
}

// Open renders the schema as a CUE expression that accepts extra fields.
func (s Schema) Open() string {
	return s.root.render()
}

// shape accumulates every type observed at one position of a JSON document.
type shape struct {
	null    bool
	boolean bool
	str     bool
	integer bool
	number  bool

	list   bool
	elem   *shape
	object *objectShape
}

type objectShape struct {
	fields map[string]*shape
	seen   map[string]int
	count  int
}

func (s *shape) empty() bool {
	return !s.null && !s.boolean && !s.str && !s.integer && !s.number && !s.list && s.object == nil
}

func (s *shape) merge(v any) {
	switch val := v.(type) {
	case nil:
		s.null = true
	case bool:
		s.boolean = true
	case string:
		s.str = true
	case json.Number:
		if isIntegral(string(val)) {
			s.integer = true
		} else {
			s.number = true
		}
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			s.integer = true
		} else {
			s.number = true
		}
	case int, int64:
		s.integer = true
	case []any:
		s.list = true
		if s.elem == nil {
			s.elem = &shape{}
		}
		for _, item := range val {
			s.elem.merge(item)
		}
	case map[string]any:
		if s.object == nil {
			s.object = &objectShape{fields: map[string]*shape{}, seen: map[string]int{}}
		}
		s.object.count++
		for k, item := range val {
			field, ok := s.object.fields[k]
			if !ok {
				field = &shape{}
				s.object.fields[k] = field
			}
			field.merge(item)
			s.object.seen[k]++
		}
	}
}

func isIntegral(n string) bool {
	return !strings.ContainsAny(n, ".eE")
}

// render produces a CUE expression. Disjunction members are emitted in a
// fixed order so that equal shapes render identically.
func (s *shape) render() string {
	if s.empty() {
		return "_"
	}

	var parts []string
	if s.null {
		parts = append(parts, "null")
	}
	if s.boolean {
		parts = append(parts, "bool")
	}
	switch {
	case s.number:
		parts = append(parts, "number")
	case s.integer:
		parts = append(parts, "int")
	}
	if s.str {
		parts = append(parts, "string")
	}
	if s.list {
		if s.elem == nil || s.elem.empty() {
			parts = append(parts, "[...]")
		} else {
			parts = append(parts, "[...("+s.elem.render()+")]")
		}
	}
	if s.object != nil {
		parts = append(parts, s.object.render())
	}

	return strings.Join(parts, " | ")
}

func (o *objectShape) render() string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		marker := ":"
		if o.seen[k] < o.count {
			marker = "?:"
		}
		fields = append(fields, quoteLabel(k)+marker+" ("+o.fields[k].render()+")")
	}

	return "{" + strings.Join(fields, ", ") + "}"
}

// extraFields appends the path of every object field in v that no merged
// object had at that position. Array elements are checked against the merged
// element shape, including at the root. v is expected to satisfy the open
// rendering already.
func (s *shape) extraFields(v any, path []string, out []string) []string {
	switch val := v.(type) {
	case []any:
		if !s.list || s.elem == nil || s.elem.empty() {
			return out
		}
		for i, item := range val {
			out = s.elem.extraFields(item, appendPath(path, strconv.Itoa(i)), out)
		}
	case map[string]any:
		if s.object == nil {
			return out
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := appendPath(path, k)
			field, ok := s.object.fields[k]
			if !ok {
				out = append(out, strings.Join(p, ".")+": field not allowed")
				continue
			}
			out = field.extraFields(val[k], p, out)
		}
	}
	return out
}

func appendPath(path []string, elem string) []string {
	return append(path[:len(path):len(path)], elem)
}

// quoteLabel renders a field name as a CUE string label. JSON escaping is a
// subset of CUE string escaping.
func quoteLabel(k string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(k); err != nil {
		// Encoding a string cannot fail.
		panic(err)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
