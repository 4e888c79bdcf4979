package scrub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LookupFunc resolves a $NAME reference. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Credential holds the secret material for one security scheme. Any field
// may be written as $NAME to be resolved through a LookupFunc.
type Credential struct {
	APIKey   string `yaml:"apikey,omitempty" json:"apikey,omitempty"`
	Token    string `yaml:"token,omitempty" json:"token,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	Digest   string `yaml:"digest,omitempty" json:"digest,omitempty"`
}

// Placeholder token prefixes.
const (
	PrefixSecurity  = "SECURITY_"
	PrefixParameter = "PARAMS_"
	PrefixInput     = "INPUT_"
)

// PlaceholderName builds a placeholder token: the prefix followed by name
// upper-cased, with every character outside [A-Z0-9] replaced by '_'.
func PlaceholderName(prefix, name string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(name))
	b.WriteString(prefix)
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Resolve flattens credentials, parameters and test input into the list of
// placeholders Apply works on.
//
// Credentials are matched to def's security schemes by id; credentials for
// unknown schemes are an error. Parameters declared by def fall back to their
// default. Inputs are flattened into dot paths and must be scalar.
// Values of the form $NAME are resolved with lookup. A nil lookup resolves
// nothing, so any reference is an error.
//
// The result is ordered: credentials in scheme order, then parameters in
// declaration order followed by undeclared ones by name, then inputs by path.
func Resolve(def *ProviderDefinition, creds map[string]Credential, params map[string]string, input map[string]any, lookup LookupFunc) ([]PlaceholderSpec, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	r := resolver{lookup: lookup}

	var specs []PlaceholderSpec

	for _, id := range sortedKeys(creds) {
		if def == nil {
			return nil, fmt.Errorf("%s: credential %q given without a provider definition", ErrCodeUnknownScheme, id)
		}
		if _, ok := def.Scheme(id); !ok {
			return nil, fmt.Errorf("%s: provider %q has no security scheme %q", ErrCodeUnknownScheme, def.Name, id)
		}
	}

	if def != nil {
		for _, scheme := range def.SecuritySchemes {
			cred, ok := creds[scheme.ID]
			if !ok {
				continue
			}
			value, err := r.credentialValue(scheme, cred)
			if err != nil {
				return nil, err
			}
			s := scheme
			specs = append(specs, PlaceholderSpec{
				Kind:        KindCredential,
				Name:        scheme.ID,
				Value:       value,
				Placeholder: PlaceholderName(PrefixSecurity, scheme.ID),
				Scheme:      &s,
			})
		}
	}

	declared := make(map[string]bool)
	if def != nil {
		for _, p := range def.Parameters {
			declared[p.Name] = true
			raw, ok := params[p.Name]
			if !ok {
				raw = p.Default
			}
			value, err := r.resolve(raw, "parameter "+p.Name)
			if err != nil {
				return nil, err
			}
			specs = append(specs, parameterSpec(p.Name, value))
		}
	}
	for _, name := range sortedKeys(params) {
		if declared[name] {
			continue
		}
		value, err := r.resolve(params[name], "parameter "+name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, parameterSpec(name, value))
	}

	flat := make(map[string]string)
	if err := flattenInput("", input, flat); err != nil {
		return nil, err
	}
	for _, path := range sortedKeys(flat) {
		specs = append(specs, PlaceholderSpec{
			Kind:        KindInput,
			Name:        path,
			Value:       flat[path],
			Placeholder: PlaceholderName(PrefixInput, path),
		})
	}

	return specs, nil
}

func parameterSpec(name, value string) PlaceholderSpec {
	return PlaceholderSpec{
		Kind:        KindParameter,
		Name:        name,
		Value:       value,
		Placeholder: PlaceholderName(PrefixParameter, name),
	}
}

type resolver struct {
	lookup LookupFunc
}

func (r resolver) resolve(value, what string) (string, error) {
	if len(value) < 2 || value[0] != '$' {
		return value, nil
	}
	name := value[1:]
	resolved, ok := r.lookup(name)
	if !ok {
		return "", &ReferenceError{Code: ErrCodeUnresolvedRef, Ref: name, For: what}
	}
	return resolved, nil
}

func (r resolver) credentialValue(scheme SecurityScheme, cred Credential) (string, error) {
	what := "credential " + scheme.ID

	switch {
	case scheme.Type == SchemeAPIKey:
		return r.resolve(cred.APIKey, what)
	case scheme.Scheme == HTTPBearer:
		return r.resolve(cred.Token, what)
	case scheme.Scheme == HTTPDigest:
		return r.resolve(cred.Digest, what)
	case scheme.Scheme == HTTPBasic:
		user, err := r.resolve(cred.Username, what)
		if err != nil {
			return "", err
		}
		password, err := r.resolve(cred.Password, what)
		if err != nil {
			return "", err
		}
		if user == "" && password == "" {
			return "", nil
		}
		return base64.StdEncoding.EncodeToString([]byte(user + ":" + password)), nil
	default:
		return "", fmt.Errorf("%s: %s has unsupported scheme %s/%s", ErrCodeUnknownScheme, what, scheme.Type, scheme.Scheme)
	}
}

// flattenInput writes every scalar leaf of v into out keyed by its dot path.
func flattenInput(path string, v any, out map[string]string) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range val {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if err := flattenInput(childPath, child, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		out[path] = val
	case bool:
		out[path] = strconv.FormatBool(val)
	case int:
		out[path] = strconv.Itoa(val)
	case int64:
		out[path] = strconv.FormatInt(val, 10)
	case float64:
		out[path] = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		out[path] = val.String()
	default:
		return &ValueNotScalarError{Path: path, Value: v}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
