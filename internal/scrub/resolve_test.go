package scrub

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "SECURITY_API_KEY", PlaceholderName(PrefixSecurity, "api-key"))
	assert.Equal(t, "PARAMS_REGION", PlaceholderName(PrefixParameter, "region"))
	assert.Equal(t, "INPUT_USER_EMAIL_0_", PlaceholderName(PrefixInput, "user.email[0]"))
	assert.Equal(t, "INPUT_A_B", PlaceholderName(PrefixInput, "a.b"))
}

func TestResolve_Parameters(t *testing.T) {
	def := &ProviderDefinition{
		Name: "p",
		Parameters: []Parameter{
			{Name: "region", Default: "eu"},
			{Name: "tenant", Default: "$TENANT"},
		},
	}
	lookup := func(name string) (string, bool) {
		if name == "TENANT" {
			return "acme", true
		}
		return "", false
	}

	specs, err := Resolve(def, nil, map[string]string{"region": "us", "extra": "x", "aaa": "y"}, nil, lookup)
	require.NoError(t, err)

	var got []string
	for _, s := range specs {
		assert.Equal(t, KindParameter, s.Kind)
		got = append(got, s.Placeholder+"="+s.Value)
	}
	assert.Equal(t, []string{"PARAMS_REGION=us", "PARAMS_TENANT=acme", "PARAMS_AAA=y", "PARAMS_EXTRA=x"}, got)
}

func TestResolve_UnresolvedReference(t *testing.T) {
	def := &ProviderDefinition{
		Name:            "p",
		SecuritySchemes: []SecurityScheme{{ID: "key", Type: SchemeAPIKey, In: InHeader, Name: "X-Key"}},
	}

	_, err := Resolve(def, map[string]Credential{"key": {APIKey: "$MISSING"}}, nil, nil, nil)
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "MISSING", refErr.Ref)
	assert.Equal(t, "credential key", refErr.For)
}

func TestResolve_UnknownScheme(t *testing.T) {
	def := &ProviderDefinition{Name: "p"}
	_, err := Resolve(def, map[string]Credential{"nope": {Token: "t"}}, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeUnknownScheme)
}

func TestResolve_Inputs(t *testing.T) {
	input := map[string]any{
		"query":  "weather",
		"limit":  10,
		"ratio":  0.5,
		"strict": true,
		"page":   json.Number("3"),
		"nested": map[string]any{"city": "Prague", "none": nil},
	}

	specs, err := Resolve(nil, nil, nil, input, nil)
	require.NoError(t, err)

	got := make(map[string]string)
	var order []string
	for _, s := range specs {
		assert.Equal(t, KindInput, s.Kind)
		got[s.Placeholder] = s.Value
		order = append(order, s.Name)
	}
	assert.Equal(t, map[string]string{
		"INPUT_LIMIT":       "10",
		"INPUT_NESTED_CITY": "Prague",
		"INPUT_PAGE":        "3",
		"INPUT_QUERY":       "weather",
		"INPUT_RATIO":       "0.5",
		"INPUT_STRICT":      "true",
	}, got)
	assert.Equal(t, []string{"limit", "nested.city", "page", "query", "ratio", "strict"}, order)
}

func TestResolve_ValueNotScalar(t *testing.T) {
	_, err := Resolve(nil, nil, nil, map[string]any{"tags": []any{"a", "b"}}, nil)
	require.Error(t, err)
	assert.True(t, IsValueNotScalar(err))

	var notScalar *ValueNotScalarError
	require.ErrorAs(t, err, &notScalar)
	assert.Equal(t, "tags", notScalar.Path)
}

func TestResolve_EmptyBasic(t *testing.T) {
	def := &ProviderDefinition{
		Name:            "p",
		SecuritySchemes: []SecurityScheme{{ID: "basic", Type: SchemeHTTP, Scheme: HTTPBasic}},
	}
	specs, err := Resolve(def, map[string]Credential{"basic": {}}, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Empty(t, specs[0].Value)
}

func TestParseProvider(t *testing.T) {
	def, err := ParseProvider([]byte(testProvider))
	require.NoError(t, err)
	assert.Equal(t, "weather", def.Name)
	assert.Equal(t, "https://api.example.com", def.BaseURL)
	require.Len(t, def.SecuritySchemes, 2)

	scheme, ok := def.Scheme("api_key")
	require.True(t, ok)
	assert.Equal(t, InQuery, scheme.In)
	_, ok = def.Scheme("missing")
	assert.False(t, ok)
}

func TestParseProvider_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: p\nbaseURL: x\n", "field baseURL not found"},
		{"missing name", "baseUrl: x\n", "name is required"},
		{"bad type", "name: p\nsecuritySchemes:\n  - id: a\n    type: oauth2\n", "unknown type"},
		{"apiKey without location", "name: p\nsecuritySchemes:\n  - id: a\n    type: apiKey\n", "apiKey location"},
		{"apiKey without name", "name: p\nsecuritySchemes:\n  - id: a\n    type: apiKey\n    in: header\n", "requires a name"},
		{"bad http scheme", "name: p\nsecuritySchemes:\n  - id: a\n    type: http\n    scheme: hoba\n", "http scheme"},
		{"duplicate scheme", "name: p\nsecuritySchemes:\n  - {id: a, type: http, scheme: bearer}\n  - {id: a, type: http, scheme: basic}\n", "duplicate id"},
		{"duplicate parameter", "name: p\nparameters:\n  - name: x\n  - name: x\n", "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProvider([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testProvider), 0o644))

	def, err := LoadProvider(path)
	require.NoError(t, err)
	assert.Equal(t, "weather", def.Name)

	_, err = LoadProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
