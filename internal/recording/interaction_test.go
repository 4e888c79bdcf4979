package recording

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteraction_JSONShape(t *testing.T) {
	raw := `{
		"scope": "https://api.example.com",
		"method": "POST",
		"path": "/v1/messages?dry=true",
		"status": 201,
		"reqheaders": {"accept": "application/json", "x-multi": ["a", "b"]},
		"rawHeaders": ["Content-Type", "application/json", "Set-Cookie", "a=1", "set-cookie", "b=2"],
		"body": {"to": "me"},
		"response": {"id": 7}
	}`

	var i Interaction
	require.NoError(t, json.Unmarshal([]byte(raw), &i))

	assert.Equal(t, "POST", i.Method)
	assert.Equal(t, 201, i.Status)
	assert.Equal(t, HeaderValue{"a", "b"}, i.RequestHeaders["x-multi"])
	assert.True(t, i.HasBody())
	assert.True(t, i.HasResponse())
	assert.False(t, i.HasDecodedResponse())

	v, ok := i.RequestHeader("Accept")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)

	v, ok = i.ResponseHeader("SET-COOKIE")
	require.True(t, ok)
	assert.Equal(t, "a=1, b=2", v)

	_, ok = i.ResponseHeader("content-encoding")
	assert.False(t, ok)

	out, err := json.Marshal(i)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"accept":"application/json"`)
	assert.Contains(t, string(out), `"x-multi":["a","b"]`)
	assert.NotContains(t, string(out), "decodedResponse")
}

func TestInteraction_NullBodyIsAbsent(t *testing.T) {
	var i Interaction
	require.NoError(t, json.Unmarshal([]byte(`{"scope":"s","method":"GET","path":"/","status":200,"body":null}`), &i))
	assert.False(t, i.HasBody())
}

func TestInteraction_CloneIsDeep(t *testing.T) {
	orig := Interaction{
		RequestHeaders: map[string]HeaderValue{"a": {"1"}},
		RawHeaders:     []string{"k", "v"},
		Body:           json.RawMessage(`"body"`),
	}

	c := orig.Clone()
	c.RequestHeaders["a"][0] = "changed"
	c.RawHeaders[1] = "changed"
	c.Body[1] = 'X'

	assert.Equal(t, "1", orig.RequestHeaders["a"][0])
	assert.Equal(t, "v", orig.RawHeaders[1])
	assert.Equal(t, `"body"`, string(orig.Body))
}

func TestIndexKey_StringAndParse(t *testing.T) {
	tests := []struct {
		key  IndexKey
		want string
	}{
		{IndexKey{Profile: "p", Provider: "q", UseCase: "r"}, "p/q/r"},
		{IndexKey{Profile: "p", Provider: "q", UseCase: "r", Prefix: PhaseSetup}, "setup-p/q/r"},
		{IndexKey{Profile: "p", Provider: "q", UseCase: "r", Prefix: PhaseTeardown}, "teardown-p/q/r"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
			parsed, err := ParseIndexKey(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.key, parsed)
		})
	}

	_, err := ParseIndexKey("only/two")
	assert.Error(t, err)
}

func TestIndexKey_Validate(t *testing.T) {
	tests := []struct {
		name string
		key  IndexKey
		ok   bool
	}{
		{"plain", IndexKey{Profile: "p", Provider: "q", UseCase: "r"}, true},
		{"setup phase", IndexKey{Profile: "p", Provider: "q", UseCase: "r", Prefix: PhaseSetup}, true},
		{"hyphenated profile", IndexKey{Profile: "send-email", Provider: "q", UseCase: "r"}, true},
		{"setup profile", IndexKey{Profile: "setup-x", Provider: "q", UseCase: "r"}, false},
		{"teardown profile", IndexKey{Profile: "teardown-x", Provider: "q", UseCase: "r"}, false},
		{"unknown prefix", IndexKey{Profile: "p", Provider: "q", UseCase: "r", Prefix: "warmup"}, false},
		{"empty use case", IndexKey{Profile: "p", Provider: "q"}, false},
		{"slash in provider", IndexKey{Profile: "p", Provider: "a/b", UseCase: "r"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidIndexKey)
				return
			}
			require.NoError(t, err)
			parsed, err := ParseIndexKey(tt.key.String())
			require.NoError(t, err)
			assert.Equal(t, tt.key, parsed)
		})
	}
}

func TestInteraction_RequestHeaderDeterministic(t *testing.T) {
	i := Interaction{RequestHeaders: map[string]HeaderValue{
		"X-Trace":      {"upper"},
		"x-trace":      {"lower"},
		"X-TRACE":      {"shout"},
		"Content-Type": {"text/plain"},
		"CONTENT-TYPE": {"application/json"},
	}}

	for n := 0; n < 20; n++ {
		v, ok := i.RequestHeader("X-Trace")
		require.True(t, ok)
		assert.Equal(t, "lower", v, "exact lower-case key wins")

		v, ok = i.RequestHeader("content-type")
		require.True(t, ok)
		assert.Equal(t, "application/json", v, "first sorted key wins")
	}

	_, ok := i.RequestHeader("accept")
	assert.False(t, ok)
}
