package recording

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"b": 1, "a": []any{true, nil, "x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,null,"x"],"b":1}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical("<a & b>\n")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>\n"`, string(out))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{json.Number("10"), "10"},
		{json.Number("1.0"), "1"},
		{json.Number("1.5"), "1.5"},
		{float64(3), "3"},
		{int64(-2), "-2"},
	}
	for _, tt := range tests {
		out, err := MarshalCanonical(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(out))
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair starting 0xD83D, which sorts before U+FFFD
	// in UTF-16 but after it in UTF-8.
	out, err := MarshalCanonical(map[string]any{"\uFFFD": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.True(t, strings.Index(string(out), "\U0001F600") < strings.Index(string(out), "\uFFFD"))
}

func TestMarshalCanonical_RejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestHashInput_Stable(t *testing.T) {
	var a, b any
	require.NoError(t, json.Unmarshal([]byte(`{"to":"me","n":1}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{ "n": 1, "to": "me" }`), &b))

	ha, err := HashInput(a)
	require.NoError(t, err)
	hb, err := HashInput(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
	assert.NotEqual(t, ha, MustHashInput(map[string]any{"to": "you", "n": 1}))
}

func TestHashInput_NFC(t *testing.T) {
	// Precomposed U+00E9 vs "e" + combining acute accent.
	assert.Equal(t, MustHashInput("\u00e9"), MustHashInput("e\u0301"))
}

func TestHashName_DomainSeparated(t *testing.T) {
	assert.NotEqual(t, HashName(`"x"`), MustHashInput("x"))
	assert.Equal(t, HashName("test"), HashName("test"))
}
