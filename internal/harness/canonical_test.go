package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Values(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hi", `"hi"`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"int", 42, `42`},
		{"int64", int64(-7), `-7`},
		{"bool", true, `true`},
		{"array", []any{"x", 1, false}, `["x",1,false]`},
		{"nested object", map[string]any{"b": map[string]int{"z": 1, "y": 2}, "a": []any{}}, `{"a":[],"b":{"y":2,"z":1}}`},
		{"int64 map", map[string]int64{"k": 3}, `{"k":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical(map[string]any{"cafe\u0301": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "{\"caf\u00e9\":\"caf\u00e9\"}", string(got))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16, where U+1F600 is a surrogate pair starting 0xD83D.
	got, err := MarshalCanonical(map[string]any{"｡": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"｡\":1}", string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for _, in := range []any{nil, 1.5, map[string]any{"a": nil}, struct{}{}} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, "input %#v", in)
	}
}

func TestMarshalCanonical_DuplicateKeyAfterNormalization(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"caf\u00e9": 1, "cafe\u0301": 2})
	assert.ErrorContains(t, err, "duplicate key")
}
