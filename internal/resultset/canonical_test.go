package resultset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"float", 1.5, "1.5"},
		{"integral float keeps point", 2.0, "2.0"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := marshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(b))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	b, err := marshalCanonical(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"zebra":1}`, string(b))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	b, err := marshalCanonical("é")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := marshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = marshalCanonical(math.Inf(1))
	assert.Error(t, err)

	_, err = marshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = marshalCanonical([]any{1, math.NaN()})
	assert.ErrorContains(t, err, "array[1]")
}
