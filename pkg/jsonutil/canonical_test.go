package jsonutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/pkg/jsonutil"
)

func TestCanonicalMarshal_SortedKeys(t *testing.T) {
	input := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(out))
}

func TestCanonicalMarshal_Nested(t *testing.T) {
	input := map[string]any{
		"b": map[string]any{"z": 1, "a": []any{"x", nil}},
		"a": 0,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0,"b":{"a":["x",null],"z":1}}`, string(out))
}

func TestCanonicalMarshal_StructSortsFields(t *testing.T) {
	type sample struct {
		Zebra int    `json:"zebra"`
		Alpha string `json:"alpha"`
	}
	out, err := jsonutil.CanonicalMarshal(sample{Zebra: 1, Alpha: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zebra":1}`, string(out))
}

func TestCanonicalize_PreservesNumberText(t *testing.T) {
	out, err := jsonutil.Canonicalize([]byte(`{ "qty": 85.50, "big": 9007199254740993 }`))
	require.NoError(t, err)
	assert.Equal(t, `{"big":9007199254740993,"qty":85.50}`, string(out))
}

func TestCanonicalize_Idempotent(t *testing.T) {
	first, err := jsonutil.Canonicalize([]byte(`{"b":[1,2,{"d":true,"c":"x"}],"a":null}`))
	require.NoError(t, err)
	second, err := jsonutil.Canonicalize(first)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestCanonicalize_EmptyIsNull(t *testing.T) {
	out, err := jsonutil.Canonicalize(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
