package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	d := Document{"zebra": 1, "alpha": 2, "beta": 3}

	data, err := MarshalCanonical(d)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(data))
}

func TestMarshalCanonical_Nested(t *testing.T) {
	d := Document{
		"z": map[string]any{"b": 1, "a": []any{true, nil, "x"}},
		"a": 1.5,
	}

	data, err := MarshalCanonical(d)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1.5,"z":{"a":[true,null,"x"],"b":1}}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(Document{"q": "<a & b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"<a & b>"}`, string(data))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, so it sorts before
	// U+E000 in UTF-16 but after it in UTF-8 byte order.
	d := Document{"\U0001F600": 1, "\uE000": 2}

	data, err := MarshalCanonical(d)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uE000\":2}", string(data))
}

func TestUnmarshalDocument_Numbers(t *testing.T) {
	d, err := UnmarshalDocument([]byte(`{"i":9007199254740993,"f":1.25,"s":"x","a":[1,2.5]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(9007199254740993), d["i"])
	assert.Equal(t, 1.25, d["f"])
	assert.Equal(t, "x", d["s"])
	assert.Equal(t, []any{int64(1), 2.5}, d["a"])
}

func TestMarshalUnmarshal_Document(t *testing.T) {
	orig := Document{"name": "Ray", "age": int64(30), "notes": []any{"A"}}

	data, err := MarshalCanonical(orig)
	require.NoError(t, err)

	back, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	_, err := UnmarshalDocument([]byte(`[1,2]`))
	assert.Error(t, err)
}
