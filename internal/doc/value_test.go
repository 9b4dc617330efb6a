package doc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Scalars(t *testing.T) {
	id := SequenceID(7)
	ts := time.Date(2024, 3, 1, 12, 30, 0, 5, time.FixedZone("X", 3600))

	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "hello", "hello"},
		{"int", 42, int64(42)},
		{"int32", int32(-3), int64(-3)},
		{"uint16", uint16(9), int64(9)},
		{"float32", float32(1.5), float64(1.5)},
		{"float64", 2.25, 2.25},
		{"time", ts, "2024-03-01T11:30:00.000000005Z"},
		{"object id", id, "00000000-0000-7000-8000-000000000007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_TypedCollections(t *testing.T) {
	got, err := Normalize(map[string][]string{"notes": {"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"notes": []any{"A", "B"}}, got)
}

func TestNormalize_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form
	got, err := Normalize("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)
}

func TestNormalize_Rejects(t *testing.T) {
	inputs := []any{math.NaN(), math.Inf(1), uint64(math.MaxUint64), map[int]string{1: "a"}, make(chan int)}
	for _, in := range inputs {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "input %T", in)
	}
}

func TestDocument_Get(t *testing.T) {
	d := Document{
		"name":    "Ray",
		"address": map[string]any{"city": "Oslo"},
	}

	v, ok := d.Get("address.city")
	require.True(t, ok)
	assert.Equal(t, "Oslo", v)

	_, ok = d.Get("address.zip")
	assert.False(t, ok)

	_, ok = d.Get("name.first")
	assert.False(t, ok)
}

func TestDocument_ID(t *testing.T) {
	id := SequenceID(1)
	d := Document{KeyID: id.String()}

	got, err := d.ID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Document{}.ID()
	assert.ErrorIs(t, err, ErrInvalidObjectID)
}

func TestClone_Deep(t *testing.T) {
	orig := Document{
		"tags":  []any{"a"},
		"inner": map[string]any{"x": int64(1)},
	}
	cp := Clone(orig)

	cp["tags"].([]any)[0] = "b"
	cp["inner"].(map[string]any)["x"] = int64(2)

	assert.Equal(t, "a", orig["tags"].([]any)[0])
	assert.Equal(t, int64(1), orig["inner"].(map[string]any)["x"])
}
