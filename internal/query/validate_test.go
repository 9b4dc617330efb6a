package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Indexable(t *testing.T) {
	result := Validate(MustParse(Doc{
		"age":  Doc{"$gte": 1, "$lt": 9},
		"name": "Ray",
		"tag":  Doc{"$in": []any{"a"}},
	}))

	assert.True(t, result.Indexable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name  string
		query Doc
	}{
		{"ne", Doc{"a": Doc{"$ne": 1}}},
		{"nin", Doc{"a": Doc{"$nin": []any{1}}}},
		{"regex", Doc{"a": Doc{"$regex": "x"}}},
		{"nlike", Doc{"a": Doc{"$nlike": "x%"}}},
		{"not", Doc{"a": Doc{"$not": Doc{"$gt": 1}}}},
		{"or", Doc{"$or": []any{Doc{"a": 1}, Doc{"b": 2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(MustParse(tt.query))
			assert.False(t, result.Indexable)
			assert.NotEmpty(t, result.Warnings)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.True(t, result.Indexable)
}
