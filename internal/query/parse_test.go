package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/doc"
)

func TestParse_Empty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{}}, p)
}

func TestParse_Equality(t *testing.T) {
	p, err := Parse(Doc{"name": "Ray"})
	require.NoError(t, err)
	assert.Equal(t, Compare{Field: "name", Op: OpEq, Value: "Ray"}, p)
}

func TestParse_NormalizesValues(t *testing.T) {
	id := doc.SequenceID(4)
	p, err := Parse(Doc{"_id": id, "age": 30})
	require.NoError(t, err)

	assert.Equal(t, And{Predicates: []Predicate{
		Compare{Field: "_id", Op: OpEq, Value: id.String()},
		Compare{Field: "age", Op: OpEq, Value: int64(30)},
	}}, p)
}

func TestParse_SortedKeys(t *testing.T) {
	p, err := Parse(Doc{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)

	and, ok := p.(And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 3)
	assert.Equal(t, "a", and.Predicates[0].(Compare).Field)
	assert.Equal(t, "b", and.Predicates[1].(Compare).Field)
	assert.Equal(t, "c", and.Predicates[2].(Compare).Field)
}

func TestParse_Range(t *testing.T) {
	p, err := Parse(Doc{"age": Doc{"$gte": 18, "$lte": 65}})
	require.NoError(t, err)

	assert.Equal(t, And{Predicates: []Predicate{
		Compare{Field: "age", Op: OpGte, Value: int64(18)},
		Compare{Field: "age", Op: OpLte, Value: int64(65)},
	}}, p)
}

func TestParse_Membership(t *testing.T) {
	p, err := Parse(Doc{"tag": map[string]any{"$in": []string{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, In{Field: "tag", Values: []any{"a", "b"}}, p)

	p, err = Parse(Doc{"tag": Doc{"$nin": []any{1}}})
	require.NoError(t, err)
	assert.Equal(t, In{Field: "tag", Values: []any{int64(1)}, Negate: true}, p)
}

func TestParse_Type(t *testing.T) {
	tests := []struct {
		arg      any
		expected JSONType
	}{
		{10, TypeNull},
		{"null", TypeNull},
		{2, TypeString},
		{4, TypeArray},
		{float64(1), TypeNumber},
		{"bool", TypeBool},
	}

	for _, tt := range tests {
		p, err := Parse(Doc{"f": Doc{"$type": tt.arg}})
		require.NoError(t, err, "arg %v", tt.arg)
		assert.Equal(t, TypeIs{Field: "f", Type: tt.expected}, p)
	}

	_, err := Parse(Doc{"f": Doc{"$type": 99}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParse_RegexOptions(t *testing.T) {
	p, err := Parse(Doc{"name": Doc{"$regex": "^ra", "$options": "i"}})
	require.NoError(t, err)
	assert.Equal(t, Match{Field: "name", Pattern: "(?i)^ra", Kind: MatchRegex}, p)
}

func TestParse_Like(t *testing.T) {
	p, err := Parse(Doc{"email": Doc{"$nlike": "%@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, Match{Field: "email", Pattern: "%@example.com", Kind: MatchLike, Negate: true}, p)
}

func TestParse_Not(t *testing.T) {
	p, err := Parse(Doc{"age": Doc{"$not": Doc{"$gt": 5}}})
	require.NoError(t, err)
	assert.Equal(t, Not{Predicate: Compare{Field: "age", Op: OpGt, Value: int64(5)}}, p)
}

func TestParse_Logical(t *testing.T) {
	p, err := Parse(Doc{"$or": []any{
		Doc{"a": 1},
		map[string]any{"b": 2},
	}})
	require.NoError(t, err)

	assert.Equal(t, Or{Predicates: []Predicate{
		Compare{Field: "a", Op: OpEq, Value: int64(1)},
		Compare{Field: "b", Op: OpEq, Value: int64(2)},
	}}, p)
}

func TestParse_LiteralSubdocument(t *testing.T) {
	p, err := Parse(Doc{"address": Doc{"city": "Oslo"}})
	require.NoError(t, err)
	assert.Equal(t, Compare{Field: "address", Op: OpEq, Value: map[string]any{"city": "Oslo"}}, p)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query Doc
		want  error
	}{
		{"unknown top-level", Doc{"$where": "x"}, ErrUnknownOperator},
		{"unknown field op", Doc{"a": Doc{"$neq": 1}}, ErrUnknownOperator},
		{"mixed keys", Doc{"a": Doc{"$gt": 1, "b": 2}}, ErrInvalidQuery},
		{"in not array", Doc{"a": Doc{"$in": 1}}, ErrInvalidQuery},
		{"exists not bool", Doc{"a": Doc{"$exists": "yes"}}, ErrInvalidQuery},
		{"or not array", Doc{"$or": Doc{"a": 1}}, ErrInvalidQuery},
		{"or item not doc", Doc{"$or": []any{1}}, ErrInvalidQuery},
		{"options alone", Doc{"a": Doc{"$options": "i"}}, ErrInvalidQuery},
		{"empty field", Doc{"": 1}, ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse(Doc{"$bogus": 1}) })
}
