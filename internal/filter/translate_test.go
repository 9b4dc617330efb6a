package filter

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
)

// foreignKeys coerces the named fields to ObjectIDs and leaves others alone.
func foreignKeys(names ...string) Coercer {
	return func(field string, v any) (any, error) {
		for _, name := range names {
			if name == field {
				return doc.ToObjectID(v)
			}
		}
		return v, nil
	}
}

func TestTranslateWhere(t *testing.T) {
	id1, id2 := doc.SequenceID(1), doc.SequenceID(2)

	tests := []struct {
		name     string
		where    map[string]any
		coerce   Coercer
		expected query.Doc
	}{
		{
			name:     "empty",
			where:    nil,
			expected: query.Doc{},
		},
		{
			name:     "equality",
			where:    map[string]any{"name": "ada", "age": 36},
			expected: query.Doc{"name": "ada", "age": 36},
		},
		{
			name:     "id is renamed and coerced",
			where:    map[string]any{"id": id1.String()},
			expected: query.Doc{"_id": id1},
		},
		{
			name:     "null matches explicit null",
			where:    map[string]any{"deletedAt": nil},
			expected: query.Doc{"deletedAt": query.Doc{"$type": 10}},
		},
		{
			name:     "between",
			where:    map[string]any{"age": map[string]any{"between": []any{18, 65}}},
			expected: query.Doc{"age": query.Doc{"$gte": 18, "$lte": 65}},
		},
		{
			name:     "inq coerces ids",
			where:    map[string]any{"id": map[string]any{"inq": []string{id1.String(), id2.String()}}},
			expected: query.Doc{"_id": query.Doc{"$in": []any{id1, id2}}},
		},
		{
			name:     "inq leaves plain fields alone",
			where:    map[string]any{"role": map[string]any{"inq": []any{"admin", "dev"}}},
			expected: query.Doc{"role": query.Doc{"$in": []any{"admin", "dev"}}},
		},
		{
			name:     "foreign key coerced",
			where:    map[string]any{"authorId": map[string]any{"neq": id2.String()}},
			coerce:   foreignKeys("authorId"),
			expected: query.Doc{"authorId": query.Doc{"$ne": id2}},
		},
		{
			name:     "comparisons",
			where:    map[string]any{"age": map[string]any{"gt": 1, "lte": 9}, "n": map[string]any{"ne": 3}},
			expected: query.Doc{"age": query.Doc{"$gt": 1, "$lte": 9}, "n": query.Doc{"$ne": 3}},
		},
		{
			name:     "nin",
			where:    map[string]any{"role": map[string]any{"nin": []any{"guest"}}},
			expected: query.Doc{"role": query.Doc{"$nin": []any{"guest"}}},
		},
		{
			name:     "like and nlike",
			where:    map[string]any{"name": map[string]any{"like": "A%"}, "email": map[string]any{"nlike": "%@test"}},
			expected: query.Doc{"name": query.Doc{"$like": "A%"}, "email": query.Doc{"$nlike": "%@test"}},
		},
		{
			name:     "regexp with flags",
			where:    map[string]any{"name": map[string]any{"regexp": "/^a/gi"}},
			expected: query.Doc{"name": query.Doc{"$regex": "^a", "$options": "i"}},
		},
		{
			name:     "regexp value",
			where:    map[string]any{"name": map[string]any{"regexp": regexp.MustCompile("^a")}},
			expected: query.Doc{"name": query.Doc{"$regex": "^a"}},
		},
		{
			name:     "exists",
			where:    map[string]any{"phone": map[string]any{"exists": false}},
			expected: query.Doc{"phone": query.Doc{"$exists": false}},
		},
		{
			name: "and/or",
			where: map[string]any{
				"or":  []any{map[string]any{"id": id1.String()}, map[string]any{"age": map[string]any{"lt": 18}}},
				"and": []map[string]any{{"active": true}},
			},
			expected: query.Doc{
				"$or":  []any{query.Doc{"_id": id1}, query.Doc{"age": query.Doc{"$lt": 18}}},
				"$and": []any{query.Doc{"active": true}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranslateWhere(tt.where, tt.coerce)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTranslateWhere_Errors(t *testing.T) {
	tests := []struct {
		name   string
		where  map[string]any
		target error
	}{
		{"unknown operator", map[string]any{"age": map[string]any{"near": 1}}, query.ErrUnknownOperator},
		{"between arity", map[string]any{"age": map[string]any{"between": []any{1}}}, ErrInvalidFilter},
		{"inq not list", map[string]any{"age": map[string]any{"inq": 1}}, ErrInvalidFilter},
		{"bad id", map[string]any{"id": "nope"}, doc.ErrInvalidObjectID},
		{"bad id in inq", map[string]any{"id": map[string]any{"inq": []any{"nope"}}}, doc.ErrInvalidObjectID},
		{"or not list", map[string]any{"or": map[string]any{"a": 1}}, ErrInvalidFilter},
		{"or clause not object", map[string]any{"or": []any{1}}, ErrInvalidFilter},
		{"exists not bool", map[string]any{"a": map[string]any{"exists": "yes"}}, ErrInvalidFilter},
		{"regexp bad flag", map[string]any{"a": map[string]any{"regexp": "/x/y"}}, ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateWhere(tt.where, nil)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestTranslateWhere_CoercesOperands(t *testing.T) {
	var seen []string
	double := func(field string, v any) (any, error) {
		seen = append(seen, field)
		i, err := strconv.Atoi(v.(string))
		if err != nil {
			return nil, err
		}
		return i * 2, nil
	}

	got, err := TranslateWhere(map[string]any{
		"n": map[string]any{
			"between": []any{"1", "2"},
			"inq":     []any{"3"},
			"nin":     []any{"4"},
			"gt":      "5",
			"lt":      "7",
			"neq":     "9",
		},
		"m":    map[string]any{"gte": "6", "lte": "8", "ne": "11"},
		"p":    map[string]any{"like": "1%", "nlike": "2%", "regexp": "^1"},
		"or":   []any{map[string]any{"n": "10"}},
		"gone": nil,
	}, double)
	require.NoError(t, err)

	assert.Equal(t, query.Doc{
		"n": query.Doc{
			"$gte": 2,
			"$lte": 4,
			"$in":  []any{6},
			"$nin": []any{8},
			"$gt":  10,
			"$lt":  14,
			"$ne":  18,
		},
		"m":    query.Doc{"$gte": 12, "$lte": 16, "$ne": 22},
		"p":    query.Doc{"$like": "1%", "$nlike": "2%", "$regex": "^1"},
		"$or":  []any{query.Doc{"n": 20}},
		"gone": query.Doc{"$type": 10},
	}, got)
	assert.NotContains(t, seen, "p")
	assert.NotContains(t, seen, "gone")
}

func TestTranslateWhere_CoercerError(t *testing.T) {
	errBad := errors.New("bad value")
	reject := func(field string, v any) (any, error) { return nil, errBad }

	for _, where := range []map[string]any{
		{"at": "x"},
		{"at": map[string]any{"between": []any{"x", "y"}}},
		{"at": map[string]any{"inq": []any{"x"}}},
		{"at": map[string]any{"lte": "x"}},
	} {
		_, err := TranslateWhere(where, reject)
		require.ErrorIs(t, err, errBad)
		assert.Contains(t, err.Error(), "at: ")
	}

	// id is coerced by the translator itself.
	q, err := TranslateWhere(map[string]any{"id": doc.SequenceID(1).String()}, reject)
	require.NoError(t, err)
	assert.Equal(t, query.Doc{"_id": doc.SequenceID(1)}, q)
}

func TestTranslateWhere_ParsesAsQuery(t *testing.T) {
	q, err := TranslateWhere(map[string]any{
		"id":   map[string]any{"inq": []any{doc.SequenceID(1).String()}},
		"age":  map[string]any{"between": []any{1, 2}},
		"name": nil,
	}, nil)
	require.NoError(t, err)

	_, err = query.Parse(q)
	assert.NoError(t, err)
}

func TestTranslateOrder(t *testing.T) {
	tests := []struct {
		name     string
		order    []string
		expected []query.SortKey
	}{
		{"none", nil, nil},
		{"single", []string{"name"}, []query.SortKey{{Field: "name"}}},
		{"desc", []string{"age DESC"}, []query.SortKey{{Field: "age", Desc: true}}},
		{"explicit asc", []string{"age  ASC"}, []query.SortKey{{Field: "age"}}},
		{"lower case", []string{"age desc"}, []query.SortKey{{Field: "age", Desc: true}}},
		{"comma list", []string{"age DESC, name"}, []query.SortKey{{Field: "age", Desc: true}, {Field: "name"}}},
		{"id renamed", []string{"id DESC"}, []query.SortKey{{Field: "_id", Desc: true}}},
		{"blank entries skipped", []string{"name,", " "}, []query.SortKey{{Field: "name"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranslateOrder(tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := TranslateOrder([]string{"age SIDEWAYS"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestTranslate_SkipWinsOverOffset(t *testing.T) {
	plan, err := Translate(Filter{Skip: 5, Offset: 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), plan.Skip)

	plan, err = Translate(Filter{Offset: 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), plan.Skip)
}

func TestTranslate_RejectsNegative(t *testing.T) {
	_, err := Translate(Filter{Limit: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = Translate(Filter{Skip: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestTranslate_Golden(t *testing.T) {
	g := goldie.New(t)

	plan, err := Translate(Filter{
		Where: map[string]any{
			"age":       map[string]any{"between": []any{18, 65}},
			"id":        map[string]any{"inq": []any{doc.SequenceID(1).String(), doc.SequenceID(2)}},
			"deletedAt": nil,
			"or": []any{
				map[string]any{"name": map[string]any{"like": "A%"}},
				map[string]any{"role": "admin"},
			},
		},
		Order:  Order{"age DESC", "name"},
		Limit:  10,
		Offset: 20,
		Fields: Fields{"name": true, "id": true},
	}, nil)
	require.NoError(t, err)

	data, err := json.MarshalIndent(plan, "", "  ")
	require.NoError(t, err)
	g.Assert(t, "plan_full", append(data, '\n'))
}
