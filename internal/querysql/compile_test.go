package querysql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
)

func TestJSONPath(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"name", `$."name"`},
		{"address.city", `$."address"."city"`},
		{"it's", `$."it's"`},
	}
	for _, tt := range tests {
		got, err := JSONPath(tt.field)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}

	for _, bad := range []string{"", "a..b", `a"b`, "a."} {
		_, err := JSONPath(bad)
		assert.ErrorIs(t, err, ErrInvalidField, "field %q", bad)
	}
}

func TestWhere_Nil(t *testing.T) {
	sql, params, err := NewCompiler().Where(nil)
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}

func TestWhere_EqualityMatchesArrayElements(t *testing.T) {
	sql, params, err := NewCompiler().Where(query.Compare{Field: "name", Op: query.OpEq, Value: "Ray"})
	require.NoError(t, err)

	assert.Equal(t, `(json_extract(doc, '$."name"') = ? OR (json_type(doc, '$."name"') = 'array' AND EXISTS (SELECT 1 FROM json_each(doc, '$."name"') WHERE json_each.value = ?)))`, sql)
	assert.Equal(t, []any{"Ray", "Ray"}, params)
	assert.NotContains(t, sql, "Ray")
}

func TestWhere_IDUsesColumn(t *testing.T) {
	a, b := doc.SequenceID(1).String(), doc.SequenceID(2).String()

	sql, params, err := NewCompiler().Where(query.In{Field: "_id", Values: []any{a, b}})
	require.NoError(t, err)
	assert.Equal(t, "id IN (?, ?)", sql)
	assert.Equal(t, []any{a, b}, params)

	sql, params, err = NewCompiler().Where(query.Compare{Field: "_id", Op: query.OpEq, Value: a})
	require.NoError(t, err)
	assert.Equal(t, "id = ?", sql)
	assert.Equal(t, []any{a}, params)
}

func TestWhere_Null(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.Where(query.Compare{Field: "email", Op: query.OpEq, Value: nil})
	require.NoError(t, err)
	assert.Equal(t, `(json_type(doc, '$."email"') IS NULL OR json_type(doc, '$."email"') = 'null')`, sql)
	assert.Empty(t, params)

	sql, _, err = c.Where(query.TypeIs{Field: "email", Type: query.TypeNull})
	require.NoError(t, err)
	assert.Equal(t, `json_type(doc, '$."email"') = 'null'`, sql)

	sql, _, err = c.Where(query.Compare{Field: "email", Op: query.OpGt, Value: nil})
	require.NoError(t, err)
	assert.Equal(t, "0 = 1", sql)
}

func TestWhere_NegationsCoalesce(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.Where(query.Compare{Field: "_id", Op: query.OpNe, Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, "NOT COALESCE(id = ?, 0)", sql)
	assert.Equal(t, []any{"x"}, params)

	sql, params, err = c.Where(query.In{Field: "_id", Values: []any{"x"}, Negate: true})
	require.NoError(t, err)
	assert.Equal(t, "NOT COALESCE(id IN (?), 0)", sql)
	assert.Equal(t, []any{"x"}, params)
}

func TestWhere_InWithNull(t *testing.T) {
	sql, params, err := NewCompiler().Where(query.In{Field: "_id", Values: []any{nil, "x"}})
	require.NoError(t, err)
	assert.Equal(t, "(id IN (?) OR (0 = 1))", sql)
	assert.Equal(t, []any{"x"}, params)
}

func TestWhere_EmptyJunctions(t *testing.T) {
	c := NewCompiler()

	sql, _, err := c.Where(query.And{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)

	sql, _, err = c.Where(query.Or{})
	require.NoError(t, err)
	assert.Equal(t, "0 = 1", sql)

	sql, _, err = c.Where(query.In{Field: "_id"})
	require.NoError(t, err)
	assert.Equal(t, "0 = 1", sql)
}

func TestWhere_CompositeValue(t *testing.T) {
	sql, params, err := NewCompiler().Where(query.Compare{
		Field: "address",
		Op:    query.OpEq,
		Value: map[string]any{"zip": "0150", "city": "Oslo"},
	})
	require.NoError(t, err)
	assert.Equal(t, `json_extract(doc, '$."address"') = ?`, sql)
	assert.Equal(t, []any{`{"city":"Oslo","zip":"0150"}`}, params)
}

func TestWhere_Exists(t *testing.T) {
	sql, _, err := NewCompiler().Where(query.Exists{Field: "phone", Exists: true})
	require.NoError(t, err)
	assert.Equal(t, `json_type(doc, '$."phone"') IS NOT NULL`, sql)
}

func TestWhere_InvalidField(t *testing.T) {
	_, _, err := NewCompiler().Where(query.Compare{Field: `bad"name`, Op: query.OpEq, Value: 1})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestOrderBy_AlwaysStable(t *testing.T) {
	c := NewCompiler()

	orderBy, err := c.OrderBy(nil)
	require.NoError(t, err)
	assert.Equal(t, "seq ASC", orderBy)

	orderBy, err = c.OrderBy([]query.SortKey{{Field: "_id", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, "id DESC, seq ASC", orderBy)
}

func TestSelect_SkipWithoutLimit(t *testing.T) {
	sql, params, err := NewCompiler().Select("User", nil, FindOptions{Skip: 3})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, doc FROM documents WHERE collection = ? AND 1 = 1 ORDER BY seq ASC LIMIT -1 OFFSET ?", sql)
	assert.Equal(t, []any{"User", int64(3)}, params)
}

func TestSelect_Golden(t *testing.T) {
	g := goldie.New(t)

	pred := query.MustParse(query.Doc{"age": query.Doc{"$gte": 18, "$lte": 65}})
	sql, params, err := NewCompiler().Select("User", pred, FindOptions{
		Sort:  []query.SortKey{{Field: "name"}, {Field: "age", Desc: true}},
		Limit: 10,
		Skip:  5,
	})
	require.NoError(t, err)

	g.Assert(t, "select_range_sort", []byte(sql+"\n"))
	assert.Equal(t, []any{"User", int64(18), int64(65), int64(10), int64(5)}, params)
}

func TestCount_Golden(t *testing.T) {
	g := goldie.New(t)

	pred := query.Or{Predicates: []query.Predicate{
		query.Compare{Field: "email", Op: query.OpEq, Value: nil},
		query.Exists{Field: "phone", Exists: false},
	}}
	sql, params, err := NewCompiler().Count("User", pred)
	require.NoError(t, err)

	g.Assert(t, "count_or_null", []byte(sql+"\n"))
	assert.Equal(t, []any{"User"}, params)
}

func TestDelete_Golden(t *testing.T) {
	g := goldie.New(t)

	pred := query.MustParse(query.Doc{"address.city": query.Doc{"$regex": "^Os", "$options": "i"}})
	sql, params, err := NewCompiler().Delete("User", pred)
	require.NoError(t, err)

	g.Assert(t, "delete_nested_regex", []byte(sql+"\n"))
	assert.Equal(t, []any{"User", "(?i)^Os"}, params)
}
