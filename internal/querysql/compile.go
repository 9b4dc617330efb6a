// Package querysql compiles query predicates into parameterized SQLite SQL
// over the store's documents table.
//
// Every document lives in one row: (collection, id, seq, doc). Fields are
// read with json_extract/json_type on the doc column; "_id" maps to the id
// column. Values are always bound as parameters; JSON paths are emitted as
// escaped string literals so expression indexes can match them.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
)

// ErrInvalidField is returned for field names that cannot be expressed as
// a JSON path.
var ErrInvalidField = errors.New("invalid field name")

// DocumentsTable is the single table holding all collections.
const DocumentsTable = "documents"

// stableOrder is appended to every ORDER BY so results are deterministic.
const stableOrder = "seq ASC"

// FindOptions is the cursor configuration for a SELECT.
type FindOptions struct {
	Sort  []query.SortKey
	Limit int64 // 0 = no limit
	Skip  int64
}

// Compiler compiles predicates to SQL fragments.
//
// A Compiler is stateless and safe for concurrent use.
type Compiler struct {
	Table string
}

// NewCompiler creates a compiler targeting DocumentsTable.
func NewCompiler() *Compiler {
	return &Compiler{Table: DocumentsTable}
}

// Select builds the full query for a cursor.
// Returned rows have two columns: id, doc.
func (c *Compiler) Select(collection string, p query.Predicate, opts FindOptions) (string, []any, error) {
	where, params, err := c.Where(p)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := c.OrderBy(opts.Sort)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, doc FROM %s WHERE collection = ? AND %s ORDER BY %s", c.Table, where, orderBy)
	args := append([]any{collection}, params...)

	switch {
	case opts.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
		if opts.Skip > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, opts.Skip)
		}
	case opts.Skip > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, opts.Skip)
	}

	return b.String(), args, nil
}

// Count builds a COUNT(*) query.
func (c *Compiler) Count(collection string, p query.Predicate) (string, []any, error) {
	where, params, err := c.Where(p)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection = ? AND %s", c.Table, where)
	return sql, append([]any{collection}, params...), nil
}

// Delete builds a DELETE for every matching document.
func (c *Compiler) Delete(collection string, p query.Predicate) (string, []any, error) {
	where, params, err := c.Where(p)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE collection = ? AND %s", c.Table, where)
	return sql, append([]any{collection}, params...), nil
}

// OrderBy builds an ORDER BY list. seq ASC is always the final key.
func (c *Compiler) OrderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		f, err := resolveField(k.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, f.value+" "+dir)
	}
	parts = append(parts, stableOrder)
	return strings.Join(parts, ", "), nil
}

// Where compiles a predicate into a WHERE fragment and its parameters.
// A nil predicate is always true.
func (c *Compiler) Where(p query.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case query.Compare:
		return compileCompare(pred)
	case query.In:
		return compileIn(pred)
	case query.Exists:
		return compileExists(pred)
	case query.TypeIs:
		return compileType(pred)
	case query.Match:
		return compileMatch(pred)
	case query.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case query.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")
	case query.Not:
		inner, params, err := c.Where(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return negate(inner), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileJunction(preds []query.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	if len(preds) == 1 {
		return c.Where(preds[0])
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, sub := range preds {
		sql, subParams, err := c.Where(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// field holds the SQL expressions that read one document field.
type field struct {
	value string // expression yielding the SQL value
	typ   string // expression yielding the json_type name, NULL if missing
	path  string // quoted JSON path literal, empty for the id column
}

func resolveField(name string) (field, error) {
	if name == doc.KeyID {
		return field{value: "id", typ: "'text'"}, nil
	}
	path, err := JSONPath(name)
	if err != nil {
		return field{}, err
	}
	lit := quoteLiteral(path)
	return field{
		value: "json_extract(doc, " + lit + ")",
		typ:   "json_type(doc, " + lit + ")",
		path:  lit,
	}, nil
}

// JSONPath converts a dotted field name into a SQLite JSON path:
// "address.city" -> $."address"."city".
func JSONPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidField)
	}
	segments := strings.Split(name, ".")
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, "\"\x00") {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String(), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// negate wraps a fragment so that NULL (missing field) counts as false
// before negation, matching document semantics for $ne/$nin/$not.
func negate(sql string) string {
	return "NOT COALESCE(" + sql + ", 0)"
}

func isNull(f field) string {
	if f.path == "" {
		return "(0 = 1)"
	}
	return "(" + f.typ + " IS NULL OR " + f.typ + " = 'null')"
}

func compileCompare(cmp query.Compare) (string, []any, error) {
	f, err := resolveField(cmp.Field)
	if err != nil {
		return "", nil, err
	}

	if cmp.Value == nil {
		switch cmp.Op {
		case query.OpEq:
			return isNull(f), nil, nil
		case query.OpNe:
			return "NOT " + isNull(f), nil, nil
		default:
			// ordering against null matches nothing
			return "0 = 1", nil, nil
		}
	}

	param, composite, err := toParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", cmp.Field, err)
	}

	switch cmp.Op {
	case query.OpEq:
		return equals(f, param, composite), eqParams(f, param, composite), nil
	case query.OpNe:
		return negate(equals(f, param, composite)), eqParams(f, param, composite), nil
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		guard := typeGuard(f, cmp.Value)
		sql := fmt.Sprintf("%s %s ?", f.value, sqlOperator(cmp.Op))
		if guard != "" {
			sql = "(" + guard + " AND " + sql + ")"
		}
		return sql, []any{param}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", query.ErrUnknownOperator, cmp.Op)
	}
}

// equals matches the field value, or any element when the field is an array.
func equals(f field, param any, composite bool) string {
	if f.path == "" || composite {
		return f.value + " = ?"
	}
	return "(" + f.value + " = ? OR (" + f.typ + " = 'array' AND EXISTS (SELECT 1 FROM json_each(doc, " + f.path + ") WHERE json_each.value = ?)))"
}

func eqParams(f field, param any, composite bool) []any {
	if f.path == "" || composite {
		return []any{param}
	}
	return []any{param, param}
}

func compileIn(in query.In) (string, []any, error) {
	f, err := resolveField(in.Field)
	if err != nil {
		return "", nil, err
	}

	var params []any
	matchNull := false
	for _, v := range in.Values {
		if v == nil {
			matchNull = true
			continue
		}
		param, _, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", in.Field, err)
		}
		params = append(params, param)
	}

	var clauses []string
	var args []any
	if len(params) > 0 {
		list := placeholders(len(params))
		if f.path == "" {
			clauses = append(clauses, f.value+" IN ("+list+")")
			args = append(args, params...)
		} else {
			clauses = append(clauses, "("+f.value+" IN ("+list+") OR ("+f.typ+" = 'array' AND EXISTS (SELECT 1 FROM json_each(doc, "+f.path+") WHERE json_each.value IN ("+list+"))))")
			args = append(args, params...)
			args = append(args, params...)
		}
	}
	if matchNull {
		clauses = append(clauses, isNull(f))
	}

	var sql string
	switch len(clauses) {
	case 0:
		sql = "0 = 1"
	case 1:
		sql = clauses[0]
	default:
		sql = "(" + strings.Join(clauses, " OR ") + ")"
	}

	if in.Negate {
		return negate(sql), args, nil
	}
	return sql, args, nil
}

func compileExists(ex query.Exists) (string, []any, error) {
	f, err := resolveField(ex.Field)
	if err != nil {
		return "", nil, err
	}
	if f.path == "" {
		if ex.Exists {
			return "1 = 1", nil, nil
		}
		return "0 = 1", nil, nil
	}
	if ex.Exists {
		return f.typ + " IS NOT NULL", nil, nil
	}
	return f.typ + " IS NULL", nil, nil
}

func compileType(t query.TypeIs) (string, []any, error) {
	f, err := resolveField(t.Field)
	if err != nil {
		return "", nil, err
	}
	switch t.Type {
	case query.TypeNull:
		return f.typ + " = 'null'", nil, nil
	case query.TypeString:
		return f.typ + " = 'text'", nil, nil
	case query.TypeNumber:
		return f.typ + " IN ('integer', 'real')", nil, nil
	case query.TypeBool:
		return f.typ + " IN ('true', 'false')", nil, nil
	case query.TypeArray:
		return f.typ + " = 'array'", nil, nil
	case query.TypeObject:
		return f.typ + " = 'object'", nil, nil
	default:
		return "", nil, fmt.Errorf("%w: type %q", query.ErrInvalidQuery, t.Type)
	}
}

func compileMatch(m query.Match) (string, []any, error) {
	f, err := resolveField(m.Field)
	if err != nil {
		return "", nil, err
	}

	op := "LIKE"
	if m.Kind == query.MatchRegex {
		op = "REGEXP"
	}
	sql := fmt.Sprintf("(%s = 'text' AND %s %s ?)", f.typ, f.value, op)
	if m.Negate {
		sql = negate(sql)
	}
	return sql, []any{m.Pattern}, nil
}

// typeGuard keeps range comparisons within one JSON type, since SQLite
// orders every number before every string.
func typeGuard(f field, v any) string {
	if f.path == "" {
		return ""
	}
	switch v.(type) {
	case string:
		return f.typ + " = 'text'"
	case int64, float64:
		return f.typ + " IN ('integer', 'real')"
	case bool:
		return f.typ + " IN ('true', 'false')"
	default:
		return ""
	}
}

func sqlOperator(op query.Op) string {
	switch op {
	case query.OpGt:
		return ">"
	case query.OpGte:
		return ">="
	case query.OpLt:
		return "<"
	case query.OpLte:
		return "<="
	case query.OpNe:
		return "!="
	default:
		return "="
	}
}

// toParam converts a normalized value into a driver parameter. Arrays and
// objects compare as their canonical JSON text.
func toParam(v any) (any, bool, error) {
	switch val := v.(type) {
	case string, int64, float64, bool:
		return val, false, nil
	case []any, map[string]any:
		data, err := doc.MarshalValue(val)
		if err != nil {
			return nil, false, err
		}
		return string(data), true, nil
	default:
		nv, err := doc.Normalize(v)
		if err != nil {
			return nil, false, err
		}
		if nv == nil {
			return nil, false, fmt.Errorf("%w: null parameter", query.ErrInvalidQuery)
		}
		return toParam(nv)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
