package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/tingo/internal/doc"
)

// Parse converts a query document into a predicate tree.
//
// Top-level keys become a conjunction; an empty or nil Doc parses to an
// empty And (match everything). Keys are visited in sorted order.
func Parse(q Doc) (Predicate, error) {
	return parseDoc(map[string]any(q))
}

// MustParse is like Parse but panics on error.
// Use only in tests or with constant queries.
func MustParse(q Doc) Predicate {
	p, err := Parse(q)
	if err != nil {
		panic(err)
	}
	return p
}

func parseDoc(q map[string]any) (Predicate, error) {
	keys := sortedKeys(q)
	preds := make([]Predicate, 0, len(keys))

	for _, key := range keys {
		val := q[key]
		switch {
		case key == "$and" || key == "$or":
			p, err := parseLogical(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
		default:
			p, err := parseField(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

func parseLogical(op string, val any) (Predicate, error) {
	items, ok := asList(val)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an array, got %T", ErrInvalidQuery, op, val)
	}

	preds := make([]Predicate, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] expects a document, got %T", ErrInvalidQuery, op, i, item)
		}
		p, err := parseDoc(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		preds = append(preds, p)
	}

	if op == "$or" {
		return Or{Predicates: preds}, nil
	}
	return And{Predicates: preds}, nil
}

func parseField(field string, val any) (Predicate, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty field name", ErrInvalidQuery)
	}

	ops, isOps, err := operatorDoc(val)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	if !isOps {
		v, err := doc.Normalize(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		return Compare{Field: field, Op: OpEq, Value: v}, nil
	}

	p, err := parseOperators(field, ops)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	return p, nil
}

// operatorDoc reports whether val is an operator document. A document with
// only "$" keys is one; a document with none is a literal; a mix is an error.
func operatorDoc(val any) (map[string]any, bool, error) {
	m, ok := asMap(val)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}

	dollar := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	default:
		return nil, false, fmt.Errorf("%w: operator and literal keys mixed", ErrInvalidQuery)
	}
}

func parseOperators(field string, ops map[string]any) (Predicate, error) {
	var preds []Predicate

	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		switch op {
		case string(OpEq), string(OpNe), string(OpGt), string(OpGte), string(OpLt), string(OpLte):
			v, err := doc.Normalize(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			preds = append(preds, Compare{Field: field, Op: Op(op), Value: v})

		case "$in", "$nin":
			items, ok := asList(arg)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects an array, got %T", ErrInvalidQuery, op, arg)
			}
			values := make([]any, len(items))
			for i, item := range items {
				v, err := doc.Normalize(item)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
				}
				values[i] = v
			}
			preds = append(preds, In{Field: field, Values: values, Negate: op == "$nin"})

		case "$exists":
			b, ok := arg.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: $exists expects a bool, got %T", ErrInvalidQuery, arg)
			}
			preds = append(preds, Exists{Field: field, Exists: b})

		case "$type":
			t, err := parseType(arg)
			if err != nil {
				return nil, err
			}
			preds = append(preds, TypeIs{Field: field, Type: t})

		case "$regex":
			pattern, ok := arg.(string)
			if !ok {
				return nil, fmt.Errorf("%w: $regex expects a string, got %T", ErrInvalidQuery, arg)
			}
			if opts, ok := ops["$options"].(string); ok && opts != "" {
				pattern = "(?" + opts + ")" + pattern
			}
			preds = append(preds, Match{Field: field, Pattern: pattern, Kind: MatchRegex})

		case "$options":
			if _, ok := ops["$regex"]; !ok {
				return nil, fmt.Errorf("%w: $options without $regex", ErrInvalidQuery)
			}

		case "$like", "$nlike":
			pattern, ok := arg.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidQuery, op, arg)
			}
			preds = append(preds, Match{Field: field, Pattern: pattern, Kind: MatchLike, Negate: op == "$nlike"})

		case "$not":
			inner, isOps, err := operatorDoc(arg)
			if err != nil {
				return nil, err
			}
			if !isOps {
				return nil, fmt.Errorf("%w: $not expects an operator document", ErrInvalidQuery)
			}
			p, err := parseOperators(field, inner)
			if err != nil {
				return nil, fmt.Errorf("$not: %w", err)
			}
			preds = append(preds, Not{Predicate: p})

		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
		}
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

// parseType accepts Mongo BSON type numbers and aliases.
func parseType(arg any) (JSONType, error) {
	switch v := arg.(type) {
	case string:
		switch v {
		case "null":
			return TypeNull, nil
		case "string":
			return TypeString, nil
		case "double", "int", "long", "decimal", "number":
			return TypeNumber, nil
		case "bool":
			return TypeBool, nil
		case "array":
			return TypeArray, nil
		case "object":
			return TypeObject, nil
		}
		return "", fmt.Errorf("%w: unknown $type alias %q", ErrInvalidQuery, v)
	default:
		n, err := doc.Normalize(arg)
		if err != nil {
			return "", err
		}
		code, ok := n.(int64)
		if !ok {
			if f, isFloat := n.(float64); isFloat && f == float64(int64(f)) {
				code, ok = int64(f), true
			}
		}
		if !ok {
			return "", fmt.Errorf("%w: $type expects a number or alias, got %T", ErrInvalidQuery, arg)
		}
		switch code {
		case 1, 16, 18, 19:
			return TypeNumber, nil
		case 2:
			return TypeString, nil
		case 3:
			return TypeObject, nil
		case 4:
			return TypeArray, nil
		case 8:
			return TypeBool, nil
		case 10:
			return TypeNull, nil
		}
		return "", fmt.Errorf("%w: unsupported $type %d", ErrInvalidQuery, code)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Doc:
		return m, true
	case doc.Document:
		return m, true
	default:
		return nil, false
	}
}

// asList accepts []any and typed slices such as []string or []Doc.
func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
