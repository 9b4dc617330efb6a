package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
)

// Plan is a translated filter, ready to run against a collection.
type Plan struct {
	Query      query.Doc       `json:"query"`
	Sort       []query.SortKey `json:"sort,omitempty"`
	Limit      int64           `json:"limit,omitempty"`
	Skip       int64           `json:"skip,omitempty"`
	Projection map[string]bool `json:"projection,omitempty"`
	Include    any             `json:"include,omitempty"`
}

// Coercer converts a where operand of field to its stored form. It is not
// called for nil operands, for "id", or for like, nlike and regexp patterns.
type Coercer func(field string, v any) (any, error)

// Translate converts f into a Plan. Where operands pass through coerce,
// which may be nil.
//
// When both skip and offset are set, skip wins.
func Translate(f Filter, coerce Coercer) (Plan, error) {
	if f.Limit < 0 {
		return Plan{}, fmt.Errorf("%w: negative limit %d", ErrInvalidFilter, f.Limit)
	}
	if f.Skip < 0 || f.Offset < 0 {
		return Plan{}, fmt.Errorf("%w: negative skip/offset", ErrInvalidFilter)
	}

	q, err := TranslateWhere(f.Where, coerce)
	if err != nil {
		return Plan{}, err
	}
	sortKeys, err := TranslateOrder(f.Order)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Query:   q,
		Sort:    sortKeys,
		Limit:   f.Limit,
		Skip:    f.Skip,
		Include: f.Include,
	}
	if plan.Skip == 0 {
		plan.Skip = f.Offset
	}
	if len(f.Fields) > 0 {
		plan.Projection = make(map[string]bool, len(f.Fields))
		for name, keep := range f.Fields {
			plan.Projection[storeField(name)] = keep
		}
	}
	return plan, nil
}

// TranslateWhere converts an ORM where object into a query document.
// A nil or empty where matches everything. Values of "id" are always
// coerced to ObjectIDs; other operands pass through coerce when it is set.
func TranslateWhere(where map[string]any, coerce Coercer) (query.Doc, error) {
	return translateWhere(where, coerce)
}

func translateWhere(where map[string]any, c Coercer) (query.Doc, error) {
	q := query.Doc{}
	for _, key := range doc.SortedKeys(where) {
		cond := where[key]

		switch key {
		case "and", "or":
			clauses, err := translateClauses(key, cond, c)
			if err != nil {
				return nil, err
			}
			q["$"+key] = clauses
			continue
		}

		field := storeField(key)

		if cond == nil {
			q[field] = query.Doc{"$type": 10}
			continue
		}

		if ops, ok := asMap(cond); ok {
			translated, err := translateOperators(key, ops, c)
			if err != nil {
				return nil, err
			}
			q[field] = translated
			continue
		}

		v, err := coerceOperand(c, key, cond)
		if err != nil {
			return nil, err
		}
		q[field] = v
	}
	return q, nil
}

func translateClauses(key string, cond any, c Coercer) ([]any, error) {
	items, ok := asList(cond)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects a list of where objects, got %T", ErrInvalidFilter, key, cond)
	}
	out := make([]any, len(items))
	for i, item := range items {
		clause, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not an object", ErrInvalidFilter, key, i)
		}
		sub, err := translateWhere(clause, c)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out[i] = sub
	}
	return out, nil
}

// comparisons maps ORM operator names that translate one-to-one.
var comparisons = map[string]string{
	"gt":    "$gt",
	"gte":   "$gte",
	"lt":    "$lt",
	"lte":   "$lte",
	"neq":   "$ne",
	"ne":    "$ne",
	"like":  "$like",
	"nlike": "$nlike",
}

func translateOperators(key string, ops map[string]any, c Coercer) (query.Doc, error) {
	out := query.Doc{}
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		arg := ops[name]
		switch name {
		case "between":
			bounds, ok := asList(arg)
			if !ok || len(bounds) != 2 {
				return nil, fmt.Errorf("%w: %s: between expects [low, high]", ErrInvalidFilter, key)
			}
			lo, err := coerceOperand(c, key, bounds[0])
			if err != nil {
				return nil, err
			}
			hi, err := coerceOperand(c, key, bounds[1])
			if err != nil {
				return nil, err
			}
			out["$gte"] = lo
			out["$lte"] = hi

		case "inq", "nin":
			items, ok := asList(arg)
			if !ok {
				return nil, fmt.Errorf("%w: %s: %s expects a list, got %T", ErrInvalidFilter, key, name, arg)
			}
			values := make([]any, len(items))
			for i, item := range items {
				v, err := coerceOperand(c, key, item)
				if err != nil {
					return nil, err
				}
				values[i] = v
			}
			if name == "inq" {
				out["$in"] = values
			} else {
				out["$nin"] = values
			}

		case "regexp":
			pattern, options, err := regexpArg(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out["$regex"] = pattern
			if options != "" {
				out["$options"] = options
			}

		case "exists":
			b, ok := arg.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: %s: exists expects a bool, got %T", ErrInvalidFilter, key, arg)
			}
			out["$exists"] = b

		default:
			op, ok := comparisons[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s", query.ErrUnknownOperator, name, key)
			}
			v := arg
			if op != "$like" && op != "$nlike" {
				var err error
				if v, err = coerceOperand(c, key, arg); err != nil {
					return nil, err
				}
			}
			out[op] = v
		}
	}
	return out, nil
}

// regexpArg accepts "pattern", "/pattern/flags" or a *regexp.Regexp.
func regexpArg(arg any) (string, string, error) {
	switch v := arg.(type) {
	case *regexp.Regexp:
		return v.String(), "", nil
	case string:
		if len(v) >= 2 && v[0] == '/' {
			if end := strings.LastIndexByte(v, '/'); end > 0 {
				flags := v[end+1:]
				for _, f := range flags {
					// g has no meaning for a single match.
					if !strings.ContainsRune("imsg", f) {
						return "", "", fmt.Errorf("%w: regexp flag %q", ErrInvalidFilter, f)
					}
				}
				return v[1:end], strings.ReplaceAll(flags, "g", ""), nil
			}
		}
		return v, "", nil
	default:
		return "", "", fmt.Errorf("%w: regexp expects a string, got %T", ErrInvalidFilter, arg)
	}
}

func coerceOperand(c Coercer, key string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if key == doc.KeyORMID || key == doc.KeyID {
		id, err := doc.ToObjectID(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return id, nil
	}
	if c == nil {
		return v, nil
	}
	out, err := c(key, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

// TranslateOrder parses sort clauses. Each clause is a field name with an
// optional ASC or DESC suffix; ASC is the default.
func TranslateOrder(order []string) ([]query.SortKey, error) {
	var keys []query.SortKey
	for _, entry := range order {
		for _, clause := range strings.Split(entry, ",") {
			clause = strings.TrimSpace(clause)
			if clause == "" {
				continue
			}
			key := query.SortKey{Field: clause}
			if i := strings.LastIndexAny(clause, " \t"); i > 0 {
				switch strings.ToUpper(clause[i+1:]) {
				case "DESC":
					key = query.SortKey{Field: strings.TrimSpace(clause[:i]), Desc: true}
				case "ASC":
					key = query.SortKey{Field: strings.TrimSpace(clause[:i])}
				default:
					return nil, fmt.Errorf("%w: order %q: expected ASC or DESC", ErrInvalidFilter, clause)
				}
			}
			key.Field = storeField(key.Field)
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func storeField(name string) string {
	if name == doc.KeyORMID {
		return doc.KeyID
	}
	return name
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case query.Doc:
		return m, true
	case doc.Document:
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []doc.ObjectID:
		out := make([]any, len(l))
		for i, id := range l {
			out[i] = id
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
