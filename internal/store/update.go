package store

import (
	"fmt"
	"strings"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
)

// applyUpdate returns a copy of d with update applied.
//
// An update whose keys all start with "$" is an operator document
// ($set, $unset, $inc). Anything else replaces the document, keeping "_id".
func applyUpdate(d doc.Document, update query.Doc) (doc.Document, error) {
	id := d[doc.KeyID]

	if !isOperatorDoc(update) {
		if err := checkImmutableID(fmt.Sprint(id), doc.Document(update)); err != nil {
			return nil, err
		}
		out, err := doc.NormalizeDocument(doc.Document(update))
		if err != nil {
			return nil, err
		}
		out[doc.KeyID] = id
		return out, nil
	}

	out := doc.Clone(d)
	for _, op := range doc.SortedKeys(update) {
		var fields map[string]any
		switch m := update[op].(type) {
		case map[string]any:
			fields = m
		case query.Doc:
			fields = m
		case doc.Document:
			fields = m
		default:
			return nil, fmt.Errorf("%w: %s expects an object", query.ErrInvalidQuery, op)
		}
		for _, field := range doc.SortedKeys(fields) {
			if field == doc.KeyID {
				if op == "$set" && checkImmutableID(fmt.Sprint(id), doc.Document{doc.KeyID: fields[field]}) == nil {
					continue
				}
				return nil, ErrImmutableID
			}
			if err := applyOp(out, op, field, fields[field]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyOp(d doc.Document, op, field string, value any) error {
	switch op {
	case "$set":
		v, err := doc.Normalize(value)
		if err != nil {
			return fmt.Errorf("$set %s: %w", field, err)
		}
		return setPath(d, field, v)
	case "$unset":
		unsetPath(d, field)
		return nil
	case "$inc":
		delta, err := doc.Normalize(value)
		if err != nil {
			return fmt.Errorf("$inc %s: %w", field, err)
		}
		cur, _ := d.Get(field)
		sum, err := addNumbers(cur, delta)
		if err != nil {
			return fmt.Errorf("$inc %s: %w", field, err)
		}
		return setPath(d, field, sum)
	default:
		return fmt.Errorf("%w: %s", query.ErrUnknownOperator, op)
	}
}

func addNumbers(cur, delta any) (any, error) {
	if cur == nil {
		cur = int64(0)
	}
	switch c := cur.(type) {
	case int64:
		switch dv := delta.(type) {
		case int64:
			return c + dv, nil
		case float64:
			return float64(c) + dv, nil
		}
	case float64:
		switch dv := delta.(type) {
		case int64:
			return c + float64(dv), nil
		case float64:
			return c + dv, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot add %T to %T", query.ErrInvalidQuery, delta, cur)
}

func isOperatorDoc(update query.Doc) bool {
	if len(update) == 0 {
		return false
	}
	for k := range update {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// setPath assigns v at a dotted path, creating intermediate objects.
func setPath(d doc.Document, path string, v any) error {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := map[string]any{}
			cur[part] = m
			cur = m
			continue
		}
		switch m := next.(type) {
		case map[string]any:
			cur = m
		case doc.Document:
			cur = m
		default:
			return fmt.Errorf("%w: %s is not an object", query.ErrInvalidQuery, part)
		}
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

// unsetPath removes the value at a dotted path. Missing paths are ignored.
func unsetPath(d doc.Document, path string) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		switch m := cur[part].(type) {
		case map[string]any:
			cur = m
		case doc.Document:
			cur = m
		default:
			return
		}
	}
	delete(cur, parts[len(parts)-1])
}
