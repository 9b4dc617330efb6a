package doc

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Reserved document keys.
const (
	// KeyID is the primary key as stored.
	KeyID = "_id"
	// KeyORMID is the primary key as the ORM sees it.
	KeyORMID = "id"
)

// TimeLayout is the stored form of time values. Fixed width in UTC, so
// lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrUnsupportedValue is returned when a value has no JSON representation.
var ErrUnsupportedValue = errors.New("unsupported document value")

// Document is a single record in a collection.
type Document map[string]any

// ID returns the document's "_id" as an ObjectID.
func (d Document) ID() (ObjectID, error) {
	v, ok := d[KeyID]
	if !ok {
		return NilObjectID, fmt.Errorf("%w: document has no %s", ErrInvalidObjectID, KeyID)
	}
	return ToObjectID(v)
}

// Get resolves a dotted path ("address.city") inside the document.
func (d Document) Get(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of d.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return Clone(val)
	case map[string]any:
		return map[string]any(Clone(Document(val)))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// NormalizeDocument converts every value of d with Normalize.
func NormalizeDocument(d Document) (Document, error) {
	out := make(Document, len(d))
	for k, v := range d {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[norm.NFC.String(k)] = nv
	}
	return out, nil
}

// Normalize converts v into the store's value space:
// nil, bool, string, int64, float64, []any and map[string]any.
//
// Times become TimeLayout strings, ObjectIDs become their string form,
// strings are NFC normalized. NaN and infinities are rejected.
func Normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case string:
		return norm.NFC.String(val), nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return normalizeUint(val)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		return normalizeNumber(val)
	case time.Time:
		return val.UTC().Format(TimeLayout), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return val.UTC().Format(TimeLayout), nil
	case ObjectID:
		return val.String(), nil
	case *ObjectID:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case uuid.UUID:
		return val.String(), nil
	case Document:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case []any:
		return normalizeSlice(val)
	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return norm.NFC.String(string(text)), nil
	}

	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}

func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return f, nil
}

func normalizeNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: number %s", ErrUnsupportedValue, n)
	}
	return normalizeFloat(f)
}

func normalizeMap(m map[string]any) (any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		out[norm.NFC.String(k)] = nv
	}
	return out, nil
}

func normalizeSlice(s []any) (any, error) {
	out := make([]any, len(s))
	for i, v := range s {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = nv
	}
	return out, nil
}

// normalizeReflect handles typed slices ([]string, []int64) and maps with
// string keys that the type switch above cannot name.
func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			nv, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupportedValue, rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
			}
			out[norm.NFC.String(iter.Key().String())] = nv
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.String:
		return norm.NFC.String(rv.String()), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return normalizeUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float())
	case reflect.Invalid:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}
