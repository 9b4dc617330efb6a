package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
)

// PropertyType is the declared type of a model property.
type PropertyType string

// Property types understood by the connector. Other types are stored as
// given.
const (
	TypeString   PropertyType = "String"
	TypeNumber   PropertyType = "Number"
	TypeBoolean  PropertyType = "Boolean"
	TypeDate     PropertyType = "Date"
	TypeObjectID PropertyType = "ObjectID"
	TypeJSON     PropertyType = "JSON"
	TypeArray    PropertyType = "Array"
	TypeAny      PropertyType = "Any"
)

// Property describes one model property.
type Property struct {
	Type     PropertyType `json:"type" yaml:"type"`
	Index    bool         `json:"index,omitempty" yaml:"index,omitempty"`
	Unique   bool         `json:"unique,omitempty" yaml:"unique,omitempty"`
	Required bool         `json:"required,omitempty" yaml:"required,omitempty"`
}

// Includer loads related models into query results. The ORM provides one
// per model; the connector only calls it.
type Includer interface {
	Include(ctx context.Context, docs []doc.Document, include any) ([]doc.Document, error)
}

// IncluderFunc adapts a function to Includer.
type IncluderFunc func(ctx context.Context, docs []doc.Document, include any) ([]doc.Document, error)

// Include calls f.
func (f IncluderFunc) Include(ctx context.Context, docs []doc.Document, include any) ([]doc.Document, error) {
	return f(ctx, docs, include)
}

// ModelDefinition is what the ORM registers through Define.
type ModelDefinition struct {
	// Name is the model name, e.g. "User".
	Name string

	// Properties maps property names to their definitions.
	Properties map[string]Property

	// Settings holds connector-specific model settings. "collection"
	// overrides the collection name.
	Settings map[string]any

	// Includer resolves Filter.Include for All. May be nil.
	Includer Includer
}

// KeyType coerces foreign key values, as returned by DefineForeignKey.
type KeyType func(v any) (doc.ObjectID, error)

// model is the connector's view of a defined model. A registered model is
// never mutated; redefinitions build a new one.
type model struct {
	def        ModelDefinition
	collection string
}

func newModel(def ModelDefinition) *model {
	if def.Settings == nil {
		def.Settings = map[string]any{}
	}
	props := make(map[string]Property, len(def.Properties))
	for name, p := range def.Properties {
		props[name] = p
	}
	def.Properties = props

	collection := def.Name
	if name, ok := def.Settings["collection"].(string); ok && name != "" {
		collection = name
	}
	return &model{def: def, collection: collection}
}

// withProperty returns a copy of m with prop set to p.
func (m *model) withProperty(prop string, p Property) *model {
	def := m.def
	def.Properties = make(map[string]Property, len(m.def.Properties)+1)
	for name, q := range m.def.Properties {
		def.Properties[name] = q
	}
	def.Properties[prop] = p
	return newModel(def)
}

// coerceWhere converts a where operand the way coerce converts a written
// value, so queries compare against the stored form.
func (m *model) coerceWhere(field string, v any) (any, error) {
	prop, ok := m.def.Properties[field]
	if !ok {
		return v, nil
	}
	cv, err := coerceValue(prop.Type, v)
	if err != nil {
		if prop.Type == TypeObjectID {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", filter.ErrInvalidFilter, err)
	}
	return cv, nil
}

// checkRequired reports the first required property missing from data.
func (m *model) checkRequired(data doc.Document) error {
	for _, name := range doc.SortedKeys(m.def.Properties) {
		if !m.def.Properties[name].Required {
			continue
		}
		if v, ok := data[name]; !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingProperty, name)
		}
	}
	return nil
}

// coerce returns a copy of data with declared property values converted
// to their stored form. "id" is dropped; the caller handles it.
func (m *model) coerce(data doc.Document) (doc.Document, error) {
	out := make(doc.Document, len(data))
	for key, v := range data {
		if key == doc.KeyORMID || key == doc.KeyID {
			continue
		}
		prop, ok := m.def.Properties[key]
		if !ok || v == nil {
			out[key] = v
			continue
		}
		cv, err := coerceValue(prop.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProperty, key, err)
		}
		out[key] = cv
	}
	return out, nil
}

func coerceValue(t PropertyType, v any) (any, error) {
	switch t {
	case TypeDate:
		switch val := v.(type) {
		case time.Time, *time.Time:
			return val, nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return nil, err
			}
			return ts, nil
		case int64:
			return time.UnixMilli(val).UTC(), nil
		case int:
			return time.UnixMilli(int64(val)).UTC(), nil
		case json.Number:
			ms, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("epoch milliseconds %s: %w", val, err)
			}
			return time.UnixMilli(ms).UTC(), nil
		}
		return nil, fmt.Errorf("cannot use %T as Date", v)

	case TypeNumber:
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		return v, nil

	case TypeBoolean:
		if s, ok := v.(string); ok {
			return strconv.ParseBool(s)
		}
		return v, nil

	case TypeObjectID:
		return doc.ToObjectID(v)

	default:
		return v, nil
	}
}
