package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFilter is returned for filters with malformed clauses.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is the ORM's query description for All, Count and DestroyAll.
type Filter struct {
	Where   map[string]any `json:"where,omitempty" yaml:"where,omitempty"`
	Order   Order          `json:"order,omitempty" yaml:"order,omitempty"`
	Limit   int64          `json:"limit,omitempty" yaml:"limit,omitempty"`
	Skip    int64          `json:"skip,omitempty" yaml:"skip,omitempty"`
	Offset  int64          `json:"offset,omitempty" yaml:"offset,omitempty"`
	Fields  Fields         `json:"fields,omitempty" yaml:"fields,omitempty"`
	Include any            `json:"include,omitempty" yaml:"include,omitempty"`
}

// ParseJSON decodes a filter. Numbers in where clauses keep their exact
// form (json.Number) until the query is normalized.
func ParseJSON(data []byte) (Filter, error) {
	var f Filter
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return f, nil
}

// ParseWhereJSON decodes a bare where object, as passed to Count and
// DestroyAll.
func ParseWhereJSON(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var where map[string]any
	if err := dec.Decode(&where); err != nil {
		return nil, fmt.Errorf("%w: where: %v", ErrInvalidFilter, err)
	}
	return where, nil
}

// Order lists sort clauses such as "name" or "age DESC".
//
// It decodes from a single comma-separated string or from a list.
type Order []string

// UnmarshalJSON implements json.Unmarshaler.
func (o *Order) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = splitOrder(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("order: expected string or list of strings")
	}
	*o = list
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Order) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*o = splitOrder(value.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("order: %w", err)
		}
		*o = list
		return nil
	default:
		return fmt.Errorf("order: expected string or list of strings at line %d", value.Line)
	}
}

func splitOrder(s string) Order {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Fields selects which properties are returned: {"name": true} or
// ["name", "email"].
type Fields map[string]bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = fieldsFromList(list)
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.New("fields: expected object of booleans or list of strings")
	}
	*f = m
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Fields) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		*f = fieldsFromList(list)
		return nil
	}
	var m map[string]bool
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	*f = m
	return nil
}

func fieldsFromList(list []string) Fields {
	out := make(Fields, len(list))
	for _, name := range list {
		out[name] = true
	}
	return out
}
