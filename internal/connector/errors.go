package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotDefined is returned for operations on a model that was
	// never passed to Define.
	ErrModelNotDefined = errors.New("model not defined")

	// ErrIncludeUnsupported is returned when a filter asks for related
	// models and the model has no Includer.
	ErrIncludeUnsupported = errors.New("include not supported for model")

	// ErrMissingID is returned by operations that need an id when the
	// data or argument has none.
	ErrMissingID = errors.New("missing id")

	// ErrMissingProperty is returned by Create when a required property
	// is absent or null.
	ErrMissingProperty = errors.New("missing required property")

	// ErrInvalidProperty is returned when a property value cannot be
	// coerced to its declared type.
	ErrInvalidProperty = errors.New("invalid property value")

	// ErrDisconnected is returned by operations after Disconnect.
	ErrDisconnected = errors.New("connector is disconnected")
)

// OpError records a failed connector operation.
type OpError struct {
	// Op is the operation name, e.g. "create" or "all".
	Op string

	// Model is the model the operation ran against. Empty for
	// connector-wide operations.
	Model string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("tingodb: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tingodb: %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsNotDefined reports whether err is caused by an undefined model.
// Uses errors.Is to handle wrapped errors.
func IsNotDefined(err error) bool {
	return errors.Is(err, ErrModelNotDefined)
}
