package harness

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/tingo/internal/connector"
	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
	"github.com/roach88/tingo/internal/query"
	"github.com/roach88/tingo/internal/store"
)

// errorKinds maps the names usable in expect.error to sentinel errors.
var errorKinds = map[string]error{
	"not_found":           store.ErrNotFound,
	"duplicate_id":        store.ErrDuplicateID,
	"unique_violation":    store.ErrUniqueViolation,
	"immutable_id":        store.ErrImmutableID,
	"model_not_defined":   connector.ErrModelNotDefined,
	"include_unsupported": connector.ErrIncludeUnsupported,
	"missing_id":          connector.ErrMissingID,
	"missing_property":    connector.ErrMissingProperty,
	"invalid_property":    connector.ErrInvalidProperty,
	"unknown_operator":    query.ErrUnknownOperator,
	"invalid_query":       query.ErrInvalidQuery,
	"invalid_filter":      filter.ErrInvalidFilter,
	"invalid_object_id":   doc.ErrInvalidObjectID,
}

// AssertionError is returned when a step does not meet its expect clause.
type AssertionError struct {
	Step     int          // Step number, 1-indexed
	Type     string       // What was checked, e.g. "error" or "count"
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Steps executed so far
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "step %d: assertion failed: %s\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTrace:\n")
	for _, event := range e.Trace {
		if event.Error != "" {
			fmt.Fprintf(&buf, "  [%d] %s %s: error %s\n", event.Step, event.Op, event.Model, event.Error)
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %s %s: %v\n", event.Step, event.Op, event.Model, event.Result)
	}

	return buf.String()
}

// outcome is what a step returned, before it is flattened into the trace.
type outcome struct {
	doc    doc.Document
	docs   []doc.Document
	count  int64
	exists bool
	err    error
}

// checkStep evaluates a step's expect clause against its outcome.
// A step without an expect clause must succeed.
func checkStep(num int, step Step, out outcome, trace []TraceEvent) error {
	fail := func(typ, expected, actual string) error {
		return &AssertionError{Step: num, Type: typ, Expected: expected, Actual: actual, Trace: trace}
	}

	e := step.Expect
	if e == nil || e.Error == "" {
		if out.err != nil {
			return fail("error", "success", out.err.Error())
		}
	}
	if e == nil {
		return nil
	}

	if e.Error != "" {
		if out.err == nil {
			return fail("error", e.Error, "success")
		}
		if !matchError(out.err, e.Error) {
			return fail("error", e.Error, out.err.Error())
		}
		return nil
	}

	if e.Count != nil {
		got := out.count
		if step.Op == OpAll {
			got = int64(len(out.docs))
		}
		if got != *e.Count {
			return fail("count", fmt.Sprint(*e.Count), fmt.Sprint(got))
		}
	}

	if e.Exists != nil && out.exists != *e.Exists {
		return fail("exists", fmt.Sprint(*e.Exists), fmt.Sprint(out.exists))
	}

	if e.Null && out.doc != nil {
		return fail("null", "no document", fmt.Sprint(out.doc))
	}

	if e.Result != nil {
		if out.doc == nil {
			return fail("result", fmt.Sprint(e.Result), "no document")
		}
		if !matchArgs(map[string]any(out.doc), e.Result) {
			return fail("result", fmt.Sprintf("subset %v", e.Result), fmt.Sprint(out.doc))
		}
	}

	if e.Results != nil {
		if len(out.docs) != len(e.Results) {
			return fail("results", fmt.Sprintf("%d documents", len(e.Results)), fmt.Sprintf("%d documents", len(out.docs)))
		}
		for i, want := range e.Results {
			if !matchArgs(map[string]any(out.docs[i]), want) {
				return fail("results", fmt.Sprintf("[%d] subset %v", i, want), fmt.Sprint(out.docs[i]))
			}
		}
	}

	return nil
}

// matchError reports whether err is the named kind, or else whether its
// message contains want.
func matchError(err error, want string) bool {
	if sentinel, ok := errorKinds[want]; ok {
		return errors.Is(err, sentinel)
	}
	return strings.Contains(err.Error(), want)
}

// matchArgs checks if actual contains all expected keys (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after normalizing both, so YAML ints
// match stored int64s and nested maps compare structurally.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	na, err := doc.Normalize(actual)
	if err != nil {
		return false
	}
	ne, err := doc.Normalize(expected)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, ne)
}
