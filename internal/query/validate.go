package query

import "fmt"

// ValidationResult describes how well a query can use expression indexes.
type ValidationResult struct {
	// Indexable is true when every predicate is a positive comparison or
	// membership test, which the store can answer from a field index.
	Indexable bool

	// Warnings lists the constructs that force a collection scan.
	Warnings []string
}

// Validate inspects a predicate tree without side effects.
//
// Non-indexable queries still execute correctly; the warnings are surfaced
// in debug logs so slow filters are easy to spot.
func Validate(p Predicate) ValidationResult {
	v := &validator{warnings: []string{}}
	v.walk(p)

	return ValidationResult{
		Indexable: len(v.warnings) == 0,
		Warnings:  v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) walk(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Compare:
		if pred.Op == OpNe {
			v.addWarning("field %q: $ne scans the collection", pred.Field)
		}
	case In:
		if pred.Negate {
			v.addWarning("field %q: $nin scans the collection", pred.Field)
		}
	case Exists, TypeIs:
		// answered from the stored JSON directly
	case Match:
		if pred.Kind == MatchRegex {
			v.addWarning("field %q: $regex scans the collection", pred.Field)
		} else if pred.Negate {
			v.addWarning("field %q: $nlike scans the collection", pred.Field)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.walk(sub)
		}
	case Or:
		if len(pred.Predicates) > 1 {
			v.addWarning("$or with %d branches scans the collection", len(pred.Predicates))
		}
		for _, sub := range pred.Predicates {
			v.walk(sub)
		}
	case Not:
		v.addWarning("$not scans the collection")
		v.walk(pred.Predicate)
	default:
		v.addWarning("unknown predicate type %T", p)
	}
}
