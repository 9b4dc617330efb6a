package query

import "errors"

// ErrUnknownOperator is returned for "$"-prefixed keys the store does not
// understand.
var ErrUnknownOperator = errors.New("unknown query operator")

// ErrInvalidQuery is returned when an operator has an argument of the wrong
// shape.
var ErrInvalidQuery = errors.New("invalid query")

// Doc is a Mongo-style query document, e.g.
//
//	Doc{"age": Doc{"$gte": 18}, "name": "Ray"}
type Doc map[string]any

// Predicate is a node in the parsed query tree.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
)

// Compare is a field-vs-literal comparison.
//
// Value is already normalized (see doc.Normalize). An OpEq against nil
// matches explicit null and missing fields; OpNe against nil matches fields
// that are present and not null.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// In tests membership of a field value in Values ($in), or the negation
// ($nin). Array fields match when any element is in Values.
type In struct {
	Field  string
	Values []any
	Negate bool
}

func (In) predicateNode() {}

// Exists tests whether a field is present in the document.
type Exists struct {
	Field  string
	Exists bool
}

func (Exists) predicateNode() {}

// JSONType names a stored JSON type.
type JSONType string

// Stored JSON types as reported by the store.
const (
	TypeNull   JSONType = "null"
	TypeString JSONType = "string"
	TypeNumber JSONType = "number"
	TypeBool   JSONType = "bool"
	TypeArray  JSONType = "array"
	TypeObject JSONType = "object"
)

// TypeIs tests the JSON type of a field value.
type TypeIs struct {
	Field string
	Type  JSONType
}

func (TypeIs) predicateNode() {}

// MatchKind selects the pattern language of a Match.
type MatchKind int

const (
	// MatchRegex uses Go regexp syntax.
	MatchRegex MatchKind = iota
	// MatchLike uses SQL LIKE wildcards (% and _). ASCII letters match
	// regardless of case.
	MatchLike
)

// Match tests a string field against a pattern.
type Match struct {
	Field   string
	Pattern string
	Kind    MatchKind
	Negate  bool
}

func (Match) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// SortKey orders query results by one field.
type SortKey struct {
	Field string
	Desc  bool
}
