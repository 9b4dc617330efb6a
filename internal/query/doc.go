// Package query provides the native query language of the document store.
//
// Queries arrive as Mongo-style query documents (Doc) and are parsed into a
// small predicate IR. The IR is the boundary between the connector's filter
// translation and the SQL backend:
//
//	[ORM filter] -> [query.Doc] -> [query.Predicate] -> [SQL backend]
//
// SUPPORTED OPERATORS:
//
//	$eq $ne $gt $gte $lt $lte   comparisons
//	$in $nin                    set membership
//	$exists                     field presence
//	$type                       JSON type test ($type: 10 or "null" is null)
//	$regex (+ $options)         regular expression match
//	$like $nlike                SQL LIKE patterns (% and _), ASCII case-insensitive
//	$not                        negates an operator document
//	$and $or                    logical combinators (top level)
//
// A field bound to a plain value is equality; a field bound to a document
// whose keys all start with "$" is an operator document. Mixing operator
// and plain keys in one document is rejected.
//
// SEALED INTERFACES:
//
// Predicate is sealed with the marker method pattern so backends can use
// exhaustive type switches:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	...
//	}
//
// DETERMINISM:
//
// Parse walks map keys in sorted order, so the same Doc always yields the
// same predicate tree and therefore the same SQL text.
package query
