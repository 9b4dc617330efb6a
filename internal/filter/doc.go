// Package filter translates the ORM's filter vocabulary into store queries.
//
// An ORM filter looks like:
//
//	{
//	  "where": {"age": {"between": [18, 65]}, "id": {"inq": ["...", "..."]}},
//	  "order": "age DESC, name",
//	  "limit": 10,
//	  "skip": 20
//	}
//
// Translate turns it into a Plan: a query.Doc for the collection plus the
// cursor configuration (sort, limit, skip, projection).
//
// WHERE OPERATORS:
//
//	between [a, b]  -> {$gte: a, $lte: b}
//	inq / nin       -> $in / $nin
//	gt gte lt lte   -> $gt $gte $lt $lte
//	neq / ne        -> $ne
//	like / nlike    -> $like / $nlike
//	regexp          -> $regex (+ $options for "/pattern/flags")
//	exists          -> $exists
//	and / or        -> $and / $or
//
// A plain value is equality. A nil value matches only an explicit null
// ({$type: 10}), not a missing field.
//
// like and nlike use SQL LIKE patterns (% and _) and ignore ASCII case:
// "Ada%" matches "ada lovelace". Non-ASCII letters compare exactly. Use
// regexp for case-sensitive matching.
//
// COERCION:
//
// The ORM key "id" is renamed to the store key "_id" and its values are
// coerced to doc.ObjectID. Every other operand of equality, between, inq,
// nin, gt, gte, lt, lte, neq and ne passes through the caller's Coercer, so
// a where clause sees the same stored form a write produces (a Date string
// becomes a time, a Number string becomes a number, a foreign key becomes
// an ObjectID).
package filter
