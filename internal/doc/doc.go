// Package doc defines the document and identifier types shared by the store,
// the query layers and the connector.
//
// This package imports nothing internal. Every other internal package builds
// on it, so it stays the foundational layer with no circular dependencies.
//
// Key constraints:
//   - Documents are map[string]any restricted to the JSON value space
//     (see Normalize)
//   - "_id" is the store key, "id" is the ORM key; the connector moves
//     values between the two
//   - Stored JSON is canonical: sorted keys, NFC strings, no HTML escaping
//   - Times are stored as fixed-width UTC strings so they sort lexically
package doc
