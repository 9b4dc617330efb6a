// Package connector implements the ORM connector for the embedded document
// store.
//
// The ORM talks to a Connector in its own vocabulary: models with typed
// properties, documents keyed by "id", and filters with where/order/limit.
// Each operation coerces identifiers and property values, translates the
// filter (see package filter), and makes one call into a store.Collection.
//
// SHAPES:
//
// Documents are stored with "_id". Every document returned by the connector
// carries "id" instead, as the string form of the ObjectID.
//
// ERRORS:
//
// Every failure is returned as *OpError naming the operation and model.
// Store and filter errors stay reachable with errors.Is, e.g.
// errors.Is(err, store.ErrDuplicateID).
//
// LOGGING:
//
// With Settings.Debug, every operation is logged at debug level with the
// model and elapsed time. Failures are always logged at warn level.
package connector
