// Package store is the embedded document database: Mongo-style collections
// persisted in a single SQLite file.
//
// Every document is one row of the documents table:
//
//	collection TEXT, id TEXT, seq INTEGER, doc TEXT (canonical JSON)
//
// "_id" lives in the id column and is stripped from the stored JSON; it is
// put back on every document read. seq is a store-wide insertion counter
// and is the final ORDER BY key of every query, so results are
// deterministic regardless of how SQLite chooses to scan.
//
// Queries are query.Doc values (see package query) compiled by package
// querysql. Collections support Insert, Update, FindOne, Find (cursor with
// Sort/Limit/Skip/Project), Remove, Count, FindAndModify, EnsureIndex and
// Drop.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - A regexp(pattern, value) SQL function backs the REGEXP operator
package store
