// Package testutil holds id generators for tests that need to control
// which ids the store assigns.
package testutil

import "github.com/roach88/tingo/internal/doc"

// FixedIDGenerator generates the same ObjectID every time.
//
// Unlike doc.SequenceGenerator which returns ids in sequence, this
// generator makes every generated id collide, so the second insert of a
// document without an id fails with a duplicate id error.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id doc.ObjectID
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is the nil ObjectID, Generate returns doc.SequenceID(1).
func NewFixedIDGenerator(id doc.ObjectID) *FixedIDGenerator {
	if id.IsZero() {
		id = doc.SequenceID(1)
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements doc.IDGenerator.
func (g *FixedIDGenerator) Generate() doc.ObjectID {
	return g.id
}
