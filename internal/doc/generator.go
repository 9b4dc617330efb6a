package doc

import (
	"encoding/binary"
	"sync"
)

// IDGenerator produces ObjectIDs for documents inserted without an "_id".
type IDGenerator interface {
	Generate() ObjectID
}

// UUIDv7Generator generates time-sortable ObjectIDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7-backed ObjectID.
func (UUIDv7Generator) Generate() ObjectID {
	return NewObjectID()
}

// FixedGenerator returns predetermined ObjectIDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []ObjectID
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...ObjectID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, which catches tests that insert
// more documents than they planned for.
func (g *FixedGenerator) Generate() ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator returns ObjectIDs built from a counter:
// 00000000-0000-7000-8000-000000000001, ...-000000000002, and so on.
//
// Used by the scenario harness where traces must be reproducible.
type SequenceGenerator struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequenceGenerator creates a generator whose first ID ends in 1.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// Generate returns the next sequential ObjectID.
func (g *SequenceGenerator) Generate() ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return SequenceID(g.seq)
}

// SequenceID returns the ObjectID a SequenceGenerator yields for n.
func SequenceID(n uint64) ObjectID {
	var id ObjectID
	id[6] = 0x70 // version 7
	// High bit of byte 8 carries the RFC 4122 variant.
	binary.BigEndian.PutUint64(id[8:], n|0x8000000000000000)
	return id
}
