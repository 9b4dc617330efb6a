package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tingo/internal/doc"
)

// createTestStore opens a file-backed store in a temp dir. Inserted
// documents get ids from SequenceID(1), SequenceID(2), ...
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(&doc.SequenceGenerator{}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedCollection inserts docs into name and fails the test on error.
func seedCollection(t *testing.T, s *Store, name string, docs ...doc.Document) []doc.Document {
	t.Helper()
	out, err := s.Collection(name).Insert(context.Background(), docs...)
	if err != nil {
		t.Fatalf("Insert(%s) failed: %v", name, err)
	}
	return out
}
