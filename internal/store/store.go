package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (documents, collections)
// 1 - Added field_indexes registry
const currentSchemaVersion = 1

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store errors.
var (
	// ErrNotFound is returned by FindOne and FindAndModify when nothing matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateID is returned when an insert reuses an existing _id.
	ErrDuplicateID = errors.New("duplicate _id")
	// ErrUniqueViolation is returned when a write breaks a unique field index.
	ErrUniqueViolation = errors.New("unique index violation")
	// ErrImmutableID is returned when an update tries to change _id.
	ErrImmutableID = errors.New("_id cannot be modified")
	// ErrInvalidProjection is returned when a projection mixes inclusion
	// and exclusion.
	ErrInvalidProjection = errors.New("invalid projection")
)

// Store is an embedded document database backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	gen      doc.IDGenerator
	compiler *querysql.Compiler
	log      zerolog.Logger

	mu          sync.Mutex
	collections map[string]*Collection
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator used for documents inserted without _id.
func WithIDGenerator(gen doc.IDGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

// WithLogger sets the logger. Statements are logged at trace level.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithInMemory ignores the path and opens an in-memory database.
func WithInMemory() Option {
	return func(s *Store) { s.path = MemoryPath }
}

// Open creates or opens a document database at path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times on one file.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:        path,
		gen:         doc.UUIDv7Generator{},
		compiler:    querysql.NewCompiler(),
		log:         zerolog.Nop(),
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.path == "" {
		return nil, fmt.Errorf("open store: empty path")
	}

	registerDriver()

	db, err := sql.Open(driverName, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// exists per connection, so the pool holds exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.db = db
	s.log.Debug().Str("path", s.path).Msg("store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Collection methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Collection returns the named collection, creating the handle on first
// use. The collection itself is created lazily by the first write.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c
	}
	c := &Collection{store: s, name: name}
	s.collections[name] = c
	return c
}

// Collections lists the collections that hold or have held documents.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the field index registry for databases created before
// EnsureIndex existed. New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS field_indexes (
			collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			field TEXT NOT NULL,
			name TEXT NOT NULL UNIQUE,
			is_unique INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (collection, field)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	q := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(q).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
