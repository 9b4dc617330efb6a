package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
	"github.com/roach88/tingo/internal/querysql"
)

// Collection is a named set of documents inside a Store.
//
// Collection handles are cheap and safe for concurrent use; SQLite
// serializes the writes.
type Collection struct {
	store *Store
	name  string
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Insert adds documents and returns them as stored, with "_id" set.
//
// Documents without "_id" get one from the store's IDGenerator. All
// documents are written in one transaction; a duplicate "_id" aborts the
// whole batch with ErrDuplicateID.
func (c *Collection) Insert(ctx context.Context, docs ...doc.Document) ([]doc.Document, error) {
	defer c.trace("insert", time.Now())

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert %s: begin tx: %w", c.name, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := c.ensureCollection(ctx, tx); err != nil {
		return nil, err
	}

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.name, err)
	}

	out := make([]doc.Document, 0, len(docs))
	for i, d := range docs {
		stored, err := c.insertOne(ctx, tx, d, seq+int64(i))
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert %s: commit: %w", c.name, err)
	}
	return out, nil
}

func (c *Collection) insertOne(ctx context.Context, tx *sql.Tx, d doc.Document, seq int64) (doc.Document, error) {
	var id doc.ObjectID
	if raw, ok := d[doc.KeyID]; ok && raw != nil {
		parsed, err := doc.ToObjectID(raw)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", c.name, err)
		}
		id = parsed
	} else {
		id = c.store.gen.Generate()
	}

	body, stored, err := encodeBody(d)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, seq, doc)
		VALUES (?, ?, ?, ?)
	`, c.name, id.String(), seq, body)
	if err != nil {
		return nil, translateError("insert "+c.name, err)
	}

	stored[doc.KeyID] = id.String()
	return stored, nil
}

// UpdateOption configures Update.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	multi  bool
	upsert bool
}

// WithMulti replaces every matching document instead of the first.
func WithMulti(multi bool) UpdateOption {
	return func(cfg *updateConfig) { cfg.multi = multi }
}

// WithUpsert inserts the replacement when nothing matches. The new
// document takes its "_id" from an equality on "_id" in the query, if any.
func WithUpsert(upsert bool) UpdateOption {
	return func(cfg *updateConfig) { cfg.upsert = upsert }
}

// UpdateResult reports what Update did.
type UpdateResult struct {
	Matched    int64
	UpsertedID string // empty unless an upsert inserted a document
}

// Update replaces matching documents with replacement (whole-document
// replace; use FindAndModify for $set). "_id" is preserved.
func (c *Collection) Update(ctx context.Context, q query.Doc, replacement doc.Document, opts ...UpdateOption) (UpdateResult, error) {
	defer c.trace("update", time.Now())

	cfg := updateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	pred, err := c.parse(q)
	if err != nil {
		return UpdateResult{}, err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: begin tx: %w", c.name, err)
	}
	defer tx.Rollback()

	findOpts := querysql.FindOptions{}
	if !cfg.multi {
		findOpts.Limit = 1
	}
	matches, err := c.selectDocs(ctx, tx, pred, findOpts)
	if err != nil {
		return UpdateResult{}, err
	}

	var result UpdateResult
	for _, existing := range matches {
		id := existing[doc.KeyID].(string)
		if err := checkImmutableID(id, replacement); err != nil {
			return UpdateResult{}, fmt.Errorf("update %s: %w", c.name, err)
		}
		body, _, err := encodeBody(replacement)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("update %s: %w", c.name, err)
		}
		if err := c.writeBody(ctx, tx, id, body); err != nil {
			return UpdateResult{}, err
		}
		result.Matched++
	}

	if result.Matched == 0 && cfg.upsert {
		d := doc.Clone(replacement)
		if d == nil {
			d = doc.Document{}
		}
		if id, ok := q[doc.KeyID]; ok {
			switch id.(type) {
			case query.Doc, map[string]any:
			default:
				d[doc.KeyID] = id
			}
		}
		if err := c.ensureCollection(ctx, tx); err != nil {
			return UpdateResult{}, err
		}
		seq, err := nextSeq(ctx, tx)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("update %s: %w", c.name, err)
		}
		stored, err := c.insertOne(ctx, tx, d, seq)
		if err != nil {
			return UpdateResult{}, err
		}
		result.UpsertedID = stored[doc.KeyID].(string)
	}

	if err := tx.Commit(); err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: commit: %w", c.name, err)
	}
	return result, nil
}

// FindOne returns the first matching document in natural order.
// Returns ErrNotFound if nothing matches.
func (c *Collection) FindOne(ctx context.Context, q query.Doc) (doc.Document, error) {
	defer c.trace("findOne", time.Now())

	pred, err := c.parse(q)
	if err != nil {
		return nil, err
	}
	docs, err := c.selectDocs(ctx, c.store.db, pred, querysql.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find returns a cursor over matching documents. The query is parsed when
// the cursor is read.
func (c *Collection) Find(q query.Doc) *Cursor {
	return &Cursor{coll: c, query: q}
}

// Remove deletes every matching document and returns how many were removed.
func (c *Collection) Remove(ctx context.Context, q query.Doc) (int64, error) {
	defer c.trace("remove", time.Now())

	pred, err := c.parse(q)
	if err != nil {
		return 0, err
	}
	stmt, args, err := c.store.compiler.Delete(c.name, pred)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", c.name, err)
	}
	c.logSQL(stmt, args)

	res, err := c.store.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove %s: rows affected: %w", c.name, err)
	}
	return n, nil
}

// Count returns the number of matching documents.
func (c *Collection) Count(ctx context.Context, q query.Doc) (int64, error) {
	defer c.trace("count", time.Now())

	pred, err := c.parse(q)
	if err != nil {
		return 0, err
	}
	return c.count(ctx, pred)
}

func (c *Collection) count(ctx context.Context, pred query.Predicate) (int64, error) {
	stmt, args, err := c.store.compiler.Count(c.name, pred)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	c.logSQL(stmt, args)

	var n int64
	if err := c.store.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// ModifyOptions configures FindAndModify.
type ModifyOptions struct {
	// Sort picks which document is modified when several match.
	Sort []query.SortKey
	// ReturnNew returns the document after the update instead of before.
	ReturnNew bool
}

// FindAndModify atomically updates the first matching document.
//
// update is either an operator document ($set, $unset, $inc) or a
// replacement. Returns ErrNotFound if nothing matches.
func (c *Collection) FindAndModify(ctx context.Context, q query.Doc, update query.Doc, opts ModifyOptions) (doc.Document, error) {
	defer c.trace("findAndModify", time.Now())

	pred, err := c.parse(q)
	if err != nil {
		return nil, err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("findAndModify %s: begin tx: %w", c.name, err)
	}
	defer tx.Rollback()

	matches, err := c.selectDocs(ctx, tx, pred, querysql.FindOptions{Sort: opts.Sort, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	before := matches[0]
	id := before[doc.KeyID].(string)

	after, err := applyUpdate(before, update)
	if err != nil {
		return nil, fmt.Errorf("findAndModify %s: %w", c.name, err)
	}
	body, stored, err := encodeBody(after)
	if err != nil {
		return nil, fmt.Errorf("findAndModify %s: %w", c.name, err)
	}
	if err := c.writeBody(ctx, tx, id, body); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("findAndModify %s: commit: %w", c.name, err)
	}

	if opts.ReturnNew {
		stored[doc.KeyID] = id
		return stored, nil
	}
	return before, nil
}

// EnsureIndex creates an expression index on a document field. With
// unique set, writes that duplicate a non-null value fail with
// ErrUniqueViolation. Calling it again for the same field is a no-op.
func (c *Collection) EnsureIndex(ctx context.Context, field string, unique bool) error {
	path, err := querysql.JSONPath(field)
	if err != nil {
		return fmt.Errorf("ensure index %s.%s: %w", c.name, field, err)
	}
	name := indexName(c.name, field)

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure index %s.%s: begin tx: %w", c.name, field, err)
	}
	defer tx.Rollback()

	if err := c.ensureCollection(ctx, tx); err != nil {
		return err
	}

	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	// Partial on the collection so uniqueness is scoped to it.
	stmt := fmt.Sprintf(`CREATE %s IF NOT EXISTS "%s" ON %s(json_extract(doc, %s)) WHERE collection = %s`,
		kind, name, querysql.DocumentsTable, quoteLiteral(path), quoteLiteral(c.name))
	c.logSQL(stmt, nil)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return translateError(fmt.Sprintf("ensure index %s.%s", c.name, field), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO field_indexes (collection, field, name, is_unique)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, field) DO NOTHING
	`, c.name, field, name, unique)
	if err != nil {
		return fmt.Errorf("ensure index %s.%s: register: %w", c.name, field, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure index %s.%s: commit: %w", c.name, field, err)
	}
	return nil
}

// IndexInfo describes a field index.
type IndexInfo struct {
	Field  string
	Name   string
	Unique bool
}

// Indexes lists the field indexes of the collection ordered by field.
func (c *Collection) Indexes(ctx context.Context) ([]IndexInfo, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT field, name, is_unique FROM field_indexes
		WHERE collection = ?
		ORDER BY field COLLATE BINARY ASC
	`, c.name)
	if err != nil {
		return nil, fmt.Errorf("indexes %s: %w", c.name, err)
	}
	defer rows.Close()

	infos := []IndexInfo{}
	for rows.Next() {
		var info IndexInfo
		if err := rows.Scan(&info.Field, &info.Name, &info.Unique); err != nil {
			return nil, fmt.Errorf("indexes %s: %w", c.name, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes %s: %w", c.name, err)
	}
	return infos, nil
}

// Drop removes the collection, its documents and its indexes.
func (c *Collection) Drop(ctx context.Context) error {
	indexes, err := c.Indexes(ctx)
	if err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drop %s: begin tx: %w", c.name, err)
	}
	defer tx.Rollback()

	for _, idx := range indexes {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS "%s"`, idx.Name)); err != nil {
			return fmt.Errorf("drop %s: index %s: %w", c.name, idx.Name, err)
		}
	}
	// documents and field_indexes rows cascade
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, c.name); err != nil {
		return fmt.Errorf("drop %s: %w", c.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop %s: commit: %w", c.name, err)
	}
	return nil
}

func (c *Collection) parse(q query.Doc) (query.Predicate, error) {
	pred, err := query.Parse(q)
	if err != nil {
		return nil, fmt.Errorf("%s: parse query: %w", c.name, err)
	}
	if c.store.log.Debug().Enabled() {
		if v := query.Validate(pred); !v.Indexable {
			c.store.log.Debug().Str("collection", c.name).Strs("warnings", v.Warnings).Msg("query scans collection")
		}
	}
	return pred, nil
}

func (c *Collection) selectDocs(ctx context.Context, q querier, pred query.Predicate, opts querysql.FindOptions) ([]doc.Document, error) {
	stmt, args, err := c.store.compiler.Select(c.name, pred, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	c.logSQL(stmt, args)

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := []doc.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("find %s: scan: %w", c.name, err)
		}
		d, err := doc.UnmarshalDocument([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("find %s: document %s: %w", c.name, id, err)
		}
		d[doc.KeyID] = id
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *Collection) writeBody(ctx context.Context, tx *sql.Tx, id, body string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE documents SET doc = ?
		WHERE collection = ? AND id = ?
	`, body, c.name, id)
	if err != nil {
		return translateError("update "+c.name, err)
	}
	return nil
}

func (c *Collection) ensureCollection(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name, created_seq)
		VALUES (?, COALESCE((SELECT MAX(created_seq) FROM collections), 0) + 1)
		ON CONFLICT(name) DO NOTHING
	`, c.name)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) logSQL(stmt string, args []any) {
	c.store.log.Trace().Str("collection", c.name).Str("sql", stmt).Interface("args", args).Msg("exec")
}

func (c *Collection) trace(op string, start time.Time) {
	c.store.log.Trace().Str("collection", c.name).Str("op", op).Dur("elapsed", time.Since(start)).Msg("done")
}

// nextSeq returns the next store-wide insertion sequence number.
func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM documents`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

// encodeBody serializes d without "_id". It returns the stored JSON and
// the document as it will read back.
func encodeBody(d doc.Document) (string, doc.Document, error) {
	body := make(doc.Document, len(d))
	for k, v := range d {
		if k == doc.KeyID {
			continue
		}
		body[k] = v
	}
	data, err := doc.MarshalCanonical(body)
	if err != nil {
		return "", nil, err
	}
	stored, err := doc.UnmarshalDocument(data)
	if err != nil {
		return "", nil, err
	}
	return string(data), stored, nil
}

func checkImmutableID(id string, d doc.Document) error {
	raw, ok := d[doc.KeyID]
	if !ok || raw == nil {
		return nil
	}
	other, err := doc.ToObjectID(raw)
	if err != nil {
		return err
	}
	if other.String() != id {
		return ErrImmutableID
	}
	return nil
}

// translateError maps SQLite constraint failures to store errors.
func translateError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", op, ErrDuplicateID)
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%s: %w: %v", op, ErrUniqueViolation, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// indexName derives a stable SQL identifier for a field index.
// Format: fidx_ + hex(SHA256(collection + 0x00 + field))[:16]
// The null separator keeps ("ab","c") and ("a","bc") apart.
func indexName(collection, field string) string {
	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte{0x00})
	h.Write([]byte(field))
	return "fidx_" + hex.EncodeToString(h.Sum(nil))[:16]
}

func quoteLiteral(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
