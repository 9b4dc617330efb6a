package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/query"
	"github.com/roach88/tingo/internal/querysql"
)

// Cursor is a lazily evaluated find. Configure it with the chainable
// setters, then read it with All or Count.
type Cursor struct {
	coll       *Collection
	query      query.Doc
	opts       querysql.FindOptions
	projection map[string]bool
}

// Sort sets the sort keys. Ties are broken by insertion order.
func (cur *Cursor) Sort(keys ...query.SortKey) *Cursor {
	cur.opts.Sort = append([]query.SortKey(nil), keys...)
	return cur
}

// Limit caps the number of documents returned. Zero means no limit.
func (cur *Cursor) Limit(n int64) *Cursor {
	if n < 0 {
		n = -n
	}
	cur.opts.Limit = n
	return cur
}

// Skip drops the first n matching documents.
func (cur *Cursor) Skip(n int64) *Cursor {
	if n < 0 {
		n = 0
	}
	cur.opts.Skip = n
	return cur
}

// Project keeps (true) or drops (false) fields from every result.
// Inclusion and exclusion cannot be mixed, except for "_id".
func (cur *Cursor) Project(fields map[string]bool) *Cursor {
	cur.projection = fields
	return cur
}

// All runs the query and returns every document in order.
func (cur *Cursor) All(ctx context.Context) ([]doc.Document, error) {
	c := cur.coll
	defer c.trace("find", time.Now())

	proj, err := newProjection(cur.projection)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	pred, err := c.parse(cur.query)
	if err != nil {
		return nil, err
	}
	docs, err := c.selectDocs(ctx, c.store.db, pred, cur.opts)
	if err != nil {
		return nil, err
	}
	if proj != nil {
		for i, d := range docs {
			if docs[i], err = proj.apply(d); err != nil {
				return nil, fmt.Errorf("find %s: %w", c.name, err)
			}
		}
	}
	return docs, nil
}

// Count returns the number of matching documents, ignoring Limit and Skip.
func (cur *Cursor) Count(ctx context.Context) (int64, error) {
	pred, err := cur.coll.parse(cur.query)
	if err != nil {
		return 0, err
	}
	return cur.coll.count(ctx, pred)
}

type projection struct {
	include bool
	fields  []string
	dropID  bool
}

func newProjection(fields map[string]bool) (*projection, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	p := &projection{}
	seenInclude, seenExclude := false, false
	for _, name := range doc.SortedKeys(fields) {
		keep := fields[name]
		if name == doc.KeyID {
			p.dropID = !keep
			continue
		}
		if keep {
			seenInclude = true
		} else {
			seenExclude = true
		}
		if !covered(p.fields, name) {
			p.fields = append(p.fields, name)
		}
	}
	if seenInclude && seenExclude {
		return nil, ErrInvalidProjection
	}
	p.include = seenInclude
	return p, nil
}

// covered reports whether path lies under one of fields. fields is sorted,
// so a prefix always precedes the paths beneath it.
func covered(fields []string, path string) bool {
	for _, f := range fields {
		if strings.HasPrefix(path, f+".") {
			return true
		}
	}
	return false
}

func (p *projection) apply(d doc.Document) (doc.Document, error) {
	var out doc.Document
	if p.include {
		out = doc.Document{}
		for _, name := range p.fields {
			if v, ok := d.Get(name); ok {
				if err := setPath(out, name, v); err != nil {
					return nil, err
				}
			}
		}
		if id, ok := d[doc.KeyID]; ok {
			out[doc.KeyID] = id
		}
	} else {
		out = d
		for _, name := range p.fields {
			unsetPath(out, name)
		}
	}
	if p.dropID {
		delete(out, doc.KeyID)
	}
	return out, nil
}
