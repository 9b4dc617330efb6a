package connector

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/filter"
	"github.com/roach88/tingo/internal/query"
	"github.com/roach88/tingo/internal/store"
)

// Create inserts data and returns the new document's id.
//
// A non-null "id" in data becomes the document's _id; a null or missing
// one is generated.
func (c *Connector) Create(ctx context.Context, modelName string, data doc.Document) (id doc.ObjectID, err error) {
	defer c.finish("create", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return doc.NilObjectID, err
	}
	stored, err := c.create(ctx, m, coll, data)
	if err != nil {
		return doc.NilObjectID, err
	}
	return doc.ParseObjectID(stored[doc.KeyORMID].(string))
}

func (c *Connector) create(ctx context.Context, m *model, coll *store.Collection, data doc.Document) (doc.Document, error) {
	if err := m.checkRequired(data); err != nil {
		return nil, err
	}
	body, err := m.coerce(data)
	if err != nil {
		return nil, err
	}
	if raw := data[doc.KeyORMID]; raw != nil {
		id, err := doc.ToObjectID(raw)
		if err != nil {
			return nil, err
		}
		body[doc.KeyID] = id
	}

	stored, err := coll.Insert(ctx, body)
	if err != nil {
		return nil, err
	}
	return toORM(stored[0]), nil
}

// Save replaces the document identified by data["id"] with data.
// Saving a document that does not exist is a no-op.
func (c *Connector) Save(ctx context.Context, modelName string, data doc.Document) (err error) {
	defer c.finish("save", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return err
	}
	q, err := idQuery(data[doc.KeyORMID])
	if err != nil {
		return err
	}
	body, err := m.coerce(data)
	if err != nil {
		return err
	}

	res, err := coll.Update(ctx, q, body)
	if err != nil {
		return err
	}
	if c.debug {
		c.log.Debug().Str("model", modelName).Int64("matched", res.Matched).Msg("save")
	}
	return nil
}

// Exists reports whether a document with id exists.
func (c *Connector) Exists(ctx context.Context, modelName string, id any) (ok bool, err error) {
	defer c.finish("exists", modelName, time.Now(), &err)

	_, coll, err := c.lookup(modelName)
	if err != nil {
		return false, err
	}
	q, err := idQuery(id)
	if err != nil {
		return false, err
	}
	n, err := coll.Count(ctx, q)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Find returns the document with id, or nil if there is none.
func (c *Connector) Find(ctx context.Context, modelName string, id any) (d doc.Document, err error) {
	defer c.finish("find", modelName, time.Now(), &err)

	_, coll, err := c.lookup(modelName)
	if err != nil {
		return nil, err
	}
	return c.find(ctx, coll, id)
}

func (c *Connector) find(ctx context.Context, coll *store.Collection, id any) (doc.Document, error) {
	q, err := idQuery(id)
	if err != nil {
		return nil, err
	}
	found, err := coll.FindOne(ctx, q)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toORM(found), nil
}

// UpdateOrCreate updates the document identified by data["id"] with the
// other fields of data, or creates it when it does not exist. Data without
// an id is always created. Returns the document as stored.
func (c *Connector) UpdateOrCreate(ctx context.Context, modelName string, data doc.Document) (d doc.Document, err error) {
	defer c.finish("updateOrCreate", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return nil, err
	}

	id := data[doc.KeyORMID]
	if id == nil {
		return c.create(ctx, m, coll, data)
	}

	existing, err := c.find(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return c.updateAttributes(ctx, m, coll, id, data)
	}
	return c.create(ctx, m, coll, data)
}

// Destroy removes the document with id. Removing a missing document is
// not an error.
func (c *Connector) Destroy(ctx context.Context, modelName string, id any) (err error) {
	defer c.finish("destroy", modelName, time.Now(), &err)

	_, coll, err := c.lookup(modelName)
	if err != nil {
		return err
	}
	q, err := idQuery(id)
	if err != nil {
		return err
	}
	_, err = coll.Remove(ctx, q)
	return err
}

// All returns the documents selected by f.
//
// When f.Include is set, the model's Includer loads related documents;
// models without one fail with ErrIncludeUnsupported.
func (c *Connector) All(ctx context.Context, modelName string, f filter.Filter) (docs []doc.Document, err error) {
	defer c.finish("all", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return nil, err
	}
	plan, err := filter.Translate(f, m.coerceWhere)
	if err != nil {
		return nil, err
	}
	if plan.Include != nil && m.def.Includer == nil {
		return nil, ErrIncludeUnsupported
	}

	cur := coll.Find(plan.Query).Sort(plan.Sort...).Limit(plan.Limit).Skip(plan.Skip)
	if plan.Projection != nil {
		cur = cur.Project(plan.Projection)
	}
	found, err := cur.All(ctx)
	if err != nil {
		return nil, err
	}

	docs = make([]doc.Document, len(found))
	for i, d := range found {
		docs[i] = toORM(d)
	}
	if plan.Include != nil {
		return m.def.Includer.Include(ctx, docs, plan.Include)
	}
	return docs, nil
}

// DestroyAll removes the documents matching where (all of them when where
// is empty) and returns how many were removed.
func (c *Connector) DestroyAll(ctx context.Context, modelName string, where map[string]any) (n int64, err error) {
	defer c.finish("destroyAll", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return 0, err
	}
	q, err := filter.TranslateWhere(where, m.coerceWhere)
	if err != nil {
		return 0, err
	}
	return coll.Remove(ctx, q)
}

// Count returns the number of documents matching where.
func (c *Connector) Count(ctx context.Context, modelName string, where map[string]any) (n int64, err error) {
	defer c.finish("count", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return 0, err
	}
	q, err := filter.TranslateWhere(where, m.coerceWhere)
	if err != nil {
		return 0, err
	}
	return coll.Count(ctx, q)
}

// UpdateAttributes sets the fields of data on the document with id and
// returns the updated document. Fields not in data are kept.
//
// Returns store.ErrNotFound (wrapped) when there is no such document.
func (c *Connector) UpdateAttributes(ctx context.Context, modelName string, id any, data doc.Document) (d doc.Document, err error) {
	defer c.finish("updateAttributes", modelName, time.Now(), &err)

	m, coll, err := c.lookup(modelName)
	if err != nil {
		return nil, err
	}
	return c.updateAttributes(ctx, m, coll, id, data)
}

func (c *Connector) updateAttributes(ctx context.Context, m *model, coll *store.Collection, id any, data doc.Document) (doc.Document, error) {
	q, err := idQuery(id)
	if err != nil {
		return nil, err
	}
	body, err := m.coerce(data)
	if err != nil {
		return nil, err
	}

	updated, err := coll.FindAndModify(ctx, q, query.Doc{"$set": map[string]any(body)}, store.ModifyOptions{
		Sort:      []query.SortKey{{Field: doc.KeyID}},
		ReturnNew: true,
	})
	if err != nil {
		return nil, err
	}
	return toORM(updated), nil
}

// idQuery builds {_id: <id>} from an ORM id value.
func idQuery(id any) (query.Doc, error) {
	if id == nil {
		return nil, ErrMissingID
	}
	oid, err := doc.ToObjectID(id)
	if err != nil {
		return nil, err
	}
	return query.Doc{doc.KeyID: oid.String()}, nil
}

// toORM moves "_id" to "id".
func toORM(d doc.Document) doc.Document {
	if id, ok := d[doc.KeyID]; ok {
		delete(d, doc.KeyID)
		d[doc.KeyORMID] = id
	}
	return d
}
