package router

import (
	"context"
	"fmt"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/conn"
	"github.com/solatis/mongofront/crud"
)

// runCommand dispatches a resolved command name against db, falling
// through to the admin surface for anything that isn't a collection-scoped
// CRUD verb.
func (r *Router) runCommand(ctx context.Context, c *conn.Conn, db, name string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	switch name {
	case "insert":
		return r.cmdInsert(ctx, db, cmd)
	case "find":
		return r.cmdFind(ctx, db, cmd, c)
	case "update":
		return r.cmdUpdate(ctx, db, cmd)
	case "delete":
		return r.cmdDelete(ctx, db, cmd)
	case "aggregate":
		return r.cmdAggregate(ctx, db, cmd)
	case "count":
		return r.cmdCount(ctx, db, cmd)
	case "createIndexes":
		return r.cmdCreateIndexes(ctx, db, cmd)
	case "listIndexes":
		return r.cmdListIndexes(ctx, db, cmd)
	case "listCollections":
		return r.cmdListCollections(ctx, db)
	default:
		return r.adminCommand(ctx, name, cmd)
	}
}

func stringField(cmd *bsondoc.Document, key string) string {
	v, ok := cmd.Get(key)
	s, isString := v.(bsondoc.String)
	if !ok || !isString {
		return ""
	}
	return string(s)
}

func docField(cmd *bsondoc.Document, key string) *bsondoc.Document {
	v, ok := cmd.Get(key)
	d, isDoc := v.(*bsondoc.Document)
	if !ok || !isDoc {
		return nil
	}
	return d
}

func arrayField(cmd *bsondoc.Document, key string) bsondoc.Array {
	v, ok := cmd.Get(key)
	a, isArr := v.(bsondoc.Array)
	if !ok || !isArr {
		return nil
	}
	return a
}

func int32Field(cmd *bsondoc.Document, key string) int32 {
	v, _ := cmd.Get(key)
	switch n := v.(type) {
	case bsondoc.Int32:
		return int32(n)
	case bsondoc.Int64:
		return int32(n)
	case bsondoc.Double:
		return int32(n)
	}
	return 0
}

func boolField(cmd *bsondoc.Document, key string) bool {
	v, ok := cmd.Get(key)
	b, isBool := v.(bsondoc.Bool)
	return ok && isBool && bool(b)
}

func (r *Router) cmdInsert(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "insert")
	ns := crud.Namespace{Database: db, Collection: coll}
	docs := arrayField(cmd, "documents")

	parsed := make([]*bsondoc.Document, 0, len(docs))
	for _, d := range docs {
		if doc, ok := d.(*bsondoc.Document); ok {
			parsed = append(parsed, doc)
		}
	}
	if err := r.Backend.Insert(ctx, ns, parsed); err != nil {
		return nil, fmt.Errorf("router: insert: %w", err)
	}
	reply := ok()
	reply.Set("n", bsondoc.Int32(int32(len(parsed))))
	return reply, nil
}

func (r *Router) cmdFind(ctx context.Context, db string, cmd *bsondoc.Document, c *conn.Conn) (*bsondoc.Document, error) {
	coll := stringField(cmd, "find")
	ns := crud.Namespace{Database: db, Collection: coll}

	query := docField(cmd, "filter")
	if query == nil {
		query = bsondoc.NewDocument()
	}
	opts := crud.FindOptions{
		Projection: docField(cmd, "projection"),
		Sort:       docField(cmd, "sort"),
		Skip:       int32Field(cmd, "skip"),
		Limit:      int32Field(cmd, "limit"),
	}

	docs, err := r.Facade.Find(ctx, ns, query, opts)
	if err != nil {
		return nil, fmt.Errorf("router: find: %w", err)
	}

	batchSize := int(int32Field(cmd, "batchSize"))
	firstBatch, cursorID := r.openBatch(c, ns, query, opts.Projection, docs, batchSize)

	reply := ok()
	cursor := bsondoc.NewDocument()
	cursor.Set("firstBatch", firstBatch)
	cursor.Set("id", bsondoc.Int64(cursorID))
	cursor.Set("ns", bsondoc.String(db+"."+coll))
	reply.Set("cursor", cursor)
	return reply, nil
}

// openBatch returns the first page of docs as a bsondoc.Array, opening and
// registering a cursor on c for the remainder if batchSize (0 meaning
// "return everything") left documents unreturned.
func (r *Router) openBatch(c *conn.Conn, ns crud.Namespace, query, projection *bsondoc.Document, docs []*bsondoc.Document, batchSize int) (bsondoc.Array, int64) {
	if batchSize <= 0 || batchSize >= len(docs) {
		batch := make(bsondoc.Array, 0, len(docs))
		for _, d := range docs {
			batch = append(batch, d)
		}
		return batch, 0
	}

	id := conn.NewCursorID()
	c.Cursors.Register(&conn.Cursor{
		ID: id, Namespace: ns, Query: query, Projection: projection,
		Batch: docs, Position: batchSize,
	})

	batch := make(bsondoc.Array, 0, batchSize)
	for _, d := range docs[:batchSize] {
		batch = append(batch, d)
	}
	return batch, id
}

func (r *Router) cmdUpdate(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "update")
	ns := crud.Namespace{Database: db, Collection: coll}
	updates := arrayField(cmd, "updates")

	var matched, modified int64
	upserted := make(bsondoc.Array, 0)
	for i, u := range updates {
		spec, ok := u.(*bsondoc.Document)
		if !ok {
			continue
		}
		selector := docField(spec, "q")
		update := docField(spec, "u")
		upsert := boolField(spec, "upsert")
		multi := boolField(spec, "multi")

		var result crud.UpdateResult
		var err error
		if multi {
			result, err = r.Facade.UpdateMany(ctx, ns, selector, update, upsert)
		} else {
			result, err = r.Facade.UpdateOne(ctx, ns, selector, update, upsert)
		}
		if err != nil {
			return nil, fmt.Errorf("router: update: %w", err)
		}
		matched += result.Matched
		modified += result.Modified
		for _, uid := range result.Upserted {
			upserted = append(upserted, bsondoc.Doc("index", bsondoc.Int32(int32(i)), "_id", uid.ID))
		}
	}

	reply := ok()
	reply.Set("n", bsondoc.NewNumber(matched))
	reply.Set("nModified", bsondoc.NewNumber(modified))
	if len(upserted) > 0 {
		reply.Set("upserted", upserted)
	}
	return reply, nil
}

func (r *Router) cmdDelete(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "delete")
	ns := crud.Namespace{Database: db, Collection: coll}
	deletes := arrayField(cmd, "deletes")

	var deleted int64
	for _, d := range deletes {
		spec, ok := d.(*bsondoc.Document)
		if !ok {
			continue
		}
		selector := docField(spec, "q")
		limit := int32Field(spec, "limit")

		var result crud.DeleteResult
		var err error
		if limit == 1 {
			result, err = r.Facade.DeleteOne(ctx, ns, selector)
		} else {
			result, err = r.Facade.DeleteMany(ctx, ns, selector)
		}
		if err != nil {
			return nil, fmt.Errorf("router: delete: %w", err)
		}
		deleted += result.Deleted
	}

	reply := ok()
	reply.Set("n", bsondoc.NewNumber(deleted))
	return reply, nil
}

func (r *Router) cmdAggregate(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "aggregate")
	ns := crud.Namespace{Database: db, Collection: coll}
	pipeline := arrayField(cmd, "pipeline")

	docs, err := r.Facade.Aggregate(ctx, ns, pipeline)
	if err != nil {
		return nil, fmt.Errorf("router: aggregate: %w", err)
	}

	batch := make(bsondoc.Array, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}

	reply := ok()
	cursor := bsondoc.NewDocument()
	cursor.Set("firstBatch", batch)
	cursor.Set("id", bsondoc.Int64(0))
	cursor.Set("ns", bsondoc.String(db+"."+coll))
	reply.Set("cursor", cursor)
	return reply, nil
}

func (r *Router) cmdCount(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "count")
	ns := crud.Namespace{Database: db, Collection: coll}
	query := docField(cmd, "query")

	n, err := r.Facade.Count(ctx, ns, query)
	if err != nil {
		return nil, fmt.Errorf("router: count: %w", err)
	}
	reply := ok()
	reply.Set("n", bsondoc.NewNumber(n))
	return reply, nil
}

func (r *Router) cmdCreateIndexes(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "createIndexes")
	ns := crud.Namespace{Database: db, Collection: coll}
	specsArr := arrayField(cmd, "indexes")

	specs := make([]crud.IndexSpec, 0, len(specsArr))
	for _, s := range specsArr {
		doc, ok := s.(*bsondoc.Document)
		if !ok {
			continue
		}
		specs = append(specs, crud.IndexSpec{Name: stringField(doc, "name"), Key: docField(doc, "key")})
	}

	if _, err := r.Backend.CreateIndexes(ctx, ns, specs); err != nil {
		return nil, fmt.Errorf("router: createIndexes: %w", err)
	}
	reply := ok()
	reply.Set("numIndexesBefore", bsondoc.Int32(1))
	reply.Set("numIndexesAfter", bsondoc.Int32(int32(len(specs)+1)))
	return reply, nil
}

func (r *Router) cmdListIndexes(ctx context.Context, db string, cmd *bsondoc.Document) (*bsondoc.Document, error) {
	coll := stringField(cmd, "listIndexes")
	ns := crud.Namespace{Database: db, Collection: coll}

	specs, err := r.Backend.ListIndexes(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("router: listIndexes: %w", err)
	}
	batch := make(bsondoc.Array, 0, len(specs))
	for _, s := range specs {
		batch = append(batch, bsondoc.Doc("v", bsondoc.Int32(2), "key", s.Key, "name", bsondoc.String(s.Name)))
	}

	reply := ok()
	cursor := bsondoc.NewDocument()
	cursor.Set("firstBatch", batch)
	cursor.Set("id", bsondoc.Int64(0))
	cursor.Set("ns", bsondoc.String(db+"."+coll))
	reply.Set("cursor", cursor)
	return reply, nil
}

func (r *Router) cmdListCollections(ctx context.Context, db string) (*bsondoc.Document, error) {
	names, err := r.Backend.ListCollections(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("router: listCollections: %w", err)
	}
	batch := make(bsondoc.Array, 0, len(names))
	for _, name := range names {
		batch = append(batch, bsondoc.Doc("name", bsondoc.String(name), "type", bsondoc.String("collection")))
	}

	reply := ok()
	cursor := bsondoc.NewDocument()
	cursor.Set("firstBatch", batch)
	cursor.Set("id", bsondoc.Int64(0))
	cursor.Set("ns", bsondoc.String(db+".$cmd.listCollections"))
	reply.Set("cursor", cursor)
	return reply, nil
}
