package crud

import (
	"context"
	"fmt"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/match"
)

// Facade wraps a Backend with the uniform find/update/delete semantics
// shared by every opcode and command surface: the same
// match -> projection -> sort -> skip -> limit pipeline runs regardless of
// whether the caller arrived via OP_QUERY or OP_MSG. Aggregation does not
// use this pipeline; Aggregate hands the whole pipeline to the backend.
type Facade struct {
	Backend Backend
}

// NewFacade wraps b in a Facade.
func NewFacade(b Backend) *Facade {
	return &Facade{Backend: b}
}

// FindOptions carries the optional clauses of a find operation beyond the
// query filter itself.
type FindOptions struct {
	Projection *bsondoc.Document
	Sort       *bsondoc.Document
	Skip       int32
	Limit      int32
}

// Find applies the backend's stored/generated documents for ns through
// match -> projection -> sort -> skip -> limit, in that fixed order.
func (f *Facade) Find(ctx context.Context, ns Namespace, query *bsondoc.Document, opts FindOptions) ([]*bsondoc.Document, error) {
	if query == nil {
		query = bsondoc.NewDocument()
	}
	// The backend itself narrows by query where it can (so a generative
	// backend need not materialize its entire distribution); Facade then
	// re-applies the filter defensively and layers sort/skip/limit/
	// projection on top so any Backend implementation gets correct
	// semantics even if its own filtering is approximate.
	docs, err := f.Backend.Find(ctx, ns, query, opts.Projection, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("crud: find: %w", err)
	}

	filtered := docs[:0:0]
	for _, d := range docs {
		if match.Matches(d, query) {
			filtered = append(filtered, d)
		}
	}

	if opts.Projection != nil && opts.Projection.Len() > 0 {
		projected := make([]*bsondoc.Document, len(filtered))
		for i, d := range filtered {
			projected[i] = match.Project(d, opts.Projection)
		}
		filtered = projected
	}

	if opts.Sort != nil && opts.Sort.Len() > 0 {
		match.Sort(filtered, match.ParseSortDocument(opts.Sort))
	}

	return applySkipLimit(filtered, opts.Skip, opts.Limit), nil
}

func applySkipLimit(docs []*bsondoc.Document, skip, limit int32) []*bsondoc.Document {
	if skip > 0 {
		if int(skip) >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && int(limit) < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// Count is Find's row count, honoring the same query semantics but
// skipping projection/sort work.
func (f *Facade) Count(ctx context.Context, ns Namespace, query *bsondoc.Document) (int64, error) {
	if query == nil || query.Len() == 0 {
		return f.Backend.Count(ctx, ns, query)
	}
	docs, err := f.Find(ctx, ns, query, FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// UpdateOne applies update to the first document matching selector
// (legacy OP_UPDATE without the multi flag, and OP_MSG single-statement
// updates), honoring upsert.
func (f *Facade) UpdateOne(ctx context.Context, ns Namespace, selector, update *bsondoc.Document, upsert bool) (UpdateResult, error) {
	return f.Backend.Update(ctx, ns, selector, update, upsert, false)
}

// UpdateMany applies update to every document matching selector.
func (f *Facade) UpdateMany(ctx context.Context, ns Namespace, selector, update *bsondoc.Document, upsert bool) (UpdateResult, error) {
	return f.Backend.Update(ctx, ns, selector, update, upsert, true)
}

// DeleteOne removes the first document matching selector.
func (f *Facade) DeleteOne(ctx context.Context, ns Namespace, selector *bsondoc.Document) (DeleteResult, error) {
	return f.Backend.Delete(ctx, ns, selector, true)
}

// DeleteMany removes every document matching selector.
func (f *Facade) DeleteMany(ctx context.Context, ns Namespace, selector *bsondoc.Document) (DeleteResult, error) {
	return f.Backend.Delete(ctx, ns, selector, false)
}

// Aggregate runs an aggregation pipeline by passing it unchanged to the
// backend, which supplies the documents and evaluates every stage.
func (f *Facade) Aggregate(ctx context.Context, ns Namespace, pipeline bsondoc.Array) ([]*bsondoc.Document, error) {
	return f.Backend.Aggregate(ctx, ns, pipeline)
}
