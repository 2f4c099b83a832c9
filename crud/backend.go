// Package crud implements the uniform CRUD facade shared by the legacy
// opcodes and OP_MSG commands, dispatching to a storage Backend.
package crud

import (
	"context"

	"github.com/solatis/mongofront/bsondoc"
)

// Namespace identifies a database and collection.
type Namespace struct {
	Database   string
	Collection string
}

// IndexSpec describes one index as accepted by createIndexes and returned
// by listIndexes.
type IndexSpec struct {
	Name string
	Key  *bsondoc.Document
}

// UpsertedID pairs a batch index with the generated _id of an upserted
// document, as reported in OP_MSG update replies.
type UpsertedID struct {
	Index int32
	ID    bsondoc.Value
}

// UpdateResult reports the outcome of applying one or more update
// statements, aggregated across a batch for OP_MSG.
type UpdateResult struct {
	Matched  int64
	Modified int64
	Upserted []UpsertedID
}

// DeleteResult reports how many documents a delete statement removed.
type DeleteResult struct {
	Deleted int64
}

// Backend is the storage collaborator a Namespace's CRUD operations are
// dispatched to. The sole implementation, storage.Store, does not persist
// documents verbatim: it trains a generative model on insert and
// synthesizes documents on find/generateDocuments.
type Backend interface {
	Insert(ctx context.Context, ns Namespace, docs []*bsondoc.Document) error
	Find(ctx context.Context, ns Namespace, query, projection *bsondoc.Document, skip, limit int32) ([]*bsondoc.Document, error)
	Update(ctx context.Context, ns Namespace, selector, update *bsondoc.Document, upsert, multi bool) (UpdateResult, error)
	Delete(ctx context.Context, ns Namespace, selector *bsondoc.Document, singleRemove bool) (DeleteResult, error)
	Count(ctx context.Context, ns Namespace, query *bsondoc.Document) (int64, error)
	Aggregate(ctx context.Context, ns Namespace, pipeline bsondoc.Array) ([]*bsondoc.Document, error)

	CreateIndexes(ctx context.Context, ns Namespace, specs []IndexSpec) (int, error)
	ListIndexes(ctx context.Context, ns Namespace) ([]IndexSpec, error)

	ListDatabases(ctx context.Context) ([]string, error)
	ListCollections(ctx context.Context, database string) ([]string, error)

	// GenerateDocuments synthesizes n documents for ns without recording
	// them as a query result and without applying any filter. Find does not
	// go through it.
	GenerateDocuments(ctx context.Context, ns Namespace, n int) ([]*bsondoc.Document, error)
}
