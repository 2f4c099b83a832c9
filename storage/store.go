package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/crud"
	"github.com/solatis/mongofront/match"
)

// defaultSampleSize bounds how many synthetic documents Count and an
// unfiltered Find will generate before counting/returning, since the
// model has no fixed document set to enumerate.
const defaultSampleSize = 1000

// Store is the concrete, non-persistent crud.Backend: it trains a
// namespaceModel on every insert and answers find/count/aggregate by
// generating documents from that model, never by replaying stored ones.
type Store struct {
	mu         sync.RWMutex
	namespaces map[crud.Namespace]*namespaceModel
	indexes    map[crud.Namespace][]crud.IndexSpec
	dbOrder    []string
	collOrder  map[string][]string
	seen       map[crud.Namespace]bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		namespaces: make(map[crud.Namespace]*namespaceModel),
		indexes:    make(map[crud.Namespace][]crud.IndexSpec),
		collOrder:  make(map[string][]string),
		seen:       make(map[crud.Namespace]bool),
	}
}

func (s *Store) modelFor(ns crud.Namespace) *namespaceModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	nm, ok := s.namespaces[ns]
	if !ok {
		nm = newNamespaceModel()
		s.namespaces[ns] = nm
	}
	s.recordNamespaceLocked(ns)
	return nm
}

func (s *Store) recordNamespaceLocked(ns crud.Namespace) {
	if s.seen[ns] {
		return
	}
	s.seen[ns] = true
	if _, ok := s.collOrder[ns.Database]; !ok {
		s.dbOrder = append(s.dbOrder, ns.Database)
	}
	s.collOrder[ns.Database] = append(s.collOrder[ns.Database], ns.Collection)
}

// Insert trains ns's model on each document.
func (s *Store) Insert(ctx context.Context, ns crud.Namespace, docs []*bsondoc.Document) error {
	nm := s.modelFor(ns)
	for _, doc := range docs {
		if _, ok := doc.Get("_id"); !ok {
			doc.Set("_id", bsondoc.NewObjectID())
		}
		nm.train(doc)
	}
	return nil
}

// Find generates candidate documents from ns's model and lets the caller
// (crud.Facade) perform the authoritative filter/sort/skip/limit pass;
// Store narrows to query's top-level equality constraints when possible so
// it needn't materialize an unbounded sample for a highly selective query.
func (s *Store) Find(ctx context.Context, ns crud.Namespace, query, projection *bsondoc.Document, skip, limit int32) ([]*bsondoc.Document, error) {
	s.mu.RLock()
	nm, ok := s.namespaces[ns]
	s.mu.RUnlock()
	if !ok || nm.fieldCount() == 0 {
		return nil, nil
	}

	constraints := equalityConstraints(query)
	n := sampleSizeFor(limit)

	docs := make([]*bsondoc.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, nm.generate(i, constraints))
	}
	return docs, nil
}

func sampleSizeFor(limit int32) int {
	if limit > 0 && int(limit) < defaultSampleSize {
		// Oversample modestly so post-filtering by non-pinned predicates
		// still has a chance to return `limit` results.
		n := int(limit) * 4
		if n > defaultSampleSize {
			n = defaultSampleSize
		}
		return n
	}
	return defaultSampleSize
}

// equalityConstraints extracts top-level {field: scalar} and {field:
// {$eq: scalar}} pairs from query, used to pin generated fields rather
// than sample them.
func equalityConstraints(query *bsondoc.Document) map[string]bsondoc.Value {
	constraints := make(map[string]bsondoc.Value)
	if query == nil {
		return constraints
	}
	query.Range(func(key string, v bsondoc.Value) bool {
		if len(key) > 0 && key[0] == '$' {
			return true
		}
		switch val := v.(type) {
		case *bsondoc.Document:
			if eq, ok := val.Get("$eq"); ok && val.Len() == 1 {
				constraints[key] = eq
			}
		default:
			constraints[key] = v
		}
		return true
	})
	return constraints
}

// Update loads a bounded sample from the model, applies selector/update
// semantics in memory, and re-trains the model on the resulting documents
// so subsequent generation reflects the change. Because the backing store
// is generative rather than a fixed document set, "matched" and "modified"
// counts are computed against the sampled set, not an absolute population.
func (s *Store) Update(ctx context.Context, ns crud.Namespace, selector, update *bsondoc.Document, upsert, multi bool) (crud.UpdateResult, error) {
	nm := s.modelFor(ns)
	if nm.fieldCount() == 0 {
		if upsert {
			return s.upsertNew(ns, nm, selector, update)
		}
		return crud.UpdateResult{}, nil
	}

	constraints := equalityConstraints(selector)
	sample := make([]*bsondoc.Document, 0, defaultSampleSize)
	for i := 0; i < defaultSampleSize; i++ {
		sample = append(sample, nm.generate(i, constraints))
	}

	var result crud.UpdateResult
	for _, doc := range sample {
		if !match.Matches(doc, selector) {
			continue
		}
		result.Matched++
		updated, changed, err := crud.ApplyUpdate(doc, update)
		if err != nil {
			return result, fmt.Errorf("storage: update: %w", err)
		}
		if changed {
			result.Modified++
			nm.train(updated)
		}
		if !multi {
			break
		}
	}

	if result.Matched == 0 && upsert {
		return s.upsertNew(ns, nm, selector, update)
	}
	return result, nil
}

func (s *Store) upsertNew(ns crud.Namespace, nm *namespaceModel, selector, update *bsondoc.Document) (crud.UpdateResult, error) {
	base := selector.Clone()
	if soi, ok := update.Get("$setOnInsert"); ok {
		var err error
		if base, _, err = crud.ApplyUpdate(base, bsondoc.Doc("$set", soi)); err != nil {
			return crud.UpdateResult{}, fmt.Errorf("storage: upsert: %w", err)
		}
	}
	doc, _, err := crud.ApplyUpdate(base, update)
	if err != nil {
		return crud.UpdateResult{}, fmt.Errorf("storage: upsert: %w", err)
	}
	if _, ok := doc.Get("_id"); !ok {
		doc.Set("_id", bsondoc.NewObjectID())
	}
	nm.train(doc)
	id, _ := doc.Get("_id")
	return crud.UpdateResult{
		Upserted: []crud.UpsertedID{{Index: 0, ID: id}},
	}, nil
}

// Delete reports how many documents in a bounded generated sample match
// selector (stopping at the first when singleRemove is set). Since the
// model has no per-document record, ns's model is left unchanged: its
// frequency counts are not reduced, and later finds can still generate
// matching documents.
func (s *Store) Delete(ctx context.Context, ns crud.Namespace, selector *bsondoc.Document, singleRemove bool) (crud.DeleteResult, error) {
	s.mu.RLock()
	nm, ok := s.namespaces[ns]
	s.mu.RUnlock()
	if !ok || nm.fieldCount() == 0 {
		return crud.DeleteResult{}, nil
	}

	constraints := equalityConstraints(selector)
	var deleted int64
	for i := 0; i < defaultSampleSize; i++ {
		doc := nm.generate(i, constraints)
		if match.Matches(doc, selector) {
			deleted++
			if singleRemove {
				break
			}
		}
	}
	return crud.DeleteResult{Deleted: deleted}, nil
}

// Count generates a bounded sample and counts how many match query. For an
// empty query it instead returns the number of observations recorded for
// the model's first field.
func (s *Store) Count(ctx context.Context, ns crud.Namespace, query *bsondoc.Document) (int64, error) {
	s.mu.RLock()
	nm, ok := s.namespaces[ns]
	s.mu.RUnlock()
	if !ok || nm.fieldCount() == 0 {
		return 0, nil
	}
	if query == nil || query.Len() == 0 {
		return int64(nm.models[nm.fields[0]].total()), nil
	}

	constraints := equalityConstraints(query)
	var n int64
	for i := 0; i < defaultSampleSize; i++ {
		if match.Matches(nm.generate(i, constraints), query) {
			n++
		}
	}
	return n, nil
}

// Aggregate generates a bounded sample from ns's model and runs it
// through the match package's pipeline evaluator.
func (s *Store) Aggregate(ctx context.Context, ns crud.Namespace, pipeline bsondoc.Array) ([]*bsondoc.Document, error) {
	docs, err := s.Find(ctx, ns, nil, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	out, err := match.Aggregate(docs, pipeline)
	if err != nil {
		return nil, fmt.Errorf("storage: aggregate: %w", err)
	}
	return out, nil
}

// CreateIndexes appends specs to ns's plain index descriptor list; no
// index is actually built, since find/count work by generation rather
// than lookup.
func (s *Store) CreateIndexes(ctx context.Context, ns crud.Namespace, specs []crud.IndexSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordNamespaceLocked(ns)
	s.indexes[ns] = append(s.indexes[ns], specs...)
	return len(specs), nil
}

// ListIndexes returns ns's recorded index descriptors, always including
// the implicit _id index.
func (s *Store) ListIndexes(ctx context.Context, ns crud.Namespace) ([]crud.IndexSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []crud.IndexSpec{{Name: "_id_", Key: bsondoc.Doc("_id", bsondoc.Int32(1))}}
	return append(out, s.indexes[ns]...), nil
}

// ListDatabases returns every database name observed via Insert,
// CreateIndexes, or a prior ListCollections/ListDatabases call, in first-
// seen order.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.dbOrder))
	copy(out, s.dbOrder)
	return out, nil
}

// ListCollections returns every collection name observed for database, in
// first-seen order.
func (s *Store) ListCollections(ctx context.Context, database string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.collOrder[database]))
	copy(out, s.collOrder[database])
	return out, nil
}

// GenerateDocuments synthesizes n documents for ns without applying any
// filter or constraint.
func (s *Store) GenerateDocuments(ctx context.Context, ns crud.Namespace, n int) ([]*bsondoc.Document, error) {
	s.mu.RLock()
	nm, ok := s.namespaces[ns]
	s.mu.RUnlock()
	if !ok || nm.fieldCount() == 0 {
		return nil, nil
	}
	docs := make([]*bsondoc.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, nm.generate(i, nil))
	}
	return docs, nil
}

var _ crud.Backend = (*Store)(nil)
