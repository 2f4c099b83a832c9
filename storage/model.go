// Package storage implements the crud.Backend collaborator that trains a
// per-collection frequency model on insert and synthesizes documents on
// find, rather than storing documents verbatim.
//
// A namespace's model is a plain map under a single RWMutex, updated on
// every insert and read on every generate.
package storage

import (
	"sync"

	"github.com/solatis/mongofront/bsondoc"
)

// fieldModel tracks the observed values of one field across every document
// inserted into a namespace, preserving insertion order for generation
// (most-recently-reinforced values are not favored; this is a plain
// frequency multiset, not a recency model).
type fieldModel struct {
	values []bsondoc.Value
	counts []int
}

func (fm *fieldModel) observe(v bsondoc.Value) {
	key, err := encodeValue(v)
	if err != nil {
		return
	}
	for i, existing := range fm.values {
		if existingKey, err := encodeValue(existing); err == nil && existingKey == key {
			fm.counts[i]++
			return
		}
	}
	fm.values = append(fm.values, v)
	fm.counts = append(fm.counts, 1)
}

// total returns the sum of all observation counts.
func (fm *fieldModel) total() int {
	t := 0
	for _, c := range fm.counts {
		t += c
	}
	return t
}

// sample deterministically picks a value by walking the frequency-weighted
// distribution at index i modulo the total observation count, giving
// reproducible-but-varied output across repeated calls with increasing i.
func (fm *fieldModel) sample(i int) bsondoc.Value {
	total := fm.total()
	if total == 0 {
		return bsondoc.Null
	}
	target := i % total
	acc := 0
	for idx, c := range fm.counts {
		acc += c
		if target < acc {
			return fm.values[idx]
		}
	}
	return fm.values[len(fm.values)-1]
}

func encodeValue(v bsondoc.Value) (string, error) {
	d := bsondoc.NewDocument().Set("v", v)
	buf, err := bsondoc.Encode(d)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// namespaceModel is the trained state for one database.collection: an
// ordered field list (insertion order of first sighting) plus each field's
// fieldModel, under a single RWMutex.
type namespaceModel struct {
	mu     sync.RWMutex
	fields []string
	models map[string]*fieldModel
}

func newNamespaceModel() *namespaceModel {
	return &namespaceModel{models: make(map[string]*fieldModel)}
}

// train folds doc's fields into the model.
func (nm *namespaceModel) train(doc *bsondoc.Document) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	doc.Range(func(key string, v bsondoc.Value) bool {
		fm, ok := nm.models[key]
		if !ok {
			fm = &fieldModel{}
			nm.models[key] = fm
			nm.fields = append(nm.fields, key)
		}
		fm.observe(v)
		return true
	})
}

// generate synthesizes one document by sampling each known field
// independently, pinning any field named in constraints to its given
// value rather than sampling it.
func (nm *namespaceModel) generate(i int, constraints map[string]bsondoc.Value) *bsondoc.Document {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	doc := bsondoc.NewDocument()
	for _, field := range nm.fields {
		if pinned, ok := constraints[field]; ok {
			doc.Set(field, pinned)
			continue
		}
		doc.Set(field, nm.models[field].sample(i))
	}
	for field, v := range constraints {
		if _, ok := doc.Get(field); !ok {
			doc.Set(field, v)
		}
	}
	if _, ok := doc.Get("_id"); !ok {
		doc.Set("_id", bsondoc.NewObjectID())
	}
	return doc
}

// fieldCount reports how many distinct fields have been observed, used by
// Store to decide whether a namespace has been trained at all.
func (nm *namespaceModel) fieldCount() int {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return len(nm.fields)
}
