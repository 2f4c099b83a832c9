package crud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/mongofront/bsondoc"
)

// ApplyUpdate applies a MongoDB-style update document (operator form, e.g.
// $set/$unset/$inc, or a full-document replacement when update carries no
// $-prefixed top-level keys) to a clone of selector-matched doc, returning
// the new document and whether any field actually changed.
func ApplyUpdate(doc *bsondoc.Document, update *bsondoc.Document) (*bsondoc.Document, bool, error) {
	if !hasOperators(update) {
		out := replaceDocument(doc, update)
		return out, !valueDeepEqual(doc, out), nil
	}

	out := doc.Clone()
	changed := false
	var applyErr error

	update.Range(func(op string, spec bsondoc.Value) bool {
		specDoc, ok := spec.(*bsondoc.Document)
		if !ok {
			applyErr = fmt.Errorf("crud: update operator %q requires a document operand", op)
			return false
		}
		switch op {
		case "$set":
			specDoc.Range(func(path string, v bsondoc.Value) bool {
				setPath(out, path, v)
				changed = true
				return true
			})
		case "$unset":
			specDoc.Range(func(path string, _ bsondoc.Value) bool {
				out.Delete(path)
				changed = true
				return true
			})
		case "$inc":
			specDoc.Range(func(path string, v bsondoc.Value) bool {
				incPath(out, path, v)
				changed = true
				return true
			})
		case "$setOnInsert":
			// No-op here: only meaningful on upsert-insert, handled by the
			// caller (storage's upsert path) before ApplyUpdate runs on the
			// newly-created document.
		case "$push":
			specDoc.Range(func(path string, v bsondoc.Value) bool {
				pushPath(out, path, v)
				changed = true
				return true
			})
		case "$pull":
			specDoc.Range(func(path string, v bsondoc.Value) bool {
				pullPath(out, path, v)
				changed = true
				return true
			})
		default:
			applyErr = fmt.Errorf("crud: unsupported update operator %q", op)
			return false
		}
		return applyErr == nil
	})

	if changed && valueDeepEqual(doc, out) {
		changed = false
	}
	return out, changed, applyErr
}

func hasOperators(update *bsondoc.Document) bool {
	for _, k := range update.Keys() {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func replaceDocument(doc, replacement *bsondoc.Document) *bsondoc.Document {
	out := replacement.Clone()
	if id, ok := doc.Get("_id"); ok {
		if _, hasID := out.Get("_id"); !hasID {
			out.Set("_id", id)
		}
	}
	return out
}

// setPath assigns a dotted path, creating intermediate documents as needed.
func setPath(doc *bsondoc.Document, path string, v bsondoc.Value) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			cur.Set(p, v)
			return
		}
		next, ok := cur.Get(p)
		nextDoc, isDoc := next.(*bsondoc.Document)
		if !ok || !isDoc {
			nextDoc = bsondoc.NewDocument()
		} else {
			// Copy on write, so a nested document shared with the
			// caller's original is never modified.
			nextDoc = nextDoc.Clone()
		}
		cur.Set(p, nextDoc)
		cur = nextDoc
	}
}

func incPath(doc *bsondoc.Document, path string, delta bsondoc.Value) {
	cur, _ := resolvePath(doc, path)
	sum := addNumeric(cur, delta)
	setPath(doc, path, sum)
}

func resolvePath(doc *bsondoc.Document, path string) (bsondoc.Value, bool) {
	parts := strings.Split(path, ".")
	var cur bsondoc.Value = doc
	for _, p := range parts {
		switch v := cur.(type) {
		case *bsondoc.Document:
			val, ok := v.Get(p)
			if !ok {
				return nil, false
			}
			cur = val
		case bsondoc.Array:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func addNumeric(a, b bsondoc.Value) bsondoc.Value {
	af := asFloat(a)
	bf := asFloat(b)
	sum := af + bf
	if _, isDouble := a.(bsondoc.Double); isDouble {
		return bsondoc.Double(sum)
	}
	if _, isDouble := b.(bsondoc.Double); isDouble {
		return bsondoc.Double(sum)
	}
	return bsondoc.NewNumber(int64(sum))
}

func asFloat(v bsondoc.Value) float64 {
	switch n := v.(type) {
	case bsondoc.Int32:
		return float64(n)
	case bsondoc.Int64:
		return float64(n)
	case bsondoc.Double:
		return float64(n)
	}
	return 0
}

func pushPath(doc *bsondoc.Document, path string, v bsondoc.Value) {
	cur, ok := resolvePath(doc, path)
	arr, isArr := cur.(bsondoc.Array)
	if !ok || !isArr {
		arr = bsondoc.Array{}
	}
	arr = append(arr, v)
	setPath(doc, path, arr)
}

func pullPath(doc *bsondoc.Document, path string, v bsondoc.Value) {
	cur, ok := resolvePath(doc, path)
	arr, isArr := cur.(bsondoc.Array)
	if !ok || !isArr {
		return
	}
	out := arr[:0:0]
	for _, elem := range arr {
		if !valueDeepEqual(elem, v) {
			out = append(out, elem)
		}
	}
	setPath(doc, path, out)
}

func valueDeepEqual(a, b bsondoc.Value) bool {
	bufA, errA := encodeForCompare(a)
	bufB, errB := encodeForCompare(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(bufA) == string(bufB)
}

func encodeForCompare(v bsondoc.Value) ([]byte, error) {
	d := bsondoc.NewDocument().Set("v", v)
	return bsondoc.Encode(d)
}
