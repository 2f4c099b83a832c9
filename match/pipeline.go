package match

import (
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/mongofront/bsondoc"
)

// Project applies a MongoDB-style projection spec to doc. A spec with only
// 1/true values is inclusion mode (only named fields plus _id survive
// unless _id is explicitly excluded); a spec with only 0/false values is
// exclusion mode (named fields are dropped, everything else survives).
func Project(doc *bsondoc.Document, spec *bsondoc.Document) *bsondoc.Document {
	if spec == nil || spec.Len() == 0 {
		return doc
	}

	inclusion, idExcluded := projectionMode(spec)

	out := bsondoc.NewDocument()
	if inclusion {
		if id, ok := doc.Get("_id"); ok && !idExcluded {
			out.Set("_id", id)
		}
		spec.Range(func(key string, v bsondoc.Value) bool {
			if key == "_id" {
				return true
			}
			if val, ok := Resolve(doc, key); ok {
				out.Set(key, val)
			}
			return true
		})
		return out
	}

	excluded := make(map[string]bool, spec.Len())
	spec.Range(func(key string, v bsondoc.Value) bool {
		excluded[key] = true
		return true
	})
	doc.Range(func(key string, v bsondoc.Value) bool {
		if !excluded[key] {
			out.Set(key, v)
		}
		return true
	})
	return out
}

// projectionMode reports whether spec is inclusion-mode, and whether _id is
// explicitly excluded (relevant only in inclusion mode, where _id is kept
// by default).
func projectionMode(spec *bsondoc.Document) (inclusion bool, idExcluded bool) {
	inclusion = true
	sawField := false
	spec.Range(func(key string, v bsondoc.Value) bool {
		truthy := isTruthy(v)
		if key == "_id" && !truthy {
			idExcluded = true
			return true
		}
		sawField = true
		if !truthy {
			inclusion = false
		}
		return true
	})
	return inclusion && sawField, idExcluded
}

func isTruthy(v bsondoc.Value) bool {
	switch n := v.(type) {
	case bsondoc.Bool:
		return bool(n)
	case bsondoc.Int32:
		return n != 0
	case bsondoc.Int64:
		return n != 0
	case bsondoc.Double:
		return n != 0
	}
	return true
}

// SortSpec is one field/direction pair of a multi-key sort.
type SortSpec struct {
	Field      string
	Descending bool
}

// ParseSortDocument converts a {field: 1|-1, ...} document into an ordered
// SortSpec slice, preserving field order.
func ParseSortDocument(spec *bsondoc.Document) []SortSpec {
	if spec == nil {
		return nil
	}
	specs := make([]SortSpec, 0, spec.Len())
	spec.Range(func(key string, v bsondoc.Value) bool {
		n, _ := numericValue(v)
		specs = append(specs, SortSpec{Field: key, Descending: n < 0})
		return true
	})
	return specs
}

// Sort stably reorders docs in place per specs, applied in the given
// field-priority order.
func Sort(docs []*bsondoc.Document, specs []SortSpec) {
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, s := range specs {
			av, _ := Resolve(docs[i], s.Field)
			bv, _ := Resolve(docs[j], s.Field)
			c := compare(av, bv)
			if c == 0 {
				continue
			}
			if s.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Unwind expands each document's array field into one output document per
// array element, dropping documents where the path is absent or empty.
func Unwind(docs []*bsondoc.Document, path string) []*bsondoc.Document {
	field := strings.TrimPrefix(path, "$")
	out := make([]*bsondoc.Document, 0, len(docs))
	for _, doc := range docs {
		v, ok := Resolve(doc, field)
		arr, isArr := v.(bsondoc.Array)
		if !ok || !isArr || len(arr) == 0 {
			continue
		}
		for _, elem := range arr {
			clone := doc.Clone()
			clone.Set(field, elem)
			out = append(out, clone)
		}
	}
	return out
}

// Group implements $group: documents are bucketed by the evaluated _id
// expression, and each accumulator field is computed per bucket. Supported
// accumulators: $sum, $avg, $min, $max, $first, $last, $push.
func Group(docs []*bsondoc.Document, spec *bsondoc.Document) []*bsondoc.Document {
	idExpr, _ := spec.Get("_id")

	type bucket struct {
		key     bsondoc.Value
		members []*bsondoc.Document
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, doc := range docs {
		key := evalExpr(doc, idExpr)
		k := groupKeyString(key)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{key: key}
			buckets[k] = b
			order = append(order, k)
		}
		b.members = append(b.members, doc)
	}

	out := make([]*bsondoc.Document, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		result := bsondoc.NewDocument()
		result.Set("_id", b.key)
		spec.Range(func(field string, expr bsondoc.Value) bool {
			if field == "_id" {
				return true
			}
			result.Set(field, accumulate(b.members, expr))
			return true
		})
		out = append(out, result)
	}
	return out
}

func groupKeyString(v bsondoc.Value) string {
	if d, ok := v.(*bsondoc.Document); ok {
		buf, err := bsondoc.Encode(d)
		if err == nil {
			return string(buf)
		}
	}
	if s, ok := v.(bsondoc.String); ok {
		return "s:" + string(s)
	}
	if n, ok := numericFloat(v); ok {
		return "n:" + strconv.FormatFloat(n, 'g', -1, 64)
	}
	if buf, err := bsondoc.Encode(bsondoc.NewDocument().Set("k", v)); err == nil {
		return "v:" + string(buf)
	}
	return "x"
}

// evalExpr evaluates a tiny subset of aggregation expressions: a field
// reference ("$field"), a literal value, or nil for constant grouping.
func evalExpr(doc *bsondoc.Document, expr bsondoc.Value) bsondoc.Value {
	if s, ok := expr.(bsondoc.String); ok && strings.HasPrefix(string(s), "$") {
		v, ok := Resolve(doc, strings.TrimPrefix(string(s), "$"))
		if !ok {
			return bsondoc.Null
		}
		return v
	}
	return expr
}

func accumulate(members []*bsondoc.Document, expr bsondoc.Value) bsondoc.Value {
	accDoc, ok := expr.(*bsondoc.Document)
	if !ok || accDoc.Len() != 1 {
		return bsondoc.Null
	}
	var op string
	var operand bsondoc.Value
	accDoc.Range(func(k string, v bsondoc.Value) bool {
		op, operand = k, v
		return false
	})

	switch op {
	case "$sum":
		var sum float64
		for _, m := range members {
			v := evalExpr(m, operand)
			if n, ok := numericFloat(v); ok {
				sum += n
			}
		}
		return bsondoc.Double(sum)
	case "$avg":
		var sum float64
		var count int
		for _, m := range members {
			v := evalExpr(m, operand)
			if n, ok := numericFloat(v); ok {
				sum += n
				count++
			}
		}
		if count == 0 {
			return bsondoc.Null
		}
		return bsondoc.Double(sum / float64(count))
	case "$min":
		return extremum(members, operand, true)
	case "$max":
		return extremum(members, operand, false)
	case "$first":
		if len(members) == 0 {
			return bsondoc.Null
		}
		return evalExpr(members[0], operand)
	case "$last":
		if len(members) == 0 {
			return bsondoc.Null
		}
		return evalExpr(members[len(members)-1], operand)
	case "$push":
		arr := make(bsondoc.Array, 0, len(members))
		for _, m := range members {
			arr = append(arr, evalExpr(m, operand))
		}
		return arr
	}
	return bsondoc.Null
}

func extremum(members []*bsondoc.Document, operand bsondoc.Value, wantMin bool) bsondoc.Value {
	var best bsondoc.Value
	haveBest := false
	for _, m := range members {
		v := evalExpr(m, operand)
		if !haveBest {
			best, haveBest = v, true
			continue
		}
		c := compare(v, best)
		if (wantMin && c < 0) || (!wantMin && c > 0) {
			best = v
		}
	}
	if !haveBest {
		return bsondoc.Null
	}
	return best
}
