// Package match implements a MongoDB-style query matcher and a limited
// aggregation pipeline evaluator over bsondoc documents.
package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/mongofront/bsondoc"
)

// Resolve walks a dotted field path ("a.b.c") against doc, returning the
// value found and whether the path was present. Absent and literal
// bsondoc.Null are treated as equivalent by callers of this function, per
// the matcher's null-equals-absent semantics; Resolve itself distinguishes
// them via the ok return.
func Resolve(doc *bsondoc.Document, path string) (bsondoc.Value, bool) {
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

// isNullish reports whether v is absent or a stored bsondoc.Null — the
// matcher treats both as equal to a literal null query value.
func isNullish(v bsondoc.Value, ok bool) bool {
	if !ok {
		return true
	}
	return v == bsondoc.Null
}

// Matches evaluates query as a MongoDB-style filter document against doc.
func Matches(doc *bsondoc.Document, query *bsondoc.Document) bool {
	result := true
	query.Range(func(key string, v bsondoc.Value) bool {
		if strings.HasPrefix(key, "$") {
			result = matchLogical(doc, key, v)
			return result
		}
		result = matchField(doc, key, v)
		return result
	})
	return result
}

func matchLogical(doc *bsondoc.Document, op string, v bsondoc.Value) bool {
	arr, ok := v.(bsondoc.Array)
	switch op {
	case "$and":
		if !ok {
			return false
		}
		for _, sub := range arr {
			if subDoc, ok := sub.(*bsondoc.Document); ok && !Matches(doc, subDoc) {
				return false
			}
		}
		return true
	case "$or":
		if !ok {
			return false
		}
		for _, sub := range arr {
			if subDoc, ok := sub.(*bsondoc.Document); ok && Matches(doc, subDoc) {
				return true
			}
		}
		return false
	case "$nor":
		if !ok {
			return false
		}
		for _, sub := range arr {
			if subDoc, ok := sub.(*bsondoc.Document); ok && Matches(doc, subDoc) {
				return false
			}
		}
		return true
	}
	return false
}

func matchField(doc *bsondoc.Document, path string, expected bsondoc.Value) bool {
	actual, found := Resolve(doc, path)

	if subQuery, ok := expected.(*bsondoc.Document); ok && hasOperatorKeys(subQuery) {
		return matchOperators(actual, found, subQuery)
	}

	return valuesEqual(actual, found, expected)
}

func hasOperatorKeys(d *bsondoc.Document) bool {
	for _, k := range d.Keys() {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return d.Len() > 0
}

func matchOperators(actual bsondoc.Value, found bool, ops *bsondoc.Document) bool {
	result := true
	ops.Range(func(op string, operand bsondoc.Value) bool {
		result = evalOperator(op, actual, found, operand)
		return result
	})
	return result
}

func evalOperator(op string, actual bsondoc.Value, found bool, operand bsondoc.Value) bool {
	switch op {
	case "$eq":
		return valuesEqual(actual, found, operand)
	case "$ne":
		return !valuesEqual(actual, found, operand)
	case "$gt":
		return found && compare(actual, operand) > 0
	case "$gte":
		return found && compare(actual, operand) >= 0
	case "$lt":
		return found && compare(actual, operand) < 0
	case "$lte":
		return found && compare(actual, operand) <= 0
	case "$in":
		arr, ok := operand.(bsondoc.Array)
		if !ok {
			return false
		}
		for _, cand := range arr {
			if valuesEqual(actual, found, cand) {
				return true
			}
		}
		return false
	case "$nin":
		arr, ok := operand.(bsondoc.Array)
		if !ok {
			return true
		}
		for _, cand := range arr {
			if valuesEqual(actual, found, cand) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := operand.(bsondoc.Bool)
		return found == bool(want)
	case "$type":
		return matchType(actual, found, operand)
	case "$regex":
		return matchRegex(actual, found, operand)
	case "$size":
		arr, ok := actual.(bsondoc.Array)
		if !ok {
			return false
		}
		n, _ := numericValue(operand)
		return int64(len(arr)) == n
	case "$all":
		arr, ok := actual.(bsondoc.Array)
		if !ok {
			return false
		}
		want, ok := operand.(bsondoc.Array)
		if !ok {
			return false
		}
		for _, w := range want {
			if !containsValue(arr, w) {
				return false
			}
		}
		return true
	case "$elemMatch":
		arr, ok := actual.(bsondoc.Array)
		if !ok {
			return false
		}
		sub, ok := operand.(*bsondoc.Document)
		if !ok {
			return false
		}
		for _, elem := range arr {
			if elemDoc, ok := elem.(*bsondoc.Document); ok {
				if Matches(elemDoc, sub) {
					return true
				}
			} else if hasOperatorKeys(sub) && matchOperators(elem, true, sub) {
				return true
			}
		}
		return false
	case "$not":
		if sub, ok := operand.(*bsondoc.Document); ok {
			if hasOperatorKeys(sub) {
				return !matchOperators(actual, found, sub)
			}
			return !Matches(valueAsDoc(actual), sub)
		}
		return true
	}
	return false
}

func valueAsDoc(v bsondoc.Value) *bsondoc.Document {
	if d, ok := v.(*bsondoc.Document); ok {
		return d
	}
	return bsondoc.NewDocument()
}

func containsValue(arr bsondoc.Array, want bsondoc.Value) bool {
	for _, v := range arr {
		if valuesEqual(v, true, want) {
			return true
		}
	}
	return false
}

func matchType(actual bsondoc.Value, found bool, operand bsondoc.Value) bool {
	if !found {
		return false
	}
	kind, ok := bsondoc.KindOf(actual)
	if !ok {
		return false
	}
	switch o := operand.(type) {
	case bsondoc.String:
		return typeAlias(kind) == string(o)
	default:
		n, ok := numericValue(o)
		return ok && int64(kind) == n
	}
}

func typeAlias(k bsondoc.Kind) string {
	switch k {
	case bsondoc.KindDouble:
		return "double"
	case bsondoc.KindString:
		return "string"
	case bsondoc.KindDocument:
		return "object"
	case bsondoc.KindArray:
		return "array"
	case bsondoc.KindBinary:
		return "binData"
	case bsondoc.KindUndefined:
		return "undefined"
	case bsondoc.KindObjectID:
		return "objectId"
	case bsondoc.KindBool:
		return "bool"
	case bsondoc.KindDateTime:
		return "date"
	case bsondoc.KindNull:
		return "null"
	case bsondoc.KindRegex:
		return "regex"
	case bsondoc.KindCode:
		return "javascript"
	case bsondoc.KindInt32:
		return "int"
	case bsondoc.KindTimestamp:
		return "timestamp"
	case bsondoc.KindInt64:
		return "long"
	case bsondoc.KindMinKey:
		return "minKey"
	case bsondoc.KindMaxKey:
		return "maxKey"
	}
	return "unknown"
}

func matchRegex(actual bsondoc.Value, found bool, operand bsondoc.Value) bool {
	if !found {
		return false
	}
	s, ok := actual.(bsondoc.String)
	if !ok {
		return false
	}
	var pattern, opts string
	switch o := operand.(type) {
	case bsondoc.Regex:
		pattern, opts = o.Pattern, o.Options
	case bsondoc.String:
		pattern = string(o)
	default:
		return false
	}
	goPattern := pattern
	if strings.Contains(opts, "i") {
		goPattern = "(?i)" + goPattern
	}
	if strings.Contains(opts, "s") {
		goPattern = "(?s)" + goPattern
	}
	if strings.Contains(opts, "m") {
		goPattern = "(?m)" + goPattern
	}
	re, err := regexp.Compile(goPattern)
	if err != nil {
		return false
	}
	return re.MatchString(string(s))
}

func numericValue(v bsondoc.Value) (int64, bool) {
	switch n := v.(type) {
	case bsondoc.Int32:
		return int64(n), true
	case bsondoc.Int64:
		return int64(n), true
	case bsondoc.Double:
		return int64(n), true
	}
	return 0, false
}

func numericFloat(v bsondoc.Value) (float64, bool) {
	switch n := v.(type) {
	case bsondoc.Int32:
		return float64(n), true
	case bsondoc.Int64:
		return float64(n), true
	case bsondoc.Double:
		return float64(n), true
	}
	return 0, false
}

// compare orders two values numerically, by string, or by datetime/int64
// comparison; it returns 0 for incomparable types (no match for ordering
// operators).
func compare(a, b bsondoc.Value) int {
	if af, ok := numericFloat(a); ok {
		if bf, ok := numericFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	if as, ok := a.(bsondoc.String); ok {
		if bs, ok := b.(bsondoc.String); ok {
			return strings.Compare(string(as), string(bs))
		}
	}
	if ad, ok := a.(bsondoc.DateTime); ok {
		if bd, ok := b.(bsondoc.DateTime); ok {
			switch {
			case ad < bd:
				return -1
			case ad > bd:
				return 1
			}
			return 0
		}
	}
	return 0
}

// valuesEqual implements MongoDB-style equality: absent fields equal a
// literal null query operand, and numeric kinds compare by value across
// int32/int64/double.
func valuesEqual(actual bsondoc.Value, found bool, expected bsondoc.Value) bool {
	if expected == bsondoc.Null {
		return isNullish(actual, found)
	}
	if !found {
		return false
	}
	if af, ok := numericFloat(actual); ok {
		if bf, ok := numericFloat(expected); ok {
			return af == bf
		}
		return false
	}
	return deepEqual(actual, expected)
}

func deepEqual(a, b bsondoc.Value) bool {
	switch av := a.(type) {
	case bsondoc.String:
		bv, ok := b.(bsondoc.String)
		return ok && av == bv
	case bsondoc.Bool:
		bv, ok := b.(bsondoc.Bool)
		return ok && av == bv
	case bsondoc.DateTime:
		bv, ok := b.(bsondoc.DateTime)
		return ok && av == bv
	case bsondoc.ObjectID:
		bv, ok := b.(bsondoc.ObjectID)
		return ok && av == bv
	case bsondoc.Array:
		bv, ok := b.(bsondoc.Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *bsondoc.Document:
		bv, ok := b.(*bsondoc.Document)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Range(func(k string, v bsondoc.Value) bool {
			bval, ok := bv.Get(k)
			if !ok || !deepEqual(v, bval) {
				equal = false
				return false
			}
			return true
		})
		return equal
	}
	return false
}
