package bsondoc

import "strconv"

// Document is an ordered mapping from string keys to tagged values.
// Element order is preserved across Set/Decode; keys are unique.
type Document struct {
	keys   []string
	fields map[string]Value
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{fields: make(map[string]Value)}
}

// Doc is a convenience constructor for building a Document from alternating
// key/value pairs, useful in tests and for small literal replies.
func Doc(pairs ...any) *Document {
	d := NewDocument()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		d.Set(key, pairs[i+1].(Value))
	}
	return d
}

// Set assigns key to v, appending key to the end of the iteration order if
// it is new, or leaving its position unchanged if it already exists.
func (d *Document) Set(key string, v Value) *Document {
	if _, exists := d.fields[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = v
	return d
}

// Get returns the value at key and whether it was present.
func (d *Document) Get(key string) (Value, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Delete removes key, if present.
func (d *Document) Delete(key string) {
	if _, ok := d.fields[key]; !ok {
		return
	}
	delete(d.fields, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the document's keys in iteration order. The returned slice
// must not be mutated.
func (d *Document) Keys() []string {
	return d.keys
}

// Len returns the number of fields in the document.
func (d *Document) Len() int {
	return len(d.keys)
}

// Range calls fn for each field in order, stopping early if fn returns
// false.
func (d *Document) Range(fn func(key string, v Value) bool) {
	for _, k := range d.keys {
		if !fn(k, d.fields[k]) {
			return
		}
	}
}

// Clone returns a shallow copy of d: nested Documents and Arrays are not
// deep-copied.
func (d *Document) Clone() *Document {
	c := NewDocument()
	d.Range(func(k string, v Value) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// ToArray converts a document whose keys are the decimal stringifications
// "0","1",... into an ordered Array, stopping at the first missing index.
func (d *Document) ToArray() Array {
	arr := make(Array, 0, d.Len())
	for i := 0; ; i++ {
		v, ok := d.Get(strconv.Itoa(i))
		if !ok {
			break
		}
		arr = append(arr, v)
	}
	return arr
}

// ToDocument re-keys an Array as a Document with keys "0","1",... in order,
// the inverse of ToArray, used when encoding an Array under tag 0x04.
func (a Array) ToDocument() *Document {
	d := NewDocument()
	for i, v := range a {
		d.Set(strconv.Itoa(i), v)
	}
	return d
}
