package bsondoc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encode serializes doc into the binary document format: a 4-byte
// little-endian total length (inclusive of itself and the terminator),
// the elements in iteration order, and a trailing 0x00 terminator.
//
// This streams directly into a growable []byte and patches the length
// prefix once the body is known, rather than precomputing the length in a
// first pass — there is no second length computation to keep in sync with
// the first, so the two can never disagree.
func Encode(doc *Document) ([]byte, error) {
	buf := make([]byte, 4, 64)
	buf, err := appendElements(buf, doc)
	if err != nil {
		return nil, err
	}
	buf = append(buf, 0x00)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	return buf, nil
}

func appendElements(buf []byte, doc *Document) ([]byte, error) {
	var err error
	doc.Range(func(key string, v Value) bool {
		if IsAbsent(v) {
			return true
		}
		if _, ok := v.(undefinedType); ok {
			return true
		}
		buf, err = appendElement(buf, key, v)
		return err == nil
	})
	return buf, err
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0x00)
}

func appendElement(buf []byte, key string, v Value) ([]byte, error) {
	kind, ok := KindOf(v)
	if !ok {
		return buf, fmt.Errorf("%w: unsupported value %T for key %q", ErrInvalidValue, v, key)
	}
	buf = append(buf, byte(kind))
	buf = appendCString(buf, key)
	return appendPayload(buf, kind, v)
}

func appendPayload(buf []byte, kind Kind, v Value) ([]byte, error) {
	switch kind {
	case KindDouble:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(float64(v.(Double))))
		return append(buf, tmp[:]...), nil

	case KindString, KindCode:
		var s string
		if kind == KindCode {
			s = string(v.(Code))
		} else {
			s = string(v.(String))
		}
		return appendLenString(buf, s), nil

	case KindDocument:
		sub, err := Encode(v.(*Document))
		if err != nil {
			return buf, err
		}
		return append(buf, sub...), nil

	case KindArray:
		sub, err := Encode(v.(Array).ToDocument())
		if err != nil {
			return buf, err
		}
		return append(buf, sub...), nil

	case KindBinary:
		b := v.(Binary)
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(b.Data)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, b.Subtype)
		return append(buf, b.Data...), nil

	case KindObjectID:
		id := v.(ObjectID)
		return append(buf, id[:]...), nil

	case KindBool:
		if bool(v.(Bool)) {
			return append(buf, 0x01), nil
		}
		return append(buf, 0x00), nil

	case KindDateTime:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v.(DateTime))))
		return append(buf, tmp[:]...), nil

	case KindNull, KindMinKey, KindMaxKey:
		return buf, nil

	case KindRegex:
		r := v.(Regex)
		buf = appendCString(buf, r.Pattern)
		return appendCString(buf, canonicalRegexFlags(r.Options)), nil

	case KindInt32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(int32(v.(Int32))))
		return append(buf, tmp[:]...), nil

	case KindTimestamp:
		ts := v.(Timestamp)
		var tmp [8]byte
		binary.LittleEndian.PutUint32(tmp[0:4], ts.Low)
		binary.LittleEndian.PutUint32(tmp[4:8], ts.High)
		return append(buf, tmp[:]...), nil

	case KindInt64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v.(Int64))))
		return append(buf, tmp[:]...), nil
	}
	return buf, fmt.Errorf("%w: unhandled kind 0x%02x", ErrInvalidValue, byte(kind))
}

func appendLenString(buf []byte, s string) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)+1))
	buf = append(buf, tmp[:]...)
	buf = append(buf, s...)
	return append(buf, 0x00)
}

// canonicalRegexFlags renders a regex flag set as the canonical lowercase
// letters i,m,s,u in that fixed order, then g if present; any other
// character is dropped.
func canonicalRegexFlags(flags string) string {
	present := make(map[byte]bool, len(flags))
	for i := 0; i < len(flags); i++ {
		present[flags[i]] = true
	}
	var b strings.Builder
	for _, c := range []byte("imsu") {
		if present[c] {
			b.WriteByte(c)
		}
	}
	if present['g'] {
		b.WriteByte('g')
	}
	return b.String()
}
