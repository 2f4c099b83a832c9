package bsondoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Decode parses a document starting at offset in b, returning the decoded
// Document and the number of bytes consumed.
func Decode(b []byte, offset int) (*Document, int, error) {
	if offset < 0 || offset+4 > len(b) {
		return nil, 0, fmt.Errorf("bsondoc: decode header: %w", ErrTruncated)
	}
	total := int(int32(binary.LittleEndian.Uint32(b[offset : offset+4])))
	if total < 5 || offset+total > len(b) {
		return nil, 0, fmt.Errorf("bsondoc: decode: declared length %d: %w", total, ErrTruncated)
	}

	doc := NewDocument()
	pos := offset + 4
	end := offset + total - 1 // position of the terminator byte

	for pos < end {
		tag := Kind(b[pos])
		pos++

		key, n, err := readCString(b, pos)
		if err != nil {
			return nil, 0, err
		}
		pos += n

		val, consumed, err := decodeValue(tag, b, pos, end)
		if err != nil {
			return nil, 0, err
		}
		pos += consumed

		if tag == KindArray {
			val = val.(*Document).ToArray()
		}
		doc.Set(key, val)
	}

	if pos != end {
		return nil, 0, fmt.Errorf("bsondoc: decode: element overruns document boundary: %w", ErrTruncated)
	}
	if b[end] != 0x00 {
		return nil, 0, fmt.Errorf("bsondoc: decode: missing terminator: %w", ErrTruncated)
	}
	return doc, total, nil
}

// readCString reads a zero-terminated UTF-8 string at pos, returning the
// string and the number of bytes consumed including the terminator.
func readCString(b []byte, pos int) (string, int, error) {
	if pos >= len(b) {
		return "", 0, fmt.Errorf("bsondoc: decode cstring: %w", ErrTruncated)
	}
	nul := bytes.IndexByte(b[pos:], 0x00)
	if nul < 0 {
		return "", 0, fmt.Errorf("bsondoc: decode cstring: unterminated: %w", ErrTruncated)
	}
	return string(b[pos : pos+nul]), nul + 1, nil
}

// need reports an error if reading n bytes starting at pos would run past
// the end of b or past boundary, the index of the enclosing document's
// terminator byte (valid payload bytes are [pos, boundary-1]).
func need(b []byte, pos, n int, boundary int) error {
	if n < 0 || pos+n > len(b) || pos+n > boundary {
		return fmt.Errorf("bsondoc: decode value: %w", ErrTruncated)
	}
	return nil
}

// decodeValue reads the payload for tag at pos, returning the decoded
// Value and the number of payload bytes consumed. boundary is the index of
// the enclosing document's terminator byte, used to reject payloads that
// would read past it.
func decodeValue(tag Kind, b []byte, pos, boundary int) (Value, int, error) {
	switch tag {
	case KindDouble:
		if err := need(b, pos, 8, boundary); err != nil {
			return nil, 0, err
		}
		bits := binary.LittleEndian.Uint64(b[pos : pos+8])
		return Double(math.Float64frombits(bits)), 8, nil

	case KindString, KindCode:
		s, n, err := readLenString(b, pos, boundary)
		if err != nil {
			return nil, 0, err
		}
		if tag == KindCode {
			return Code(s), n, nil
		}
		return String(s), n, nil

	case KindDocument, KindArray:
		sub, n, err := Decode(b, pos)
		if err != nil {
			return nil, 0, err
		}
		if pos+n > boundary {
			return nil, 0, fmt.Errorf("bsondoc: decode nested document: overruns enclosing document: %w", ErrTruncated)
		}
		return sub, n, nil

	case KindBinary:
		if err := need(b, pos, 5, boundary); err != nil {
			return nil, 0, err
		}
		length := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		subtype := b[pos+4]
		if length < 0 {
			return nil, 0, fmt.Errorf("bsondoc: decode binary: negative length: %w", ErrTruncated)
		}
		if err := need(b, pos+5, length, boundary); err != nil {
			return nil, 0, err
		}
		data := make([]byte, length)
		copy(data, b[pos+5:pos+5+length])
		return Binary{Subtype: subtype, Data: data}, 5 + length, nil

	case KindUndefined:
		return Absent, 0, nil

	case KindObjectID:
		if err := need(b, pos, 12, boundary); err != nil {
			return nil, 0, err
		}
		var id ObjectID
		copy(id[:], b[pos:pos+12])
		return id, 12, nil

	case KindBool:
		if err := need(b, pos, 1, boundary); err != nil {
			return nil, 0, err
		}
		return Bool(b[pos] != 0), 1, nil

	case KindDateTime:
		if err := need(b, pos, 8, boundary); err != nil {
			return nil, 0, err
		}
		return DateTime(int64(binary.LittleEndian.Uint64(b[pos : pos+8]))), 8, nil

	case KindNull:
		return Null, 0, nil

	case KindRegex:
		pattern, n1, err := readCString(b, pos)
		if err != nil {
			return nil, 0, err
		}
		options, n2, err := readCString(b, pos+n1)
		if err != nil {
			return nil, 0, err
		}
		return Regex{Pattern: pattern, Options: options}, n1 + n2, nil

	case KindInt32:
		if err := need(b, pos, 4, boundary); err != nil {
			return nil, 0, err
		}
		return Int32(int32(binary.LittleEndian.Uint32(b[pos : pos+4]))), 4, nil

	case KindTimestamp:
		if err := need(b, pos, 8, boundary); err != nil {
			return nil, 0, err
		}
		low := binary.LittleEndian.Uint32(b[pos : pos+4])
		high := binary.LittleEndian.Uint32(b[pos+4 : pos+8])
		return Timestamp{Low: low, High: high}, 8, nil

	case KindInt64:
		if err := need(b, pos, 8, boundary); err != nil {
			return nil, 0, err
		}
		return Int64(int64(binary.LittleEndian.Uint64(b[pos : pos+8]))), 8, nil

	case KindMinKey:
		return MinKey, 0, nil

	case KindMaxKey:
		return MaxKey, 0, nil
	}
	return nil, 0, fmt.Errorf("bsondoc: decode: tag 0x%02x: %w", byte(tag), ErrUnsupportedTag)
}

func readLenString(b []byte, pos, boundary int) (string, int, error) {
	if err := need(b, pos, 4, boundary); err != nil {
		return "", 0, err
	}
	length := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
	if length < 1 {
		return "", 0, fmt.Errorf("bsondoc: decode string: invalid length %d: %w", length, ErrTruncated)
	}
	if err := need(b, pos+4, length, boundary); err != nil {
		return "", 0, err
	}
	// length includes the trailing NUL terminator.
	return string(b[pos+4 : pos+4+length-1]), 4 + length, nil
}
