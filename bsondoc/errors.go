// Package bsondoc implements the self-describing binary document format:
// an ordered mapping from string keys to tagged values, encoded as a
// length-prefixed, null-terminated byte sequence.
package bsondoc

import "errors"

// Sentinel errors returned by Encode/Decode. Wrap with fmt.Errorf("%w", ...)
// for context; callers should match with errors.Is.
var (
	// ErrInvalidValue is returned when a value's kind is not in the
	// supported tag set.
	ErrInvalidValue = errors.New("bsondoc: invalid value")
	// ErrTruncated is returned when a declared length exceeds the bytes
	// available, or a document is otherwise malformed.
	ErrTruncated = errors.New("bsondoc: truncated")
	// ErrUnsupportedTag is returned when decode encounters a tag byte
	// outside the supported set.
	ErrUnsupportedTag = errors.New("bsondoc: unsupported tag")
)
