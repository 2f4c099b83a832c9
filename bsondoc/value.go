package bsondoc

import (
	"math"
	"time"
)

// Kind is the one-byte element-type discriminator.
type Kind byte

const (
	KindDouble    Kind = 0x01
	KindString    Kind = 0x02
	KindDocument  Kind = 0x03
	KindArray     Kind = 0x04
	KindBinary    Kind = 0x05
	KindUndefined Kind = 0x06
	KindObjectID  Kind = 0x07
	KindBool      Kind = 0x08
	KindDateTime  Kind = 0x09
	KindNull      Kind = 0x0A
	KindRegex     Kind = 0x0B
	KindCode      Kind = 0x0D
	KindInt32     Kind = 0x10
	KindTimestamp Kind = 0x11
	KindInt64     Kind = 0x12
	KindMinKey    Kind = 0xFF
	KindMaxKey    Kind = 0x7F
)

// Value is any tagged value storable in a Document. Concrete types below
// are the complete supported tag set; a value of any other Go type is
// invalid (ErrInvalidValue) on Encode.
type Value interface {
	bsonValue()
}

// Double is tag 0x01.
type Double float64

// String is tag 0x02.
type String string

// Array is tag 0x04: a document whose keys are "0","1",... in order,
// round-tripped into an ordered Go slice.
type Array []Value

// Binary is tag 0x05.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Common binary subtypes.
const (
	BinaryGeneric  byte = 0x00
	BinaryFunction byte = 0x01
	BinaryUUIDOld  byte = 0x03
	BinaryUUID     byte = 0x04
	BinaryMD5      byte = 0x05
)

// Bool is tag 0x08.
type Bool bool

// DateTime is tag 0x09: milliseconds since the Unix epoch.
type DateTime int64

// NewDateTime converts a time.Time to a DateTime, truncating to millisecond
// precision.
func NewDateTime(t time.Time) DateTime {
	return DateTime(t.UnixMilli())
}

// Time converts a DateTime back to a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return time.UnixMilli(int64(d)).UTC()
}

// Regex is tag 0x0B.
type Regex struct {
	Pattern string
	Options string
}

// Code is tag 0x0D: JavaScript-style code, string-encoded on the wire.
type Code string

// Int32 is tag 0x10, always encoded as a 4-byte int regardless of value.
type Int32 int32

// Timestamp is tag 0x11: two uint32 fields, low then high, as they appear
// on the wire.
type Timestamp struct {
	Low  uint32
	High uint32
}

// Int64 is tag 0x12. An explicit Int64 value always encodes as int64,
// regardless of magnitude.
type Int64 int64

type undefinedType struct{}

// Undefined is tag 0x06: accepted on decode, never emitted on encode (an
// Undefined field is omitted on encode, exactly like Absent).
var Undefined Value = undefinedType{}

type nullType struct{}

// Null is tag 0x0A: an explicit null, distinct from an absent field.
var Null Value = nullType{}

type minKeyType struct{}

// MinKey is tag 0xFF.
var MinKey Value = minKeyType{}

type maxKeyType struct{}

// MaxKey is tag 0x7F.
var MaxKey Value = maxKeyType{}

type absentType struct{}

// Absent is the in-memory marker meaning "field not present." Setting a
// Document field to Absent causes Encode to omit it entirely (no tag, no
// key, no payload); field-path resolution returns Absent for any path that
// does not exist.
var Absent Value = absentType{}

func (Double) bsonValue()        {}
func (String) bsonValue()        {}
func (*Document) bsonValue()     {}
func (Array) bsonValue()         {}
func (Binary) bsonValue()        {}
func (Bool) bsonValue()          {}
func (DateTime) bsonValue()      {}
func (Regex) bsonValue()         {}
func (Code) bsonValue()          {}
func (Int32) bsonValue()         {}
func (Timestamp) bsonValue()     {}
func (Int64) bsonValue()         {}
func (ObjectID) bsonValue()      {}
func (undefinedType) bsonValue() {}
func (nullType) bsonValue()      {}
func (minKeyType) bsonValue()    {}
func (maxKeyType) bsonValue()    {}
func (absentType) bsonValue()    {}

// IsAbsent reports whether v is the Absent sentinel (nil counts as absent
// too, for callers that use a bare nil to mean "no value").
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(absentType)
	return ok
}

// KindOf returns the wire tag for v, or ok=false if v is not a supported
// value (including Absent, which has no wire tag of its own). Undefined
// reports KindUndefined; it only ever appears transiently during decode.
func KindOf(v Value) (Kind, bool) {
	switch v.(type) {
	case Double:
		return KindDouble, true
	case String:
		return KindString, true
	case *Document:
		return KindDocument, true
	case Array:
		return KindArray, true
	case Binary:
		return KindBinary, true
	case ObjectID:
		return KindObjectID, true
	case Bool:
		return KindBool, true
	case DateTime:
		return KindDateTime, true
	case nullType:
		return KindNull, true
	case Regex:
		return KindRegex, true
	case Code:
		return KindCode, true
	case Int32:
		return KindInt32, true
	case Timestamp:
		return KindTimestamp, true
	case Int64:
		return KindInt64, true
	case minKeyType:
		return KindMinKey, true
	case maxKeyType:
		return KindMaxKey, true
	case undefinedType:
		return KindUndefined, true
	}
	return 0, false
}

// NewNumber returns an Int32 or Int64 Value for n, depending on whether it
// fits the int32 range — the encoder's numeric policy for generic
// application-level integers. Use Int64(n) directly when the
// value must always encode as int64 regardless of magnitude.
func NewNumber(n int64) Value {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Int32(int32(n))
	}
	return Int64(n)
}
