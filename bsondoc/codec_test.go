package bsondoc_test

import (
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
)

func TestEncodeEmptyDocument(t *testing.T) {
	buf, err := bsondoc.Encode(bsondoc.NewDocument())
	require.NoError(t, err)
	require.Equal(t, "0500000000", hex.EncodeToString(buf))
}

func TestEncodeEmptyArray(t *testing.T) {
	d := bsondoc.NewDocument()
	d.Set("a", bsondoc.Array{})
	buf, err := bsondoc.Encode(d)
	require.NoError(t, err)

	// total doc: len(4) + tag(1) + "a\0"(2) + nested-empty-doc(5) + term(1) = 13
	require.Len(t, buf, 13)

	decoded, n, err := bsondoc.Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	v, ok := decoded.Get("a")
	require.True(t, ok)
	require.Equal(t, bsondoc.Array{}, v)
}

func TestCodecRoundTrip(t *testing.T) {
	oid := bsondoc.NewObjectID()
	now := time.UnixMilli(1_700_000_000_123)

	doc := bsondoc.NewDocument()
	doc.Set("double", bsondoc.Double(-0.0))
	doc.Set("negZero", bsondoc.Double(math.Copysign(0, -1)))
	doc.Set("str", bsondoc.String("hello"))
	doc.Set("unicodeKey一二三", bsondoc.String("v"))
	doc.Set("sub", bsondoc.NewDocument().Set("x", bsondoc.Int32(1)))
	doc.Set("arr", bsondoc.Array{bsondoc.Int32(1), bsondoc.String("two"), bsondoc.Bool(true)})
	doc.Set("bin", bsondoc.Binary{Subtype: bsondoc.BinaryGeneric, Data: []byte{1, 2, 3}})
	doc.Set("oid", oid)
	doc.Set("bool", bsondoc.Bool(true))
	doc.Set("date", bsondoc.NewDateTime(now))
	doc.Set("null", bsondoc.Null)
	doc.Set("regex", bsondoc.Regex{Pattern: "^a.*z$", Options: "gims"})
	doc.Set("code", bsondoc.Code("function(){}"))
	doc.Set("i32", bsondoc.Int32(42))
	doc.Set("i32neg", bsondoc.Int32(-42))
	doc.Set("ts", bsondoc.Timestamp{Low: 1, High: 2})
	doc.Set("i64", bsondoc.Int64(1<<40))
	doc.Set("minKey", bsondoc.MinKey)
	doc.Set("maxKey", bsondoc.MaxKey)

	buf, err := bsondoc.Encode(doc)
	require.NoError(t, err)

	decoded, n, err := bsondoc.Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	require.Equal(t, doc.Keys(), decoded.Keys())

	v, _ := decoded.Get("str")
	require.Equal(t, bsondoc.String("hello"), v)

	v, _ = decoded.Get("arr")
	require.Equal(t, bsondoc.Array{bsondoc.Int32(1), bsondoc.String("two"), bsondoc.Bool(true)}, v)

	v, _ = decoded.Get("oid")
	require.Equal(t, oid, v)

	v, _ = decoded.Get("date")
	require.Equal(t, now.UnixMilli(), int64(v.(bsondoc.DateTime)))

	v, _ = decoded.Get("regex")
	require.Equal(t, bsondoc.Regex{Pattern: "^a.*z$", Options: "imsg"}, v) // canonicalized order

	v, _ = decoded.Get("i64")
	require.Equal(t, bsondoc.Int64(1<<40), v)

	v, _ = decoded.Get("negZero")
	require.Equal(t, math.Copysign(0, -1), float64(v.(bsondoc.Double)))
}

func TestEncodeNumericPolicy(t *testing.T) {
	require.Equal(t, bsondoc.Int32(5), bsondoc.NewNumber(5))
	require.Equal(t, bsondoc.Int32(math.MaxInt32), bsondoc.NewNumber(math.MaxInt32))
	require.Equal(t, bsondoc.Int64(math.MaxInt32+1), bsondoc.NewNumber(math.MaxInt32+1))
	require.Equal(t, bsondoc.Int64(math.MinInt32-1), bsondoc.NewNumber(math.MinInt32-1))

	// An explicit Int64 always encodes as int64 regardless of magnitude.
	doc := bsondoc.NewDocument().Set("x", bsondoc.Int64(5))
	buf, err := bsondoc.Encode(doc)
	require.NoError(t, err)
	require.Equal(t, byte(bsondoc.KindInt64), buf[4])
}

func TestAbsentFieldOmittedOnEncode(t *testing.T) {
	doc := bsondoc.NewDocument()
	doc.Set("present", bsondoc.Int32(1))
	doc.Set("gone", bsondoc.Absent)

	buf, err := bsondoc.Encode(doc)
	require.NoError(t, err)

	decoded, _, err := bsondoc.Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"present"}, decoded.Keys())
}

func TestUndefinedDecodesToAbsentAndIsDroppedOnReencode(t *testing.T) {
	// Hand-build a document with one undefined field (tag 0x06) and one
	// int32 field: len(4) + [0x06 "u\0"] + [0x10 "x\0" 01 00 00 00] + term(1)
	raw := []byte{
		0, 0, 0, 0, // length placeholder, patched below
		0x06, 'u', 0x00,
		0x10, 'x', 0x00, 0x01, 0x00, 0x00, 0x00,
		0x00,
	}
	raw[0] = byte(len(raw))

	decoded, n, err := bsondoc.Decode(raw, 0)
	require.NoError(t, err)
	require.Equal(t, len(raw), n)

	v, ok := decoded.Get("u")
	require.True(t, ok)
	require.True(t, bsondoc.IsAbsent(v))

	reencoded, err := bsondoc.Encode(decoded)
	require.NoError(t, err)
	again, _, err := bsondoc.Decode(reencoded, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, again.Keys())
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := bsondoc.Decode([]byte{10, 0, 0, 0}, 0)
	require.ErrorIs(t, err, bsondoc.ErrTruncated)

	// Declared length exceeds available bytes.
	_, _, err = bsondoc.Decode([]byte{100, 0, 0, 0, 0}, 0)
	require.ErrorIs(t, err, bsondoc.ErrTruncated)
}

func TestDecodeUnsupportedTag(t *testing.T) {
	raw := []byte{
		0, 0, 0, 0,
		0x99, 'x', 0x00,
		0x00,
	}
	raw[0] = byte(len(raw))
	_, _, err := bsondoc.Decode(raw, 0)
	require.ErrorIs(t, err, bsondoc.ErrUnsupportedTag)
}

func TestEncodeLengthPrefixMatchesBytesWritten(t *testing.T) {
	doc := bsondoc.NewDocument()
	for i := 0; i < 50; i++ {
		doc.Set(hex.EncodeToString([]byte{byte(i)}), bsondoc.String("value"))
	}
	buf, err := bsondoc.Encode(doc)
	require.NoError(t, err)

	declared := int(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	require.Equal(t, len(buf), declared)
}

func TestObjectIDMonotonicCounter(t *testing.T) {
	var last uint32
	first := true
	for range 1000 {
		id := bsondoc.NewObjectID()
		c := id.Counter()
		if !first {
			require.Greater(t, c, last)
		}
		last = c
		first = false
	}
}
