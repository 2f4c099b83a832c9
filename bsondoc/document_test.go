package bsondoc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
)

func TestDocumentOrderPreserved(t *testing.T) {
	d := bsondoc.NewDocument()
	d.Set("c", bsondoc.Int32(3))
	d.Set("a", bsondoc.Int32(1))
	d.Set("b", bsondoc.Int32(2))

	require.Equal(t, []string{"c", "a", "b"}, d.Keys())

	d.Set("a", bsondoc.Int32(99)) // re-set does not move position
	require.Equal(t, []string{"c", "a", "b"}, d.Keys())
	v, ok := d.Get("a")
	require.True(t, ok)
	require.Equal(t, bsondoc.Int32(99), v)
}

func TestDocumentDelete(t *testing.T) {
	d := bsondoc.NewDocument()
	d.Set("a", bsondoc.Int32(1))
	d.Set("b", bsondoc.Int32(2))
	d.Delete("a")

	require.Equal(t, []string{"b"}, d.Keys())
	_, ok := d.Get("a")
	require.False(t, ok)
}

func TestArrayRoundTrip(t *testing.T) {
	arr := bsondoc.Array{bsondoc.Int32(10), bsondoc.Int32(20), bsondoc.Int32(30)}
	doc := arr.ToDocument()
	require.Equal(t, []string{"0", "1", "2"}, doc.Keys())

	back := doc.ToArray()
	require.Equal(t, arr, back)
}

func TestArrayToArrayStopsAtFirstGap(t *testing.T) {
	doc := bsondoc.NewDocument()
	doc.Set("0", bsondoc.Int32(1))
	doc.Set("2", bsondoc.Int32(3)) // index 1 missing
	arr := doc.ToArray()
	require.Equal(t, bsondoc.Array{bsondoc.Int32(1)}, arr)
}
