package match_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/match"
)

func TestMatchesSimpleEquality(t *testing.T) {
	doc := bsondoc.Doc("name", bsondoc.String("alice"), "age", bsondoc.Int32(30))
	require.True(t, match.Matches(doc, bsondoc.Doc("name", bsondoc.String("alice"))))
	require.False(t, match.Matches(doc, bsondoc.Doc("name", bsondoc.String("bob"))))
}

func TestMatchesNullEqualsAbsent(t *testing.T) {
	doc := bsondoc.Doc("name", bsondoc.String("alice"))
	require.True(t, match.Matches(doc, bsondoc.Doc("missing", bsondoc.Null)))
}

func TestMatchesComparisonOperators(t *testing.T) {
	doc := bsondoc.Doc("age", bsondoc.Int32(30))
	require.True(t, match.Matches(doc, bsondoc.Doc("age", bsondoc.Doc("$gt", bsondoc.Int32(20)))))
	require.False(t, match.Matches(doc, bsondoc.Doc("age", bsondoc.Doc("$gt", bsondoc.Int32(40)))))
	require.True(t, match.Matches(doc, bsondoc.Doc("age", bsondoc.Doc("$in", bsondoc.Array{bsondoc.Int32(30), bsondoc.Int32(31)}))))
}

func TestMatchesExists(t *testing.T) {
	doc := bsondoc.Doc("age", bsondoc.Int32(30))
	require.True(t, match.Matches(doc, bsondoc.Doc("age", bsondoc.Doc("$exists", bsondoc.Bool(true)))))
	require.False(t, match.Matches(doc, bsondoc.Doc("missing", bsondoc.Doc("$exists", bsondoc.Bool(true)))))
}

func TestMatchesLogicalAnd(t *testing.T) {
	doc := bsondoc.Doc("a", bsondoc.Int32(1), "b", bsondoc.Int32(2))
	query := bsondoc.Doc("$and", bsondoc.Array{
		bsondoc.Doc("a", bsondoc.Int32(1)),
		bsondoc.Doc("b", bsondoc.Int32(2)),
	})
	require.True(t, match.Matches(doc, query))
}

func TestMatchesElemMatch(t *testing.T) {
	doc := bsondoc.Doc("items", bsondoc.Array{
		bsondoc.Doc("qty", bsondoc.Int32(5)),
		bsondoc.Doc("qty", bsondoc.Int32(15)),
	})
	query := bsondoc.Doc("items", bsondoc.Doc("$elemMatch", bsondoc.Doc("qty", bsondoc.Doc("$gt", bsondoc.Int32(10)))))
	require.True(t, match.Matches(doc, query))
}

func TestProjectInclusion(t *testing.T) {
	doc := bsondoc.Doc("_id", bsondoc.Int32(1), "a", bsondoc.Int32(1), "b", bsondoc.Int32(2))
	out := match.Project(doc, bsondoc.Doc("a", bsondoc.Int32(1)))
	require.Equal(t, []string{"_id", "a"}, out.Keys())
}

func TestProjectExclusion(t *testing.T) {
	doc := bsondoc.Doc("_id", bsondoc.Int32(1), "a", bsondoc.Int32(1), "b", bsondoc.Int32(2))
	out := match.Project(doc, bsondoc.Doc("b", bsondoc.Int32(0)))
	require.Equal(t, []string{"_id", "a"}, out.Keys())
}

func TestSortMultiKey(t *testing.T) {
	docs := []*bsondoc.Document{
		bsondoc.Doc("a", bsondoc.Int32(1), "b", bsondoc.Int32(2)),
		bsondoc.Doc("a", bsondoc.Int32(1), "b", bsondoc.Int32(1)),
		bsondoc.Doc("a", bsondoc.Int32(0), "b", bsondoc.Int32(9)),
	}
	match.Sort(docs, []match.SortSpec{{Field: "a"}, {Field: "b"}})

	v0, _ := docs[0].Get("a")
	require.Equal(t, bsondoc.Int32(0), v0)
	v1, _ := docs[1].Get("b")
	require.Equal(t, bsondoc.Int32(1), v1)
}

func TestAggregateGroupSort(t *testing.T) {
	docs := []*bsondoc.Document{
		bsondoc.Doc("category", bsondoc.String("fruit"), "qty", bsondoc.Int32(3)),
		bsondoc.Doc("category", bsondoc.String("fruit"), "qty", bsondoc.Int32(2)),
		bsondoc.Doc("category", bsondoc.String("veg"), "qty", bsondoc.Int32(10)),
	}
	pipeline := bsondoc.Array{
		bsondoc.Doc("$group", bsondoc.Doc(
			"_id", bsondoc.String("$category"),
			"total", bsondoc.Doc("$sum", bsondoc.String("$qty")),
		)),
		bsondoc.Doc("$sort", bsondoc.Doc("_id", bsondoc.Int32(1))),
	}
	out, err := match.Aggregate(docs, pipeline)
	require.NoError(t, err)
	require.Len(t, out, 2)

	id0, _ := out[0].Get("_id")
	require.Equal(t, bsondoc.String("fruit"), id0)
	total0, _ := out[0].Get("total")
	require.Equal(t, bsondoc.Double(5), total0)
}

func TestUnwind(t *testing.T) {
	docs := []*bsondoc.Document{
		bsondoc.Doc("tags", bsondoc.Array{bsondoc.String("a"), bsondoc.String("b")}),
	}
	out := match.Unwind(docs, "$tags")
	require.Len(t, out, 2)
	v, _ := out[0].Get("tags")
	require.Equal(t, bsondoc.String("a"), v)
}
