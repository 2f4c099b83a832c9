package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/bsondoc"
	"github.com/solatis/mongofront/crud"
	"github.com/solatis/mongofront/storage"
)

func TestInsertAndFindGeneratesFromModel(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStore()
	ns := crud.Namespace{Database: "test", Collection: "users"}

	err := s.Insert(ctx, ns, []*bsondoc.Document{
		bsondoc.Doc("name", bsondoc.String("alice"), "age", bsondoc.Int32(30)),
		bsondoc.Doc("name", bsondoc.String("bob"), "age", bsondoc.Int32(25)),
	})
	require.NoError(t, err)

	docs, err := s.Find(ctx, ns, bsondoc.NewDocument(), nil, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	for _, d := range docs {
		name, ok := d.Get("name")
		require.True(t, ok)
		_, isString := name.(bsondoc.String)
		require.True(t, isString)
	}
}

func TestFindPinsEqualityConstraint(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStore()
	ns := crud.Namespace{Database: "test", Collection: "users"}

	require.NoError(t, s.Insert(ctx, ns, []*bsondoc.Document{
		bsondoc.Doc("name", bsondoc.String("alice")),
		bsondoc.Doc("name", bsondoc.String("bob")),
	}))

	docs, err := s.Find(ctx, ns, bsondoc.Doc("name", bsondoc.String("alice")), nil, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, d := range docs {
		v, _ := d.Get("name")
		require.Equal(t, bsondoc.String("alice"), v)
	}
}

func TestCountEmptyNamespace(t *testing.T) {
	s := storage.NewStore()
	ns := crud.Namespace{Database: "test", Collection: "empty"}
	n, err := s.Count(context.Background(), ns, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestUpdateUpsertCreatesDocument(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStore()
	ns := crud.Namespace{Database: "test", Collection: "users"}

	result, err := s.Update(ctx, ns, bsondoc.Doc("name", bsondoc.String("carol")),
		bsondoc.Doc("$set", bsondoc.Doc("age", bsondoc.Int32(40))), true, false)
	require.NoError(t, err)
	require.Len(t, result.Upserted, 1)
}

func TestListDatabasesAndCollections(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStore()
	ns := crud.Namespace{Database: "app", Collection: "widgets"}
	require.NoError(t, s.Insert(ctx, ns, []*bsondoc.Document{bsondoc.Doc("a", bsondoc.Int32(1))}))

	dbs, err := s.ListDatabases(ctx)
	require.NoError(t, err)
	require.Contains(t, dbs, "app")

	colls, err := s.ListCollections(ctx, "app")
	require.NoError(t, err)
	require.Contains(t, colls, "widgets")
}

func TestCreateAndListIndexes(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStore()
	ns := crud.Namespace{Database: "app", Collection: "widgets"}

	n, err := s.CreateIndexes(ctx, ns, []crud.IndexSpec{
		{Name: "name_1", Key: bsondoc.Doc("name", bsondoc.Int32(1))},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	specs, err := s.ListIndexes(ctx, ns)
	require.NoError(t, err)
	require.Len(t, specs, 2) // implicit _id_ plus the created one
}
