package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a/b.txt", []byte("hello"), store.PutOptions{}))

	data, err := s.Get(ctx, "a/b.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := memstore.New("s3")
	_, err := s.Get(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPutIfNoneMatchConflicts(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "key", []byte("v1"), store.PutOptions{IfNoneMatch: true}))

	err := s.Put(ctx, "key", []byte("v2"), store.PutOptions{IfNoneMatch: true})
	assert.True(t, errors.Is(err, store.ErrConflict))

	data, _ := s.Get(ctx, "key", nil)
	assert.Equal(t, "v1", string(data))
}

func TestListNonRecursiveGroupsOneLevel(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "root/a/1.txt", []byte("x"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "root/a/2.txt", []byte("y"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "root/b/1.txt", []byte("z"), store.PutOptions{}))

	entries, err := s.List(ctx, "root/", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.IsPrefix)
	}
}

func TestListRecursiveReturnsLeaves(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "root/a/1.txt", []byte("x"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "root/b/1.txt", []byte("z"), store.PutOptions{}))

	entries, err := s.List(ctx, "root/", true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.IsPrefix)
	}
}

func TestGetRangeReturnsSubslice(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "key", []byte("0123456789"), store.PutOptions{}))

	data, err := s.Get(ctx, "key", &store.Range{Offset: 2, Length: 3})
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))
}

func TestDeletePrefixRemovesAllMatching(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "root/a", []byte("x"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "root/b", []byte("y"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "other/c", []byte("z"), store.PutOptions{}))

	require.NoError(t, s.DeletePrefix(ctx, "root/"))

	exists, _ := s.Exists(ctx, "root/a")
	assert.False(t, exists)
	exists, _ = s.Exists(ctx, "other/c")
	assert.True(t, exists)
}
