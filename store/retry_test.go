package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

// flakyStore fails its first N Get/Put calls with ErrTransient, then
// delegates to the wrapped store; other methods always delegate.
type flakyStore struct {
	store.Store
	failuresLeft int
	putCalls     int
}

func (f *flakyStore) Get(ctx context.Context, key string, rng *store.Range) ([]byte, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, store.ErrTransient
	}
	return f.Store.Get(ctx, key, rng)
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte, opts store.PutOptions) error {
	f.putCalls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return store.ErrTransient
	}
	return f.Store.Put(ctx, key, data, opts)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyStore{Store: memstore.New("s3"), failuresLeft: 2}
	require.NoError(t, inner.Store.Put(context.Background(), "key", []byte("v"), store.PutOptions{}))

	retried := store.WithRetry(inner, 5)
	data, err := retried.Get(context.Background(), "key", nil)
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyStore{Store: memstore.New("s3"), failuresLeft: 10}
	retried := store.WithRetry(inner, 3)

	_, err := retried.Get(context.Background(), "key", nil)
	assert.True(t, errors.Is(err, store.ErrTransient))
}

func TestRetryDoesNotRetryConditionalPut(t *testing.T) {
	inner := &flakyStore{Store: memstore.New("s3"), failuresLeft: 1}
	retried := store.WithRetry(inner, 5)

	err := retried.Put(context.Background(), "key", []byte("v"), store.PutOptions{IfNoneMatch: true})
	assert.True(t, errors.Is(err, store.ErrTransient))
	assert.Equal(t, 1, inner.putCalls, "a conditional PUT must not be retried transparently")
}
