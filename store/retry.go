package store

import (
	"context"
	"errors"
	"math"
	"time"
)

// retrying wraps a Store with exponential backoff retry for
// ErrTransient failures, up to a configured attempt cap. It never
// retries ErrConflict (that's the caller's job, per spec §4.D) or
// ErrAccessDenied/ErrNotFound.
type retrying struct {
	Store
	maxAttempts int
	baseDelay   time.Duration
}

// WithRetry wraps s so that transient failures are retried with
// exponential backoff, up to maxAttempts total tries (including the
// first), per spec §4.A's "Transient (retry with exponential backoff,
// up to a configured cap)".
func WithRetry(s Store, maxAttempts int) Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retrying{Store: s, maxAttempts: maxAttempts, baseDelay: 100 * time.Millisecond}
}

func (r *retrying) do(ctx context.Context, f func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = f()
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		delay := time.Duration(math.Pow(2, float64(attempt))) * r.baseDelay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (r *retrying) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := r.do(ctx, func() error {
		var innerErr error
		out, innerErr = r.Store.List(ctx, prefix, recursive)
		return innerErr
	})
	return out, err
}

func (r *retrying) Head(ctx context.Context, key string) (ObjectInfo, error) {
	var out ObjectInfo
	err := r.do(ctx, func() error {
		var innerErr error
		out, innerErr = r.Store.Head(ctx, key)
		return innerErr
	})
	return out, err
}

func (r *retrying) Get(ctx context.Context, key string, rng *Range) ([]byte, error) {
	var out []byte
	err := r.do(ctx, func() error {
		var innerErr error
		out, innerErr = r.Store.Get(ctx, key, rng)
		return innerErr
	})
	return out, err
}

func (r *retrying) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	// Conditional PUTs must not be retried transparently: a transient
	// failure after the object was actually created would make a
	// blind retry look like (and get reported as) a conflict.
	if opts.IfNoneMatch {
		return r.Store.Put(ctx, key, data, opts)
	}
	return r.do(ctx, func() error {
		return r.Store.Put(ctx, key, data, opts)
	})
}

func (r *retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, func() error {
		return r.Store.Delete(ctx, key)
	})
}

func (r *retrying) DeletePrefix(ctx context.Context, prefix string) error {
	return r.do(ctx, func() error {
		return r.Store.DeletePrefix(ctx, prefix)
	})
}

func (r *retrying) Exists(ctx context.Context, key string) (bool, error) {
	var out bool
	err := r.do(ctx, func() error {
		var innerErr error
		out, innerErr = r.Store.Exists(ctx, key)
		return innerErr
	})
	return out, err
}
