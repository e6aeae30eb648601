// Package memstore is an in-memory Store used as a deterministic test
// double for the Object-Store Gateway, standing in for the fake
// filesystem approach original_source/tests/test_storage.py and
// tests/test_delta_log.py use against a real (if ephemeral) backend.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cda-delta-clone/store"
)

// Store is a concurrency-safe in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	scheme  string
}

// New builds an empty in-memory store. scheme is returned by Scheme(),
// letting tests exercise both the "s3" and "abfss" code paths.
func New(scheme string) *Store {
	if scheme == "" {
		scheme = "s3"
	}
	return &Store{objects: make(map[string][]byte), scheme: scheme}
}

func (s *Store) Scheme() string { return s.scheme }

func (s *Store) URIFor(key string) string {
	return fmt.Sprintf("%s://memstore/%s", s.scheme, normalize(key))
}

func normalize(key string) string {
	key = strings.TrimPrefix(key, "/")
	for _, scheme := range []string{"s3://", "abfss://"} {
		rest, ok := strings.CutPrefix(key, scheme)
		if !ok {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			return rest[idx+1:]
		}
		return ""
	}
	return key
}

func (s *Store) List(ctx context.Context, prefix string, recursive bool) ([]store.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = normalize(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if recursive {
		var out []store.ObjectInfo
		for k, v := range s.objects {
			if strings.HasPrefix(k, prefix) {
				out = append(out, store.ObjectInfo{Key: k, Size: int64(len(v)), ModTime: time.Unix(0, 0)})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, nil
	}

	seenPrefixes := map[string]bool{}
	var out []store.ObjectInfo
	for k, v := range s.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			child := rest[:idx]
			if !seenPrefixes[child] {
				seenPrefixes[child] = true
				out = append(out, store.ObjectInfo{Key: prefix + child, IsPrefix: true})
			}
			continue
		}
		out = append(out, store.ObjectInfo{Key: k, Size: int64(len(v)), ModTime: time.Unix(0, 0)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Head(ctx context.Context, key string) (store.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key = normalize(key)
	v, ok := s.objects[key]
	if !ok {
		return store.ObjectInfo{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return store.ObjectInfo{Key: key, Size: int64(len(v)), ModTime: time.Unix(0, 0)}, nil
}

func (s *Store) Get(ctx context.Context, key string, rng *store.Range) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key = normalize(key)
	v, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if rng == nil {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	end := rng.Offset + rng.Length
	if end > int64(len(v)) {
		end = int64(len(v))
	}
	if rng.Offset > int64(len(v)) {
		return nil, fmt.Errorf("range out of bounds for %s", key)
	}
	out := make([]byte, end-rng.Offset)
	copy(out, v[rng.Offset:end])
	return out, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, opts store.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = normalize(key)
	if opts.IfNoneMatch {
		if _, exists := s.objects[key]; exists {
			return fmt.Errorf("%w: %s already exists", store.ErrConflict, key)
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, normalize(key))
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix = normalize(prefix)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[normalize(key)]
	return ok, nil
}
