// Package store implements the Object-Store Gateway: a uniform
// list/head/get-range/put/delete/exists capability set over S3 and
// Azure Blob/DFS, with separate credentials per role (source, target).
//
// Grounded on akashsharma95-artic-mirror/storage/storage.go's Storage
// interface, generalized to the full capability set spec §4.A
// requires, and on original_source/guidewire/storage.py's BaseStorage
// for the read/write/list/delete operation split.
package store

import (
	"context"
	"errors"
	"time"
)

// ObjectInfo describes one object as returned by List or Head.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string
	ModTime time.Time
	// IsPrefix is true for entries returned by a non-recursive List that
	// represent a "directory" (a common prefix), not a leaf object.
	IsPrefix bool
}

// Range requests a byte range [Offset, Offset+Length) from Get. A nil
// *Range means "read the whole object".
type Range struct {
	Offset int64
	Length int64
}

// PutOptions configures a Put call.
type PutOptions struct {
	// IfNoneMatch requests a conditional PUT that fails with ErrConflict
	// if the key already exists (S3/Azure "If-None-Match: *").
	IfNoneMatch bool
	ContentType string
}

// Store is the uniform capability set the Batch Planner and Delta Log
// Writer are written against; S3 and Azure backends implement it, and
// store/memstore provides a deterministic in-memory test double.
type Store interface {
	// List returns the immediate (recursive=false) or full (recursive=true)
	// listing under prefix. Non-recursive listings return IsPrefix=true
	// entries for one-level-deep "directories".
	List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string, rng *Range) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object beneath prefix; used by the
	// reset/full-rebuild path.
	DeletePrefix(ctx context.Context, prefix string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scheme reports the URI scheme this store's absolute object paths
	// use (e.g. "s3", "abfss"), so the Delta Log Writer can emit correct
	// add.path values pointing back at the source store.
	Scheme() string
	// URIFor returns the absolute URI for key in this store (e.g.
	// "s3://bucket/key" or "abfss://container@account.dfs.core.windows.net/key"),
	// used by the Delta Log Writer to build add.path values that point
	// back at the source store regardless of which store hosts the
	// Delta log itself.
	URIFor(key string) string
}

// Gateways bundles the two named roles from spec §4.A: source (CDA
// parquet + manifest, read-only) and target (Delta log, read/write).
type Gateways struct {
	Source Store
	Target Store
}

// Failure modes from spec §4.A.
var (
	ErrNotFound     = errors.New("object not found")
	ErrTransient    = errors.New("transient store error")
	ErrAccessDenied = errors.New("access denied")
	ErrConflict     = errors.New("conditional write conflict")
)
