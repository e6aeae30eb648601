package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/deltalog"
	"cda-delta-clone/manifest"
	"cda-delta-clone/planner"
	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

// putParquetPlaceholder writes a non-parquet body under key; these
// tests only need List/Head-visible files, never real footer bytes,
// since they exercise folder reconciliation and emptiness checks that
// return before schema discovery runs.
func putParquetPlaceholder(t *testing.T, s store.Store, key string, body []byte) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, body, store.PutOptions{}))
}

func TestPlanEmptyTableProducesNoBatches(t *testing.T) {
	s := memstore.New("s3")
	entry := manifest.Entry{
		TableName:     "orders",
		DataFilesPath: "s3://bucket/orders",
		SchemaHistory: []manifest.SchemaHistoryEntry{{SchemaID: "schema-a", FirstSeenTS: 100}},
	}

	batches, warnings, err := planner.Plan(context.Background(), s, entry, deltalog.Tail{Version: -1, LiveFiles: map[string]deltalog.LiveFile{}})
	require.NoError(t, err)
	assert.Empty(t, batches)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "has no matching folder")
}

func TestPlanWarnsOnOrphanFolderAndMissingHistoryEntry(t *testing.T) {
	s := memstore.New("s3")
	putParquetPlaceholder(t, s, "orders/schema-orphan/100/part-0.parquet", []byte("x"))

	entry := manifest.Entry{
		TableName:     "orders",
		DataFilesPath: "s3://bucket/orders",
		SchemaHistory: []manifest.SchemaHistoryEntry{{SchemaID: "schema-missing-folder", FirstSeenTS: 100}},
	}

	_, warnings, err := planner.Plan(context.Background(), s, entry, deltalog.Tail{Version: -1, LiveFiles: map[string]deltalog.LiveFile{}})
	require.NoError(t, err)
	require.Len(t, warnings, 2)
}

// TestPlanSkipsEmptyTimestampFolder exercises the "zero parquet files
// under a TimestampFolder is a warning, not a Batch" rule without
// needing a real parquet footer, since the folder never survives past
// the emptiness check.
func TestPlanSkipsEmptyTimestampFolder(t *testing.T) {
	s := memstore.New("s3")
	require.NoError(t, s.Put(context.Background(), "orders/schema-a/100/marker.txt", []byte("not-parquet"), store.PutOptions{}))

	entry := manifest.Entry{
		TableName:     "orders",
		DataFilesPath: "s3://bucket/orders",
		SchemaHistory: []manifest.SchemaHistoryEntry{{SchemaID: "schema-a", FirstSeenTS: 50}},
	}

	batches, warnings, err := planner.Plan(context.Background(), s, entry, deltalog.Tail{Version: -1, LiveFiles: map[string]deltalog.LiveFile{}})
	require.NoError(t, err)
	assert.Empty(t, batches)
	require.Len(t, warnings, 1)
}
