package manifest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/manifest"
	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

const validManifest = `{
  "orders": {
    "dataFilesPath": "s3://bucket/orders",
    "lastSuccessfulWriteTimestamp": "1700000000000",
    "totalProcessedRecordsCount": "42",
    "schemaHistory": {"schema-a": "1699000000000"}
  },
  "customers": {
    "dataFilesPath": "s3://bucket/customers",
    "lastSuccessfulWriteTimestamp": "1700000000001",
    "totalProcessedRecordsCount": "7",
    "schemaHistory": {"schema-b": "1699000000001", "schema-c": "1699500000000"}
  },
  "broken": {
    "dataFilesPath": "",
    "lastSuccessfulWriteTimestamp": "1",
    "totalProcessedRecordsCount": "0",
    "schemaHistory": {}
  }
}`

func newManifestStore(t *testing.T, body string) store.Store {
	t.Helper()
	s := memstore.New("s3")
	require.NoError(t, s.Put(context.Background(), "manifest.json", []byte(body), store.PutOptions{}))
	return s
}

func TestReadFiltersAndSortsByTableName(t *testing.T) {
	s := newManifestStore(t, validManifest)

	entries, warnings, err := manifest.Read(context.Background(), s, "manifest.json", nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "broken", warnings[0].Table)

	require.Len(t, entries, 2)
	assert.Equal(t, "customers", entries[0].TableName)
	assert.Equal(t, "orders", entries[1].TableName)
}

func TestReadHonorsNameFilter(t *testing.T) {
	s := newManifestStore(t, validManifest)

	entries, _, err := manifest.Read(context.Background(), s, "manifest.json", map[string]struct{}{"orders": {}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orders", entries[0].TableName)
}

func TestReadSortsSchemaHistoryAscending(t *testing.T) {
	s := newManifestStore(t, validManifest)

	entries, _, err := manifest.Read(context.Background(), s, "manifest.json", map[string]struct{}{"customers": {}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	hist := entries[0].SchemaHistory
	require.Len(t, hist, 2)
	assert.Equal(t, "schema-b", hist[0].SchemaID)
	assert.Equal(t, "schema-c", hist[1].SchemaID)
	assert.Less(t, hist[0].FirstSeenTS, hist[1].FirstSeenTS)
}

func TestReadMissingManifestIsFatal(t *testing.T) {
	s := memstore.New("s3")

	_, _, err := manifest.Read(context.Background(), s, "missing.json", nil)
	require.Error(t, err)
}

func TestReadRejectsNonAscendingSchemaHistory(t *testing.T) {
	body := `{
    "dup": {
      "dataFilesPath": "s3://bucket/dup",
      "lastSuccessfulWriteTimestamp": "1",
      "totalProcessedRecordsCount": "0",
      "schemaHistory": {"a": "100", "b": "100"}
    }
  }`
	s := newManifestStore(t, body)

	entries, warnings, err := manifest.Read(context.Background(), s, "manifest.json", nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, warnings, 1)
	assert.Equal(t, "dup", warnings[0].Table)
}
