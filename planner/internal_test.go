package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

// TestTimestampFoldersDropsDuplicates covers spec §4.C step 5's
// "duplicates are a warning and the second is dropped" without needing
// a real parquet footer, since timestampFolders only lists directory
// names and file presence.
func TestTimestampFoldersDropsDuplicates(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	// "100" and "0100" parse to the same ms-epoch value; whichever
	// sorts first lexically among the raw listing is kept.
	require.NoError(t, s.Put(ctx, "orders/schema-a/0100/part-0.parquet", []byte("x"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "orders/schema-a/100/part-0.parquet", []byte("y"), store.PutOptions{}))

	folders, warnings, err := timestampFolders(ctx, s, schemaFolder{SchemaID: "schema-a", Prefix: "orders/schema-a/", FirstSeenTS: 50})
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "duplicate timestamp folder")
}

func TestTimestampFoldersSortsAscending(t *testing.T) {
	s := memstore.New("s3")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "orders/schema-a/300/part-0.parquet", []byte("x"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "orders/schema-a/100/part-0.parquet", []byte("y"), store.PutOptions{}))
	require.NoError(t, s.Put(ctx, "orders/schema-a/200/part-0.parquet", []byte("z"), store.PutOptions{}))

	folders, _, err := timestampFolders(ctx, s, schemaFolder{SchemaID: "schema-a", Prefix: "orders/schema-a/", FirstSeenTS: 50})
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{folders[0].TS, folders[1].TS, folders[2].TS})
}
