package deltalog_test

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/deltalog"
	"cda-delta-clone/store/memstore"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

func TestOpenOnEmptyLogIsVersionMinusOne(t *testing.T) {
	s := memstore.New("s3")
	log, err := deltalog.Open(context.Background(), s, "orders", "s3://bucket/tables/orders", 5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), log.Tail().Version)
	assert.False(t, log.Tail().Exists())
}

func TestAppendFirstBatchWritesVersionZero(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("s3")
	log, err := deltalog.Open(ctx, s, "orders", "s3://bucket/tables/orders", 5, 100)
	require.NoError(t, err)

	schema := testSchema()
	batch := deltalog.Batch{
		SchemaChange:      true,
		Schema:            schema,
		SchemaID:          deltalog.SchemaID(schema),
		Adds:              []deltalog.FileRef{{Path: "s3://src/orders/schema-a/100/part-0.parquet", Size: 10, ModificationTime: 100}},
		CommitTimestampMS: 100,
		WatermarkMS:       100,
	}
	require.NoError(t, log.Append(ctx, batch))

	assert.Equal(t, int64(0), log.Tail().Version)
	assert.Equal(t, int64(100), log.Tail().WatermarkMS)
	assert.Len(t, log.Tail().LiveFiles, 1)
	assert.NotEmpty(t, log.Tail().SchemaID)
}

func TestReopenReplaysCommittedState(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("s3")
	tableURI := "s3://bucket/tables/orders"

	log, err := deltalog.Open(ctx, s, "orders", tableURI, 5, 100)
	require.NoError(t, err)
	schema := testSchema()
	require.NoError(t, log.Append(ctx, deltalog.Batch{
		SchemaChange:      true,
		Schema:            schema,
		SchemaID:          deltalog.SchemaID(schema),
		Adds:              []deltalog.FileRef{{Path: "s3://src/orders/schema-a/100/part-0.parquet", Size: 10, ModificationTime: 100}},
		CommitTimestampMS: 100,
		WatermarkMS:       100,
	}))
	require.NoError(t, log.Append(ctx, deltalog.Batch{
		Adds:              []deltalog.FileRef{{Path: "s3://src/orders/schema-a/200/part-0.parquet", Size: 20, ModificationTime: 200}},
		Removes:           []string{"s3://src/orders/schema-a/100/part-0.parquet"},
		CommitTimestampMS: 200,
		WatermarkMS:       200,
	}))

	reopened, err := deltalog.Open(ctx, s, "orders", tableURI, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reopened.Tail().Version)
	assert.Equal(t, int64(200), reopened.Tail().WatermarkMS)
	require.Len(t, reopened.Tail().LiveFiles, 1)
	_, live := reopened.Tail().LiveFiles["s3://src/orders/schema-a/200/part-0.parquet"]
	assert.True(t, live)
}

func TestCheckpointRollsAtInterval(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("s3")
	tableURI := "s3://bucket/tables/orders"

	log, err := deltalog.Open(ctx, s, "orders", tableURI, 5, 2)
	require.NoError(t, err)
	schema := testSchema()

	require.NoError(t, log.Append(ctx, deltalog.Batch{
		SchemaChange: true, Schema: schema, SchemaID: deltalog.SchemaID(schema),
		Adds: []deltalog.FileRef{{Path: "s3://src/a/1/x.parquet", Size: 1, ModificationTime: 1}},
		CommitTimestampMS: 1, WatermarkMS: 1,
	}))
	require.NoError(t, log.MaybeCheckpoint(ctx))
	exists, err := s.Exists(ctx, tableURI+"/_delta_log/_last_checkpoint")
	require.NoError(t, err)
	assert.False(t, exists, "no checkpoint expected before version reaches the interval")

	require.NoError(t, log.Append(ctx, deltalog.Batch{
		Adds:              []deltalog.FileRef{{Path: "s3://src/a/2/x.parquet", Size: 1, ModificationTime: 2}},
		Removes:           []string{"s3://src/a/1/x.parquet"},
		CommitTimestampMS: 2, WatermarkMS: 2,
	}))
	require.NoError(t, log.MaybeCheckpoint(ctx))
	exists, err = s.Exists(ctx, tableURI+"/_delta_log/_last_checkpoint")
	require.NoError(t, err)
	assert.False(t, exists, "version 1 is not a multiple of the interval")

	require.NoError(t, log.Append(ctx, deltalog.Batch{
		Adds:              []deltalog.FileRef{{Path: "s3://src/a/3/x.parquet", Size: 1, ModificationTime: 3}},
		Removes:           []string{"s3://src/a/2/x.parquet"},
		CommitTimestampMS: 3, WatermarkMS: 3,
	}))
	require.NoError(t, log.MaybeCheckpoint(ctx))
	exists, err = s.Exists(ctx, tableURI+"/_delta_log/_last_checkpoint")
	require.NoError(t, err)
	assert.True(t, exists, "checkpoint expected once version is a non-zero multiple of the interval")
}

func TestResetDeletesLog(t *testing.T) {
	ctx := context.Background()
	s := memstore.New("s3")
	tableURI := "s3://bucket/tables/orders"

	log, err := deltalog.Open(ctx, s, "orders", tableURI, 5, 100)
	require.NoError(t, err)
	schema := testSchema()
	require.NoError(t, log.Append(ctx, deltalog.Batch{
		SchemaChange: true, Schema: schema, SchemaID: deltalog.SchemaID(schema),
		Adds:              []deltalog.FileRef{{Path: "s3://src/a/1/x.parquet", Size: 1, ModificationTime: 1}},
		CommitTimestampMS: 1, WatermarkMS: 1,
	}))

	require.NoError(t, log.Reset(ctx))
	assert.Equal(t, int64(-1), log.Tail().Version)

	reopened, err := deltalog.Open(ctx, s, "orders", tableURI, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), reopened.Tail().Version)
}
