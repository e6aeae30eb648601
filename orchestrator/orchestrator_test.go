package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/config"
	"cda-delta-clone/manifest"
	"cda-delta-clone/orchestrator"
	"cda-delta-clone/store"
	"cda-delta-clone/store/memstore"
)

func testConfig(parallel bool) *config.Config {
	return &config.Config{
		TargetTableURI:  "s3://target/tables",
		CheckpointEvery: 100,
		Parallel:        parallel,
		MaxWorkers:      4,
		RetryCap:        3,
	}
}

func TestRunSurfacesManifestWarningsAsResults(t *testing.T) {
	gw := store.Gateways{Source: memstore.New("s3"), Target: memstore.New("s3")}
	results := orchestrator.Run(context.Background(), testConfig(true), gw, nil, []manifest.Warning{{Table: "broken", Message: "missing dataFilesPath"}}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "broken", results[0].Table)
	assert.Contains(t, results[0].Warnings[0], "missing dataFilesPath")
}

func TestRunEmptyEntityProducesCleanResult(t *testing.T) {
	sourceStore := memstore.New("s3")
	gw := store.Gateways{Source: sourceStore, Target: memstore.New("s3")}

	entry := manifest.Entry{
		TableName:             "orders",
		DataFilesPath:         "s3://source/orders",
		TotalProcessedRecords: 0,
		SchemaHistory:         []manifest.SchemaHistoryEntry{{SchemaID: "schema-a", FirstSeenTS: 100}},
	}

	for _, parallel := range []bool{true, false} {
		results := orchestrator.Run(context.Background(), testConfig(parallel), gw, []manifest.Entry{entry}, nil, nil)
		require.Len(t, results, 1)
		assert.Equal(t, "orders", results[0].Table)
		assert.Empty(t, results[0].Errors)
		assert.Equal(t, int64(-1), results[0].ProcessStartVersion)
		assert.Equal(t, int64(-1), results[0].ProcessFinishVersion)
	}
}
