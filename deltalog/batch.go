package deltalog

import "github.com/apache/arrow-go/v18/arrow"

// FileRef is one CDA parquet file discovered by the Batch Planner:
// enough information to emit an add action without re-reading the
// object.
type FileRef struct {
	Path             string
	Size             int64
	ModificationTime int64
	PartitionValues  map[string]string
}

// Batch is one unit of work the Batch Planner hands to the Log Writer:
// the files to add, the paths to retire, and (at version 0 or a
// schema-change boundary) the new schema to declare. The planner
// builds one Batch per TimestampFolder, and each Batch becomes one
// commit.
type Batch struct {
	// SchemaChange is true when this batch must open with a fresh
	// metaData action (version 0, or the first folder of a new schema
	// generation).
	SchemaChange bool
	Schema       *arrow.Schema
	SchemaID     string

	Adds    []FileRef
	Removes []string

	// CommitTimestampMS is the wall-clock (or folder-derived) timestamp
	// to stamp on the commitInfo action.
	CommitTimestampMS int64
	// WatermarkMS is the highest timestamp-folder value this batch
	// advances the entity's high-water mark to.
	WatermarkMS int64
}
