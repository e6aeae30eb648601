package deltalog

import "github.com/apache/arrow-go/v18/arrow"

// LiveFile is one file currently registered as live in a table's
// snapshot: the add action that put it there, minus the bookkeeping
// fields (dataChange, stats) irrelevant to planning the next batch.
type LiveFile struct {
	Path             string
	Size             int64
	ModificationTime int64
	PartitionValues  map[string]string
}

// Tail is the recovered state of one entity's Delta log: everything
// the Batch Planner needs to decide what the next commit should
// contain, and everything the Log Writer needs to append it.
type Tail struct {
	// Version is the last committed version number, or -1 if the table
	// has never been written (spec §4.D "table does not exist yet").
	Version int64

	Schema   *arrow.Schema
	SchemaID string
	// SchemaTimestampMS is the timestamp-folder value that introduced
	// the current schema generation.
	SchemaTimestampMS int64

	// LiveFiles is keyed by absolute source-store URI (AddAction.Path).
	LiveFiles map[string]LiveFile

	// WatermarkMS is the highest CDA timestamp-folder value already
	// folded into the log, recovered from the last replayed commitInfo's
	// operationParameters["watermark"], or from the newest add's
	// modificationTime when only a checkpoint is replayed.
	WatermarkMS int64
}

// Exists reports whether the table has at least one commit.
func (t Tail) Exists() bool { return t.Version >= 0 }
