package deltalog

// Checkpoint parquet writing/reading: periodic snapshots of the log so
// Open doesn't have to replay every commit since version 0.
//
// Grounded on akashsharma95-artic-mirror/iceberg/writer.go's tableWriter
// (build a parquet.GenericWriter over a Go struct, one row per record)
// for the parquet-go usage pattern, and on
// original_source/guidewire/delta_log.py's _create_checkpoint /
// _last_checkpoint bookkeeping for when and what to roll.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"

	"cda-delta-clone/store"
)

// checkpointRow is one row of a Delta checkpoint parquet file: exactly
// one of its fields is non-nil, mirroring the commit-file Action shape.
type checkpointRow struct {
	Protocol *ProtocolAction `parquet:"protocol,optional"`
	MetaData *MetaDataAction `parquet:"metaData,optional"`
	Add      *AddAction      `parquet:"add,optional"`
	Remove   *RemoveAction   `parquet:"remove,optional"`
}

// lastCheckpoint mirrors the tiny `_last_checkpoint` pointer file Delta
// writes alongside a checkpoint so readers don't have to list the whole
// log directory to find the newest one.
type lastCheckpoint struct {
	Version int64 `json:"version"`
	Size    int64 `json:"size"`
}

func checkpointFileName(version int64) string {
	return fmt.Sprintf("%020d.checkpoint.parquet", version)
}

func commitFileName(version int64) string {
	return fmt.Sprintf("%020d.json", version)
}

// writeCheckpoint serializes tail's live state (protocol, metaData, and
// one add per live file) into a checkpoint parquet file at tail.Version,
// then updates _last_checkpoint.
func writeCheckpoint(ctx context.Context, gw store.Store, logPrefix string, tail Tail) error {
	rows := make([]checkpointRow, 0, len(tail.LiveFiles)+2)
	rows = append(rows, checkpointRow{Protocol: &ProtocolAction{MinReaderVersion: 1, MinWriterVersion: 2}})
	if tail.Schema != nil {
		rows = append(rows, checkpointRow{MetaData: &MetaDataAction{
			ID:               tail.SchemaID,
			SchemaString:     schemaToJSON(tail.Schema),
			PartitionColumns: []string{},
			Configuration:    map[string]string{},
			CreatedTime:      tail.SchemaTimestampMS,
		}})
	}
	for _, f := range tail.LiveFiles {
		rows = append(rows, checkpointRow{Add: &AddAction{
			Path:             f.Path,
			PartitionValues:  f.PartitionValues,
			Size:             f.Size,
			ModificationTime: f.ModificationTime,
			DataChange:       false,
		}})
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[checkpointRow](&buf)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("writing checkpoint rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing checkpoint writer: %w", err)
	}

	key := logPrefix + checkpointFileName(tail.Version)
	if err := gw.Put(ctx, key, buf.Bytes(), store.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("writing checkpoint file: %w", err)
	}

	lc := lastCheckpoint{Version: tail.Version, Size: int64(len(rows))}
	lcBytes, err := json.Marshal(lc)
	if err != nil {
		return fmt.Errorf("marshalling _last_checkpoint: %w", err)
	}
	if err := gw.Put(ctx, logPrefix+"_last_checkpoint", lcBytes, store.PutOptions{}); err != nil {
		return fmt.Errorf("writing _last_checkpoint: %w", err)
	}
	return nil
}

// readCheckpoint loads a checkpoint parquet file's rows back into a
// Tail at the given version. A checkpoint carries no commitInfo, so
// WatermarkMS is taken from the newest live add's modificationTime.
func readCheckpoint(ctx context.Context, gw store.Store, logPrefix string, version int64) (Tail, error) {
	data, err := gw.Get(ctx, logPrefix+checkpointFileName(version), nil)
	if err != nil {
		return Tail{}, fmt.Errorf("reading checkpoint file: %w", err)
	}

	reader := parquet.NewGenericReader[checkpointRow](bytes.NewReader(data))
	defer reader.Close()

	tail := Tail{Version: version, LiveFiles: map[string]LiveFile{}}
	buf := make([]checkpointRow, 128)
	for {
		n, readErr := reader.Read(buf)
		for i := 0; i < n; i++ {
			row := buf[i]
			switch {
			case row.MetaData != nil:
				schema, parseErr := schemaFromJSON(row.MetaData.SchemaString)
				if parseErr != nil {
					return Tail{}, fmt.Errorf("parsing checkpoint metaData schema: %w", parseErr)
				}
				tail.Schema = schema
				tail.SchemaID = row.MetaData.ID
				tail.SchemaTimestampMS = row.MetaData.CreatedTime
			case row.Add != nil:
				tail.LiveFiles[row.Add.Path] = LiveFile{
					Path:             row.Add.Path,
					Size:             row.Add.Size,
					ModificationTime: row.Add.ModificationTime,
					PartitionValues:  row.Add.PartitionValues,
				}
				if row.Add.ModificationTime > tail.WatermarkMS {
					tail.WatermarkMS = row.Add.ModificationTime
				}
			case row.Remove != nil:
				delete(tail.LiveFiles, row.Remove.Path)
			}
		}
		if readErr != nil {
			break
		}
	}
	return tail, nil
}

// readLastCheckpoint returns the version recorded in _last_checkpoint,
// or (-1, nil) if the pointer file doesn't exist yet.
func readLastCheckpoint(ctx context.Context, gw store.Store, logPrefix string) (int64, error) {
	exists, err := gw.Exists(ctx, logPrefix+"_last_checkpoint")
	if err != nil {
		return -1, err
	}
	if !exists {
		return -1, nil
	}
	data, err := gw.Get(ctx, logPrefix+"_last_checkpoint", nil)
	if err != nil {
		return -1, err
	}
	var lc lastCheckpoint
	if err := json.Unmarshal(data, &lc); err != nil {
		return -1, fmt.Errorf("parsing _last_checkpoint: %w", err)
	}
	return lc.Version, nil
}

// SchemaID derives a stable identifier for an Arrow schema by hashing
// its canonical string form. sha256/hex is stdlib: no example library
// adds anything over a pure hash function here (see DESIGN.md).
func SchemaID(schema *arrow.Schema) string {
	sum := sha256.Sum256([]byte(schemaToJSON(schema)))
	return hex.EncodeToString(sum[:])[:32]
}

// schemaToJSON renders an Arrow schema as Delta's flattened
// "schemaString" JSON (struct type with an array of typed fields),
// following the reader-facing shape delta-rs and Spark both emit.
func schemaToJSON(schema *arrow.Schema) string {
	type deltaField struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Nullable bool   `json:"nullable"`
	}
	type deltaSchema struct {
		Type   string       `json:"type"`
		Fields []deltaField `json:"fields"`
	}

	ds := deltaSchema{Type: "struct"}
	for _, f := range schema.Fields() {
		ds.Fields = append(ds.Fields, deltaField{
			Name:     f.Name,
			Type:     arrowTypeToDeltaType(f.Type),
			Nullable: f.Nullable,
		})
	}
	b, _ := json.Marshal(ds)
	return string(b)
}

// schemaFromJSON parses a "schemaString" back into an Arrow schema, the
// inverse of schemaToJSON, for reopening an existing table.
func schemaFromJSON(s string) (*arrow.Schema, error) {
	type deltaField struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Nullable bool   `json:"nullable"`
	}
	type deltaSchema struct {
		Type   string       `json:"type"`
		Fields []deltaField `json:"fields"`
	}
	var ds deltaSchema
	if err := json.Unmarshal([]byte(s), &ds); err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, 0, len(ds.Fields))
	for _, f := range ds.Fields {
		fields = append(fields, arrow.Field{Name: f.Name, Type: deltaTypeToArrowType(f.Type), Nullable: f.Nullable})
	}
	return arrow.NewSchema(fields, nil), nil
}

// arrowTypeToDeltaType maps the handful of Arrow types the CDA parquet
// footer discovery step actually produces to Delta's primitive type
// names. Other types fall back to "arrow:" plus their Arrow string
// form, which isn't a real Delta primitive name; deltaTypeToArrowType
// below maps only int8, int16, uint32 and uint64 back from that form
// and reads every other one back as string.
func arrowTypeToDeltaType(t arrow.DataType) string {
	switch t.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "string"
	case arrow.INT32:
		return "integer"
	case arrow.INT64:
		return "long"
	case arrow.FLOAT32:
		return "float"
	case arrow.FLOAT64:
		return "double"
	case arrow.BOOL:
		return "boolean"
	case arrow.DATE32, arrow.DATE64:
		return "date"
	case arrow.TIMESTAMP:
		return "timestamp"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "binary"
	default:
		return "arrow:" + t.String()
	}
}

func deltaTypeToArrowType(name string) arrow.DataType {
	if rest, ok := strings.CutPrefix(name, "arrow:"); ok {
		return arrowPrimitiveOrFallback(rest)
	}
	switch name {
	case "string":
		return arrow.BinaryTypes.String
	case "integer":
		return arrow.PrimitiveTypes.Int32
	case "long":
		return arrow.PrimitiveTypes.Int64
	case "float":
		return arrow.PrimitiveTypes.Float32
	case "double":
		return arrow.PrimitiveTypes.Float64
	case "boolean":
		return arrow.FixedWidthTypes.Boolean
	case "date":
		return arrow.FixedWidthTypes.Date32
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us
	case "binary":
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowPrimitiveOrFallback recovers a best-effort Arrow type from its
// String() form for types arrowTypeToDeltaType couldn't name; exact
// round-tripping of nested types isn't required since schema identity
// is decided by SchemaID's hash of the original discovery, not by this
// reconstruction.
func arrowPrimitiveOrFallback(s string) arrow.DataType {
	switch strings.ToLower(s) {
	case "int16":
		return arrow.PrimitiveTypes.Int16
	case "int8":
		return arrow.PrimitiveTypes.Int8
	case "uint32":
		return arrow.PrimitiveTypes.Uint32
	case "uint64":
		return arrow.PrimitiveTypes.Uint64
	default:
		return arrow.BinaryTypes.String
	}
}
