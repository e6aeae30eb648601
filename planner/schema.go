package planner

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"

	"cda-delta-clone/deltalog"
	"cda-delta-clone/store"
)

// footerFetchWindow bounds how many trailing bytes of a parquet file
// get pulled to read its footer. Real-world Parquet footers (schema +
// column-chunk metadata for a modest column count) are well under this;
// row data is never fetched, per spec §4.C step 6 / §5's "no parquet
// row data is ever materialised".
const footerFetchWindow = 4 << 20

// discoverSchema lazily reads the parquet footer of the first file in
// a TimestampFolder to obtain its Arrow schema, without reading any
// row data.
func discoverSchema(ctx context.Context, gw store.Store, tf timestampFolder) (*arrow.Schema, string, error) {
	if len(tf.Files) == 0 {
		return nil, "", fmt.Errorf("no parquet files to discover schema from under %s", tf.Prefix)
	}
	first := tf.Files[0]

	fetchLen := int64(footerFetchWindow)
	if fetchLen > first.Size {
		fetchLen = first.Size
	}
	offset := first.Size - fetchLen

	data, err := gw.Get(ctx, first.Key, &store.Range{Offset: offset, Length: fetchLen})
	if err != nil {
		return nil, "", fmt.Errorf("fetching footer of %s: %w", first.Key, err)
	}

	ra := &tailReaderAt{data: data, base: offset, size: first.Size}
	pf, err := parquet.OpenFile(ra, first.Size)
	if err != nil {
		return nil, "", fmt.Errorf("opening parquet footer of %s: %w", first.Key, err)
	}

	schema := arrowSchemaFromParquet(pf.Schema())
	return schema, deltalog.SchemaID(schema), nil
}

// tailReaderAt serves ReadAt calls that fall within the trailing window
// already fetched from the object store; it deliberately does not fall
// back to fetching more, since only footer metadata should ever be
// touched here.
type tailReaderAt struct {
	data []byte
	base int64
	size int64
}

func (r *tailReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < r.base || off >= r.size {
		return 0, fmt.Errorf("read at offset %d outside fetched footer window [%d, %d)", off, r.base, r.size)
	}
	rel := off - r.base
	n := copy(p, r.data[rel:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// arrowSchemaFromParquet maps a parquet-go schema's top-level fields to
// an Arrow schema. Only the primitive kinds CDA parquet exports
// actually use are mapped; anything else degrades to a string field
// rather than failing the whole discovery.
func arrowSchemaFromParquet(schema *parquet.Schema) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		fields = append(fields, arrow.Field{
			Name:     f.Name(),
			Type:     arrowTypeFromParquetKind(f),
			Nullable: f.Optional(),
		})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowTypeFromParquetKind(f parquet.Field) arrow.DataType {
	logical := f.Type().LogicalType()
	if logical != nil {
		switch {
		case logical.UTF8 != nil:
			return arrow.BinaryTypes.String
		case logical.Date != nil:
			return arrow.FixedWidthTypes.Date32
		case logical.Timestamp != nil:
			return arrow.FixedWidthTypes.Timestamp_us
		}
	}
	switch f.Type().Kind() {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case parquet.Int32:
		return arrow.PrimitiveTypes.Int32
	case parquet.Int64:
		return arrow.PrimitiveTypes.Int64
	case parquet.Float:
		return arrow.PrimitiveTypes.Float32
	case parquet.Double:
		return arrow.PrimitiveTypes.Float64
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}
