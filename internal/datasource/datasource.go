// Package datasource defines the DataSource descriptor, the Format
// and Reader contracts every format subpackage implements, and the
// registry that dispatches append/save operations to the right
// reader by (format, scheme-class) double match.
package datasource

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Format is the serialization format a DataSource is read or written
// as; reused from internal/location so C1 and C3 share one closed
// enum.
type Format = location.Format

// Options carries the recognized DataSourceOption JSON keys from
// spec.md §6, already type-checked at decode time.
type Options struct {
	HasHeader        bool
	HasHeaderSet     bool
	InferSchemaRows  int
	Delimiter        rune
	JSONPath         string
	RequireNormalize bool
	Overwrite        bool
	Headers          map[string]string
	Version          *int64
	RefreshSchema    bool
}

// DefaultInferSchemaRows is the prefix row count used for schema
// inference when Options.InferSchemaRows is unset (spec.md §4.3).
const DefaultInferSchemaRows = 100

// UploadInferSchemaRows overrides DefaultInferSchemaRows for CSV
// ingested via multipart upload (spec.md §4.3).
const UploadInferSchemaRows = 1000

// DataSource is the descriptor a client submits to register a table
// and the record the session catalog retains for introspection and
// refresh (spec.md §4.9 "Descriptor").
type DataSource struct {
	Name     string
	Format   Format
	Location location.Location
	Schema   *schema.Schema // nil means infer
	Options  Options
}

// InferSchemaRows resolves the effective row count C3 readers sample
// for schema inference, applying the upload override when fromUpload
// is true and the caller did not request an explicit count.
func (ds DataSource) InferSchemaRows(fromUpload bool) int {
	if ds.Options.InferSchemaRows > 0 {
		return ds.Options.InferSchemaRows
	}

	if fromUpload {
		return UploadInferSchemaRows
	}

	return DefaultInferSchemaRows
}

// Reader is the contract every format subpackage implements: read a
// DataSource into a set of record batches. Very large sources stream
// instead via StreamingReader, when the format supports it.
type Reader interface {
	Read(ctx context.Context, ds DataSource) ([]arrow.Record, error)
}

// StreamingReader is implemented by readers (currently only Parquet)
// that can produce batches incrementally instead of
// materializing the whole source, used when the source is "very
// large" per spec.md §5.
type StreamingReader interface {
	Reader
	ReadStream(ctx context.Context, ds DataSource) (RecordBatchStream, error)
}

// RecordBatchStream yields arrow.Record values one at a time.
type RecordBatchStream interface {
	Next(ctx context.Context) (arrow.Record, error) // io.EOF when exhausted
	Close() error
}
