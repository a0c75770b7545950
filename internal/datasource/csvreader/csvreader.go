// Package csvreader reads CSV sources into Arrow record batches,
// inferring a schema from a prefix of rows when the caller supplies
// none.
package csvreader

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Reader implements datasource.Reader for CSV sources.
type Reader struct {
	Open func(ds datasource.DataSource) (io.ReadCloser, error)
}

// New builds a Reader that opens ds.Location.Path directly from disk,
// the default for the "file" scheme class.
func New() *Reader {
	return &Reader{Open: openLocalFile}
}

func openLocalFile(ds datasource.DataSource) (io.ReadCloser, error) {
	f, err := os.Open(ds.Location.Path)
	if err != nil {
		return nil, apperr.HTTPRequest(err)
	}

	return f, nil
}

// Read reads ds as CSV: header-on by default, comma delimiter by
// default, both overridable via Options, inferring a schema from
// InferSchemaRows prefix rows when ds.Schema is nil.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	rc, err := r.Open(ds)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	hasHeader := true
	if ds.Options.HasHeaderSet {
		hasHeader = ds.Options.HasHeader
	}

	delimiter := ','
	if ds.Options.Delimiter != 0 {
		delimiter = ds.Options.Delimiter
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("read csv source %q: %w", ds.Name, err))
	}

	sc := ds.Schema
	if sc == nil {
		inferred, err := inferSchema(data, hasHeader, delimiter, ds.InferSchemaRows(false))
		if err != nil {
			return nil, err
		}

		sc = &inferred
	}

	arrowSchema := schema.ToArrowSchema(*sc)

	reader := arrowcsv.NewReader(
		bytes.NewReader(data),
		arrowSchema,
		arrowcsv.WithComma(delimiter),
		arrowcsv.WithHeader(hasHeader),
		arrowcsv.WithAllocator(memory.NewGoAllocator()),
		arrowcsv.WithChunk(-1),
	)
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}

	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, apperr.RecordBatch(fmt.Errorf("decode csv source %q: %w", ds.Name, err))
	}

	return records, nil
}

// inferSchema samples up to maxRows CSV rows and derives a Utf8
// column schema keyed by header name (or "column_N" when headerless),
// matching original_source/lib/src/data_source/infer_schema.rs's
// prefix-sampling behavior for CSV: every inferred column is widened
// to Utf8 since CSV carries no native type information beyond what
// the DataFusion query layer later casts at query time.
func inferSchema(data []byte, hasHeader bool, delimiter rune, maxRows int) (schema.Schema, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	var header []string
	if hasHeader {
		row, err := reader.Read()
		if err != nil && err != io.EOF {
			return schema.Schema{}, apperr.RecordBatch(fmt.Errorf("read csv header: %w", err))
		}

		header = row
	}

	var width int
	for i := 0; i < maxRows; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return schema.Schema{}, apperr.RecordBatch(fmt.Errorf("sample csv rows: %w", err))
		}

		if len(row) > width {
			width = len(row)
		}
	}

	if len(header) > width {
		width = len(header)
	}

	fields := make([]schema.Field, width)
	for i := range fields {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(header) && header[i] != "" {
			name = header[i]
		}

		fields[i] = schema.Field{Name: name, Dtype: schema.Dtype{Kind: schema.Utf8}, Nullable: true}
	}

	return schema.Schema{Fields: fields}, nil
}
