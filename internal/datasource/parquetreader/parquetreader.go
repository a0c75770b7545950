// Package parquetreader reads Parquet sources into Arrow record
// batches via arrow-go's pqarrow bridge. The file footer's schema is
// always used; a caller-supplied ds.Schema is not consulted and does
// not project or cast columns.
package parquetreader

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
)

// Reader implements datasource.Reader and datasource.StreamingReader
// for Parquet sources.
type Reader struct{}

// New builds a Parquet Reader.
func New() *Reader { return &Reader{} }

// Read materializes every row group of ds into Arrow records.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	reader, table, err := r.open(ds)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	tbl, err := table.ReadTable(ctx)
	if err != nil {
		return nil, apperr.Parquet(fmt.Errorf("read parquet table %q: %w", ds.Name, err))
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()

	var records []arrow.Record
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		records = append(records, rec)
	}

	return records, nil
}

// ReadStream opens ds and yields one arrow.Record per row group,
// letting C9 forward very large Parquet sources without
// materializing the whole file.
func (r *Reader) ReadStream(ctx context.Context, ds datasource.DataSource) (datasource.RecordBatchStream, error) {
	reader, table, err := r.open(ds)
	if err != nil {
		return nil, err
	}

	rr, err := table.GetRecordReader(ctx, nil, nil)
	if err != nil {
		reader.Close()
		return nil, apperr.Parquet(fmt.Errorf("open parquet record reader %q: %w", ds.Name, err))
	}

	return &stream{file: reader, rr: rr}, nil
}

func (r *Reader) open(ds datasource.DataSource) (*file.Reader, *pqarrow.FileReader, error) {
	f, err := os.Open(ds.Location.Path)
	if err != nil {
		return nil, nil, apperr.HTTPRequest(err)
	}

	pf, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, nil, apperr.Parquet(fmt.Errorf("open parquet source %q: %w", ds.Name, err))
	}

	table, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		pf.Close()
		return nil, nil, apperr.Parquet(fmt.Errorf("open parquet arrow bridge %q: %w", ds.Name, err))
	}

	return pf, table, nil
}

type stream struct {
	file *file.Reader
	rr   pqarrow.RecordReader
}

func (s *stream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.rr.Read()
}

func (s *stream) Close() error {
	s.rr.Release()
	return s.file.Close()
}
