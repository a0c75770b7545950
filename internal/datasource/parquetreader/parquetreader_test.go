package parquetreader

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/datasource/writer"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{
		{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}},
		{Name: "name", Dtype: schema.Dtype{Kind: schema.Utf8}, Nullable: true},
	}}

	arrowSchema := schema.ToArrowSchema(sc)
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()

	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	bld.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)

	rec := bld.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "fixture.parquet")
	require.NoError(t, writer.WriteParquet([]arrow.Record{rec}, path))

	return path
}

func TestReadRoundTripsWrittenParquet(t *testing.T) {
	path := writeFixture(t)

	r := New()
	ds := datasource.DataSource{
		Name:     "fixture",
		Format:   location.Parquet,
		Location: location.Location{Path: path},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	var total int64
	for _, rec := range records {
		total += rec.NumRows()
	}
	assert.EqualValues(t, 3, total)
}

func TestReadMissingFileReturnsError(t *testing.T) {
	r := New()
	ds := datasource.DataSource{
		Name:     "missing",
		Format:   location.Parquet,
		Location: location.Location{Path: filepath.Join(t.TempDir(), "does-not-exist.parquet")},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestReadStreamYieldsRecordsThenEOF(t *testing.T) {
	path := writeFixture(t)

	r := New()
	ds := datasource.DataSource{
		Name:     "fixture",
		Format:   location.Parquet,
		Location: location.Location{Path: path},
	}

	stream, err := r.ReadStream(context.Background(), ds)
	require.NoError(t, err)
	defer stream.Close()

	var total int64
	for {
		rec, err := stream.Next(context.Background())
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
		total += rec.NumRows()
	}

	assert.EqualValues(t, 3, total)
}
