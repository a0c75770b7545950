package csvreader

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
)

func openBuffer(data string) func(datasource.DataSource) (io.ReadCloser, error) {
	return func(datasource.DataSource) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

func TestReadInfersUtf8SchemaWithHeader(t *testing.T) {
	csvData := "id,name\n1,alice\n2,bob\n"

	r := &Reader{Open: openBuffer(csvData)}
	ds := datasource.DataSource{Name: "people", Format: location.CSV}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.EqualValues(t, 2, rec.NumCols())
	assert.Equal(t, "id", rec.Schema().Field(0).Name)
	assert.Equal(t, "name", rec.Schema().Field(1).Name)
	assert.EqualValues(t, 2, rec.NumRows())
}

func TestReadHeaderlessGeneratesColumnNames(t *testing.T) {
	csvData := "1,alice\n2,bob\n"

	r := &Reader{Open: openBuffer(csvData)}
	ds := datasource.DataSource{
		Name:    "people",
		Format:  location.CSV,
		Options: datasource.Options{HasHeaderSet: true, HasHeader: false},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "column_1", records[0].Schema().Field(0).Name)
	assert.Equal(t, "column_2", records[0].Schema().Field(1).Name)
}

func TestReadCustomDelimiter(t *testing.T) {
	csvData := "id;name\n1;alice\n"

	r := &Reader{Open: openBuffer(csvData)}
	ds := datasource.DataSource{
		Name:    "people",
		Format:  location.CSV,
		Options: datasource.Options{Delimiter: ';'},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].NumRows())
}

func TestReadPropagatesOpenError(t *testing.T) {
	r := &Reader{Open: func(datasource.DataSource) (io.ReadCloser, error) {
		return nil, assert.AnError
	}}

	_, err := r.Read(context.Background(), datasource.DataSource{Name: "x", Format: location.CSV})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewDefaultsToLocalFileOpen(t *testing.T) {
	r := New()
	require.NotNil(t, r.Open)
}
