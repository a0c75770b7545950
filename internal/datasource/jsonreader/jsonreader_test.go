package jsonreader

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func schemaForNormalizeTest() schema.Schema {
	return schema.Schema{Fields: []schema.Field{
		{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}},
		{Name: "name", Dtype: schema.Dtype{Kind: schema.Utf8}, Nullable: true},
	}}
}

func openBuffer(data string) func(datasource.DataSource) (io.ReadCloser, error) {
	return func(datasource.DataSource) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

func TestReadArrayOfObjectsInfersSchema(t *testing.T) {
	jsonData := `[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`

	r := &Reader{Open: openBuffer(jsonData)}
	ds := datasource.DataSource{Name: "people", Format: location.JSON}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].NumRows())
}

func TestReadJSONPathScoping(t *testing.T) {
	jsonData := `{"result":{"rows":[{"a":1},{"a":2}]}}`

	r := &Reader{Open: openBuffer(jsonData)}
	ds := datasource.DataSource{
		Name:    "scoped",
		Format:  location.JSON,
		Options: datasource.Options{JSONPath: "result.rows"},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].NumRows())
}

func TestReadJSONPathMismatchReturnsValidationError(t *testing.T) {
	jsonData := `{"rows": "not-an-array"}`

	r := &Reader{Open: openBuffer(jsonData)}
	ds := datasource.DataSource{
		Name:    "scoped",
		Format:  location.JSON,
		Options: datasource.Options{JSONPath: "rows"},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestReadRejectsNonArrayOfObjects(t *testing.T) {
	jsonData := `[1, 2, 3]`

	r := &Reader{Open: openBuffer(jsonData)}
	ds := datasource.DataSource{Name: "bad", Format: location.JSON}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestBuildFromObjectsNormalizesMissingFields(t *testing.T) {
	objects := []map[string]any{
		{"id": float64(1), "name": "alice"},
		{"id": float64(2)},
	}

	sc := schemaForNormalizeTest()
	ds := datasource.DataSource{Name: "people", Format: location.JSON, Schema: &sc, Options: datasource.Options{RequireNormalize: true}}

	records, err := BuildFromObjects(ds, objects)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].NumRows())
}
