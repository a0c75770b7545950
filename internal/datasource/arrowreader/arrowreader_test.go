package arrowreader

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func encodeIPCStream(t *testing.T) []byte {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{
		{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}},
	}}
	arrowSchema := schema.ToArrowSchema(sc)

	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{10, 20}, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(arrowSchema), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestDecodeBufferRoundTrips(t *testing.T) {
	data := encodeIPCStream(t)

	records, err := DecodeBuffer(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].NumRows())
}

func TestDecodeBufferRejectsGarbage(t *testing.T) {
	_, err := DecodeBuffer([]byte("not an arrow stream"))
	assert.Error(t, err)
}

func TestReadRejectsNonPluginOrigin(t *testing.T) {
	r := New()
	ds := datasource.DataSource{
		Name:     "stream",
		Format:   location.ArrowStream,
		Location: location.Location{IsPlugin: false, Scheme: location.HTTPS},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestReadAlwaysErrorsEvenForPluginOrigin(t *testing.T) {
	r := New()
	ds := datasource.DataSource{
		Name:     "stream",
		Format:   location.ArrowStream,
		Location: location.Location{IsPlugin: true},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}
