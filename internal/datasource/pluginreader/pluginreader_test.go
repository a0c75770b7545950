package pluginreader

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
	"github.com/sal-openlab/datafusion-server/internal/plugin"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

type fakeExtension struct {
	resp plugin.FetchResponse
	err  error
}

func (f *fakeExtension) FetchDataSource(ctx context.Context, req plugin.FetchRequest) (plugin.FetchResponse, error) {
	return f.resp, f.err
}

func (f *fakeExtension) Process(ctx context.Context, req plugin.ProcessRequest) (plugin.ProcessResponse, error) {
	return plugin.ProcessResponse{}, nil
}

func arrowIPCBuffer(t *testing.T) []byte {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}}}}
	arrowSchema := schema.ToArrowSchema(sc)

	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1}, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(arrowSchema), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestReadDecodesArrowIPCResponse(t *testing.T) {
	reg := plugin.NewRegistry(mlog.Noop{})
	reg.Register("custom", &fakeExtension{resp: plugin.FetchResponse{ArrowIPC: true, Buffer: arrowIPCBuffer(t)}})

	r := New(reg, nil)
	ds := datasource.DataSource{
		Name:     "custom-source",
		Location: location.Location{IsPlugin: true, PluginTag: "custom"},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].NumRows())
}

func TestReadDispatchesDeclaredFormatToRegisteredDecoder(t *testing.T) {
	reg := plugin.NewRegistry(mlog.Noop{})
	reg.Register("custom", &fakeExtension{resp: plugin.FetchResponse{
		ArrowIPC:       false,
		DeclaredFormat: "csv",
		Buffer:         []byte("id\n1\n"),
	}})

	var gotFormat location.Format
	decode := func(data []byte, ds datasource.DataSource) ([]arrow.Record, error) {
		gotFormat = ds.Format
		return nil, nil
	}

	r := New(reg, map[location.Format]BufferDecoder{location.CSV: decode})
	ds := datasource.DataSource{
		Name:     "custom-source",
		Location: location.Location{IsPlugin: true, PluginTag: "custom"},
	}

	_, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, location.CSV, gotFormat)
}

func TestReadErrorsWhenNoDecoderRegisteredForDeclaredFormat(t *testing.T) {
	reg := plugin.NewRegistry(mlog.Noop{})
	reg.Register("custom", &fakeExtension{resp: plugin.FetchResponse{
		ArrowIPC:       false,
		DeclaredFormat: "csv",
		Buffer:         []byte("id\n1\n"),
	}})

	r := New(reg, map[location.Format]BufferDecoder{})
	ds := datasource.DataSource{
		Name:     "custom-source",
		Location: location.Location{IsPlugin: true, PluginTag: "custom"},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestReadErrorsWhenPluginNotRegistered(t *testing.T) {
	reg := plugin.NewRegistry(mlog.Noop{})
	r := New(reg, nil)

	ds := datasource.DataSource{
		Name:     "custom-source",
		Location: location.Location{IsPlugin: true, PluginTag: "missing"},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}
