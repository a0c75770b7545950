package flightreader

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/engine"
	"github.com/sal-openlab/datafusion-server/internal/flightrpc"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
	"github.com/sal-openlab/datafusion-server/internal/schema"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

type fakeStream struct {
	rec  arrow.Record
	sent bool
	sc   *arrow.Schema
}

func (s *fakeStream) Schema() *arrow.Schema { return s.sc }

func (s *fakeStream) Next(ctx context.Context) (arrow.Record, error) {
	if s.sent {
		return nil, io.EOF
	}
	s.sent = true
	s.rec.Retain()
	return s.rec, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeEngine struct {
	rec arrow.Record
}

func (e *fakeEngine) RegisterRecord(name string, recs []arrow.Record) error { return nil }
func (e *fakeEngine) Deregister(name string) error                         { return nil }

func (e *fakeEngine) Query(ctx context.Context, sql string) (engine.RecordReader, error) {
	return nil, nil
}

func (e *fakeEngine) QueryStream(ctx context.Context, sql string) (engine.RecordStream, error) {
	return &fakeStream{rec: e.rec, sc: e.rec.Schema()}, nil
}

func (e *fakeEngine) Close() error { return nil }

func buildTestRecord(t *testing.T) arrow.Record {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}}}}
	arrowSchema := schema.ToArrowSchema(sc)

	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{7, 8, 9}, nil)

	return bld.NewRecord()
}

func startTestFlightServer(t *testing.T, mgr *session.Manager) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := flightrpc.NewServer(mgr)
	go srv.Serve(lis)

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	return lis.Addr().String()
}

func TestReadFetchesRecordsFromFlightServer(t *testing.T) {
	rec := buildTestRecord(t)

	mgr := session.NewManager(func() (engine.Session, error) {
		return &fakeEngine{rec: rec}, nil
	}, nil, time.Hour, time.Hour, mlog.Noop{}, nil)
	t.Cleanup(mgr.Close)

	sessionID, err := mgr.CreateSession("", 0)
	require.NoError(t, err)

	addr := startTestFlightServer(t, mgr)

	r := New()
	ds := datasource.DataSource{
		Name:   "remote",
		Format: location.ArrowStream,
		Location: location.Location{
			Authority: addr,
			Path:      "/" + sessionID + "/orders",
		},
	}

	records, err := r.Read(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 3, records[0].NumRows())
}

func TestReadUnknownSessionReturnsError(t *testing.T) {
	mgr := session.NewManager(func() (engine.Session, error) {
		return &fakeEngine{}, nil
	}, nil, time.Hour, time.Hour, mlog.Noop{}, nil)
	t.Cleanup(mgr.Close)

	addr := startTestFlightServer(t, mgr)

	r := New()
	ds := datasource.DataSource{
		Name:     "remote",
		Format:   location.ArrowStream,
		Location: location.Location{Authority: addr, Path: "/missing-session/orders"},
	}

	_, err := r.Read(context.Background(), ds)
	assert.Error(t, err)
}

func TestParseTicketRequiresSessionAndDescriptor(t *testing.T) {
	_, _, err := parseTicket("")
	assert.Error(t, err)

	_, _, err = parseTicket("onlyone")
	assert.Error(t, err)

	sessionID, descriptor, err := parseTicket("/sess1/orders")
	require.NoError(t, err)
	assert.Equal(t, "sess1", sessionID)
	assert.Equal(t, "orders", descriptor)
}
