// Package flightrpc is the optional Arrow Flight gRPC surface:
// DoGet streams a session query result, DoPut registers an Arrow IPC
// stream as a session table, both over the same *session.Manager the
// HTTP surface uses, grounded on
// original_source/lib/src/server/flight.rs's do_get/do_put.
package flightrpc

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

type server struct {
	flight.UnimplementedFlightServiceServer

	sessions *session.Manager
}

// NewServer builds a grpc.Server exposing the Arrow Flight service
// over sessions. The caller owns Serve/GracefulStop.
func NewServer(sessions *session.Manager) *grpc.Server {
	s := grpc.NewServer()
	flight.RegisterFlightServiceServer(s, &server{sessions: sessions})

	return s
}

// DoGet resolves ticket as "{session_id}/{sql_or_table}", running a
// bare table name as "SELECT * FROM {table}" and anything containing
// whitespace as a raw SQL statement, then streams the result as Arrow
// IPC flight data.
func (s *server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	sessionID, value, err := splitTicket(string(ticket.Ticket))
	if err != nil {
		return err
	}

	sc, err := s.sessions.Get(sessionID)
	if err != nil {
		return status.Error(codes.NotFound, err.Error())
	}

	sql := value
	if !strings.ContainsAny(value, " \t\n") {
		sql = fmt.Sprintf("SELECT * FROM %q", value)
	}

	ctx := stream.Context()

	rs, err := sc.ExecuteLogicalPlanStream(ctx, sql)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	defer rs.Close()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rs.Schema()))
	defer w.Close()

	for {
		rec, err := rs.Next(ctx)
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}

		if err := w.Write(rec); err != nil {
			return status.Error(codes.Internal, err.Error())
		}
	}
}

// DoPut reads a full Arrow IPC stream from the client and registers
// it as a table under the descriptor's "{session_id}/{table_name}"
// path (C6's RegisterRecordBatch), the way a Flight-origin DataSource
// is resolved by flightreader on the read side.
func (s *server) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	defer reader.Release()

	descriptor := reader.LatestFlightDescriptor()
	if descriptor == nil || len(descriptor.Path) != 2 {
		return status.Error(codes.InvalidArgument, `do_put requires a path-form FlightDescriptor ["{session_id}", "{table_name}"]`)
	}

	sessionID, tableName := descriptor.Path[0], descriptor.Path[1]

	sc, err := s.sessions.Get(sessionID)
	if err != nil {
		return status.Error(codes.NotFound, err.Error())
	}

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}

	if err := reader.Err(); err != nil && err != io.EOF {
		return status.Error(codes.Internal, err.Error())
	}

	ds := datasource.DataSource{
		Name:   tableName,
		Format: location.ArrowStream,
		Location: location.Location{
			Raw:    fmt.Sprintf("grpc://%s/%s", sessionID, tableName),
			Scheme: location.GRPC,
			Path:   tableName,
		},
		Options: datasource.Options{Overwrite: true},
	}

	if err := sc.RegisterRecordBatch(ds, records); err != nil {
		return status.Error(codes.Internal, err.Error())
	}

	return stream.Send(&flight.PutResult{})
}

func splitTicket(raw string) (sessionID, value string, err error) {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", status.Error(codes.InvalidArgument, `ticket must be "{session_id}/{sql_or_table}"`)
	}

	return parts[0], parts[1], nil
}
