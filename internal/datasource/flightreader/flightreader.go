// Package flightreader fetches record batches from an Arrow Flight
// endpoint, decoding the DataSource's path as a "{session_id}/{descriptor}"
// ticket per spec.md §4.3.
package flightreader

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
)

// Reader implements datasource.Reader for Arrow Flight sources.
type Reader struct{}

// New builds a Flight Reader.
func New() *Reader { return &Reader{} }

// Read dials ds.Location.Authority, issues DoGet against a ticket
// built from the parsed "{session_id}/{descriptor}" path, and
// consumes the resulting schema-then-batches stream.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	sessionID, descriptor, err := parseTicket(ds.Location.Path)
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()

	conn, err := grpc.NewClient(ds.Location.Authority, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, apperr.ConnectionByPeer(fmt.Errorf("dial flight endpoint %q: %w", ds.Location.Authority, err))
	}
	defer conn.Close()

	client := flight.NewFlightServiceClient(conn)

	stream, err := client.DoGet(ctx, &flight.Ticket{Ticket: []byte(sessionID + "/" + descriptor)})
	if err != nil {
		return nil, apperr.ConnectionByPeer(fmt.Errorf("flight DoGet %q: %w", ds.Name, err))
	}

	fr, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, apperr.ConnectionByPeer(fmt.Errorf("open flight record reader %q: %w", ds.Name, err))
	}
	defer fr.Release()

	var records []arrow.Record
	for fr.Next() {
		rec := fr.Record()
		rec.Retain()
		records = append(records, rec)
	}

	if err := fr.Err(); err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("consume flight stream %q: %w", ds.Name, err))
	}

	return records, nil
}

func parseTicket(path string) (sessionID, descriptor string, err error) {
	trimmed := strings.TrimPrefix(path, "/")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.RequestValidation("flight ticket %q must be \"{session_id}/{descriptor}\"", path)
	}

	return parts[0], parts[1], nil
}
