// Package engine wraps the embedded SQL engine (DuckDB, via
// database/sql) behind a narrow interface so its driver-specific
// shape never leaks into internal/session.
package engine

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// RecordReader yields an already-materialized slice of record batches
// for a query whose result set fits comfortably in memory.
type RecordReader interface {
	Schema() *arrow.Schema
	Records() []arrow.Record
}

// RecordStream yields record batches one at a time, for result sets
// C9's streaming surface forwards directly to the client without
// materializing the whole thing.
type RecordStream interface {
	Schema() *arrow.Schema
	Next(ctx context.Context) (arrow.Record, error) // io.EOF when exhausted
	Close() error
}

// Session is the narrow surface C6 needs from the embedded query
// engine: register/deregister an in-memory table, run a query to
// completion, run one as a stream, or close the session. Five
// methods, so internal/session never imports database/sql or the
// duckdb driver directly.
type Session interface {
	RegisterRecord(name string, recs []arrow.Record) error
	Deregister(name string) error
	Query(ctx context.Context, sql string) (RecordReader, error)
	QueryStream(ctx context.Context, sql string) (RecordStream, error)
	Close() error
}
