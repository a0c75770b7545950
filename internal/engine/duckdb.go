package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/marcboeker/go-duckdb"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

// duckdbSession is the embedded-engine Session implementation backed
// by an in-process DuckDB database, one per session.Context, never
// shared across sessions.
type duckdbSession struct {
	connector *duckdb.Connector
	db        *sql.DB
	arrow     *duckdb.Arrow

	mu      sync.Mutex
	release map[string]func()
}

// NewDuckDBSession opens a fresh in-memory DuckDB database for a
// single session.
func NewDuckDBSession() (Session, error) {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("open duckdb connector: %w", err))
	}

	db := sql.OpenDB(connector)

	conn, err := db.Conn(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, apperr.DataFusion(fmt.Errorf("open duckdb connection: %w", err))
	}
	defer conn.Close()

	arrowIface, err := duckdb.NewArrowFromConn(conn)
	if err != nil {
		_ = db.Close()
		return nil, apperr.DataFusion(fmt.Errorf("open duckdb arrow interface: %w", err))
	}

	return &duckdbSession{
		connector: connector,
		db:        db,
		arrow:     arrowIface,
		release:   make(map[string]func()),
	}, nil
}

// RegisterRecord registers recs as a zero-copy view named name,
// replacing any previous registration under the same name.
func (s *duckdbSession) RegisterRecord(name string, recs []arrow.Record) error {
	if len(recs) == 0 {
		return apperr.RecordBatch(fmt.Errorf("cannot register %q with zero record batches", name))
	}

	reader, err := array.NewRecordReader(recs[0].Schema(), recs)
	if err != nil {
		return apperr.RecordBatch(fmt.Errorf("build record reader for %q: %w", name, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if release, ok := s.release[name]; ok {
		release()
		delete(s.release, name)
	}

	release, err := s.arrow.RegisterView(reader, name)
	if err != nil {
		return apperr.RecordBatch(fmt.Errorf("register view %q: %w", name, err))
	}

	s.release[name] = release

	return nil
}

// Deregister drops the table or view registered under name, a no-op
// if nothing is registered under it.
func (s *duckdbSession) Deregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if release, ok := s.release[name]; ok {
		release()
		delete(s.release, name)
	}

	return nil
}

// Query runs sql to completion and materializes the result as an
// in-memory RecordReader.
func (s *duckdbSession) Query(ctx context.Context, query string) (RecordReader, error) {
	reader, err := s.arrow.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("execute query: %w", err))
	}
	defer reader.Release()

	schema := reader.Schema()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}

	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, apperr.DataFusion(fmt.Errorf("read query result: %w", err))
	}

	return &materializedReader{schema: schema, records: records}, nil
}

// QueryStream runs sql and forwards its result as a lazily-consumed
// stream, so C9 never materializes a large result set in memory.
func (s *duckdbSession) QueryStream(ctx context.Context, query string) (RecordStream, error) {
	reader, err := s.arrow.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("execute query: %w", err))
	}

	return &duckdbStream{reader: reader}, nil
}

func (s *duckdbSession) Close() error {
	s.mu.Lock()
	for name, release := range s.release {
		release()
		delete(s.release, name)
	}
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return apperr.DataFusion(fmt.Errorf("close duckdb session: %w", err))
	}

	return nil
}

type materializedReader struct {
	schema  *arrow.Schema
	records []arrow.Record
}

func (r *materializedReader) Schema() *arrow.Schema  { return r.schema }
func (r *materializedReader) Records() []arrow.Record { return r.records }

type duckdbStream struct {
	reader *array.RecordReader
}

func (s *duckdbStream) Schema() *arrow.Schema { return s.reader.Schema() }

func (s *duckdbStream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.reader.Next() {
		if err := s.reader.Err(); err != nil && err != io.EOF {
			return nil, apperr.DataFusion(err)
		}

		return nil, io.EOF
	}

	rec := s.reader.Record()
	rec.Retain()

	return rec, nil
}

func (s *duckdbStream) Close() error {
	s.reader.Release()
	return nil
}
