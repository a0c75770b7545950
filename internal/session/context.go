// Package session implements the Session Context (C6) and Session
// Manager (C7): a reader-writer-mutex-disciplined per-session table
// catalog wrapping the embedded query engine, and a process-wide map
// of these contexts reaped by TTL.
package session

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/engine"
	"github.com/sal-openlab/datafusion-server/internal/externaldb"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Variable is a user variable binding registered as a provider
// consulted during SQL execution.
type Variable struct {
	Name  string
	Dtype string
	Value any
}

// Context is a single session's state: the embedded engine session,
// last-access timestamp, fixed TTL, and the map of registered tables
// to their originating DataSource descriptors. mu guards tables and
// lastAccessedAt; the engine itself is safe for concurrent use by
// go-duckdb's own connection pooling, but mutating the catalog's view
// of it (register/deregister) is always taken under mu.
type Context struct {
	ID         string
	engine     engine.Session
	keepAlive  time.Duration
	externalDB *externaldb.Resolver

	mu             sync.RWMutex
	lastAccessedAt time.Time
	tables         map[string]datasource.DataSource
	variables      map[string]Variable
}

// NewContext builds a Context around eng with the given keep-alive
// duration, setting lastAccessedAt to now. externalDB may be nil when
// no external-db namespaces are configured.
func NewContext(id string, eng engine.Session, keepAlive time.Duration, externalDB *externaldb.Resolver) *Context {
	return &Context{
		ID:             id,
		engine:         eng,
		keepAlive:      keepAlive,
		externalDB:     externalDB,
		lastAccessedAt: time.Now(),
		tables:         make(map[string]datasource.DataSource),
		variables:      make(map[string]Variable),
	}
}

// touch is the one place that takes the write lock for its own sake,
// bumping lastAccessedAt; every mutating and querying operation calls
// it before returning success (spec.md §4.6).
func (c *Context) touch() {
	c.mu.Lock()
	c.lastAccessedAt = time.Now()
	c.mu.Unlock()
}

// Expired reports whether the session has outlived its keep-alive
// window, read-locked so the manager's reap sweep never blocks a
// concurrent query.
func (c *Context) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Since(c.lastAccessedAt) > c.keepAlive
}

// TTL returns the remaining time before the session expires, zero or
// negative if already expired.
func (c *Context) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.keepAlive - time.Since(c.lastAccessedAt)
}

// KeepAlive returns the session's configured keep-alive window.
func (c *Context) KeepAlive() time.Duration {
	return c.keepAlive
}

// DataSource returns the descriptor registered under name.
func (c *Context) DataSource(name string) (datasource.DataSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ds, ok := c.tables[name]

	return ds, ok
}

// DataSourceNames returns every currently registered table name.
func (c *Context) DataSourceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}

	return names
}

// RegisterRecordBatch concatenates batches into one table, registers
// it under ds.Name, and records ds as the table's descriptor. The
// registering batch's schema is enforced on every batch (spec.md
// "Schema" glossary entry): a mismatched schema is a RecordBatchError.
func (c *Context) RegisterRecordBatch(ds datasource.DataSource, batches []arrow.Record) error {
	if len(batches) == 0 {
		return apperr.RecordBatch(fmt.Errorf("cannot register %q with zero record batches", ds.Name))
	}

	schema := batches[0].Schema()
	for _, b := range batches[1:] {
		if !b.Schema().Equal(schema) {
			return apperr.RecordBatch(fmt.Errorf("batches for %q do not share a schema", ds.Name))
		}
	}

	c.mu.Lock()
	_, exists := c.tables[ds.Name]
	c.mu.Unlock()

	if exists && !ds.Options.Overwrite {
		return apperr.DuplicateDataSource(ds.Name)
	}

	if exists {
		if err := c.engine.Deregister(ds.Name); err != nil {
			return apperr.RecordBatch(fmt.Errorf("deregister existing %q: %w", ds.Name, err))
		}
	}

	if err := c.engine.RegisterRecord(ds.Name, batches); err != nil {
		return apperr.RecordBatch(fmt.Errorf("register %q: %w", ds.Name, err))
	}

	c.mu.Lock()
	c.tables[ds.Name] = ds
	c.mu.Unlock()

	c.touch()

	return nil
}

// ExistsDataSource implements spec.md's exists_data_source: when a
// source under ds.Name is already registered and ds.Options.Overwrite
// is set, it is deregistered and removed so the caller can re-ingest;
// otherwise a duplicate error is returned.
func (c *Context) ExistsDataSource(ds datasource.DataSource) error {
	c.mu.RLock()
	_, exists := c.tables[ds.Name]
	c.mu.RUnlock()

	if !exists {
		return nil
	}

	if !ds.Options.Overwrite {
		return apperr.DuplicateDataSource(ds.Name)
	}

	return c.RemoveDataSource(ds.Name)
}

// RemoveDataSource deregisters name from the engine and drops its
// descriptor.
func (c *Context) RemoveDataSource(name string) error {
	c.mu.RLock()
	_, exists := c.tables[name]
	c.mu.RUnlock()

	if !exists {
		return apperr.RequestValidation("data source %q does not exist", name)
	}

	if err := c.engine.Deregister(name); err != nil {
		return apperr.RecordBatch(fmt.Errorf("deregister %q: %w", name, err))
	}

	c.mu.Lock()
	delete(c.tables, name)
	c.mu.Unlock()

	c.touch()

	return nil
}

// SetVariable registers v as a user variable provider consulted
// during SQL execution (spec.md glossary "Variable binding").
func (c *Context) SetVariable(v Variable) {
	c.mu.Lock()
	c.variables[v.Name] = v
	c.mu.Unlock()

	c.touch()
}

// Variables returns a snapshot of every registered variable binding.
func (c *Context) Variables() map[string]Variable {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Variable, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}

	return out
}

// ExecuteLogicalPlan runs sql to completion against the session's
// engine. An INSERT INTO an "@namespace"-qualified table is instead
// forwarded to the remote pool (see executeExternalInsert); everything
// else first resolves any "@namespace"-qualified table *reference* for
// local execution (see resolveExternal).
func (c *Context) ExecuteLogicalPlan(ctx context.Context, sql string) (engine.RecordReader, error) {
	c.touch()

	if reader, handled, err := c.executeExternalInsert(ctx, sql); handled || err != nil {
		return reader, err
	}

	resolved, err := c.resolveExternal(ctx, sql)
	if err != nil {
		return nil, err
	}

	return c.engine.Query(ctx, c.bindVariables(resolved))
}

// ExecuteLogicalPlanStream runs sql as a stream, for C9's streaming
// surface. A write targeting an "@namespace"-qualified table has no
// meaningful streaming result, so it is executed the same way as
// ExecuteLogicalPlan and its single summary record wrapped in a
// stream of one.
func (c *Context) ExecuteLogicalPlanStream(ctx context.Context, sql string) (engine.RecordStream, error) {
	c.touch()

	if reader, handled, err := c.executeExternalInsert(ctx, sql); handled || err != nil {
		if err != nil {
			return nil, err
		}

		return &singleRecordStream{schema: reader.Schema(), records: reader.Records()}, nil
	}

	resolved, err := c.resolveExternal(ctx, sql)
	if err != nil {
		return nil, err
	}

	return c.engine.QueryStream(ctx, c.bindVariables(resolved))
}

// resolveExternal finds every "@namespace"-qualified table reference
// in sql (spec.md §4.5), fetches each one it has not already
// registered this session, registers it under the literal name
// "<table>@<namespace>", and returns sql rewritten to address that
// exact registered name so it executes unmodified against the
// embedded engine. A Context with no externalDB resolver configured
// returns sql unchanged, the same as if it contained no such
// reference.
func (c *Context) resolveExternal(ctx context.Context, sql string) (string, error) {
	if c.externalDB == nil {
		return sql, nil
	}

	refs := externaldb.FindReferences(sql)
	if len(refs) == 0 {
		return sql, nil
	}

	for _, ref := range refs {
		name := ref.Table + "@" + ref.Namespace

		c.mu.RLock()
		_, exists := c.tables[name]
		c.mu.RUnlock()

		if exists {
			continue
		}

		if err := c.registerExternal(ctx, name, ref); err != nil {
			return "", err
		}
	}

	return externaldb.QuoteReferences(sql, refs), nil
}

// registerExternal resolves ref's remote table schema, fetches its
// rows, and registers them on the session under name.
func (c *Context) registerExternal(ctx context.Context, name string, ref externaldb.Reference) error {
	provider, err := c.externalDB.Table(ctx, ref.Table, ref.Namespace, false)
	if err != nil {
		return err
	}

	pool, err := c.externalDB.Pool(ref.Namespace)
	if err != nil {
		return err
	}

	db, err := pool.Connect(ctx)
	if err != nil {
		return apperr.DataFusion(fmt.Errorf("connect to namespace %q: %w", ref.Namespace, err))
	}

	records, err := provider.Fetch(ctx, db)
	if err != nil {
		return err
	}

	return c.RegisterRecordBatch(datasource.DataSource{Name: name}, records)
}

// externalInsertTarget matches an INSERT INTO an "@namespace"-qualified
// table, cheaply, before paying for RewriteStatement's full statement
// scan on the common case of a plain local INSERT.
var externalInsertTarget = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+[\w."]+@\w+`)

// insertSelectStatement splits a plain (namespace-stripped) INSERT
// statement into its target table, optional explicit column list, and
// the SELECT it forwards; it is the only INSERT shape
// executeExternalInsert understands for an external table, since that
// is the one spec.md §4.5 names: "streams any sub-select from the
// engine, binds parameters per Arrow column".
var insertSelectStatement = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+("?[\w.]+"?)\s*(?:\(([^)]*)\))?\s*(SELECT[\s\S]+)$`)

// executeExternalInsert recognizes sql as an INSERT INTO an
// "@namespace"-qualified table and, if so, handles it completely:
// runs the embedded sub-select locally, binds each resulting row's
// columns per ColumnBinder, and forwards the rows to the remote table
// in a transaction via TableProvider.Insert (spec.md §4.5's
// INSERT/UPDATE write path; UPDATE is not yet implemented — see
// DESIGN.md). handled is false when sql is not of this shape, in
// which case reader and err are both meaningless and the caller falls
// through to its normal execution path.
func (c *Context) executeExternalInsert(ctx context.Context, sql string) (reader engine.RecordReader, handled bool, err error) {
	if c.externalDB == nil || !externalInsertTarget.MatchString(sql) {
		return nil, false, nil
	}

	plain, namespace, err := externaldb.RewriteStatement(sql)
	if err != nil {
		return nil, true, err
	}

	m := insertSelectStatement.FindStringSubmatch(strings.TrimSpace(plain))
	if m == nil {
		return nil, true, apperr.RequestValidation(
			"INSERT into an @namespace-qualified table must be INSERT INTO table [(columns)] SELECT ...")
	}

	table := strings.Trim(m[1], `"`)
	columns := splitColumnList(m[2])

	subselect, err := c.engine.Query(ctx, c.bindVariables(m[3]))
	if err != nil {
		return nil, true, err
	}

	rows, err := rowsFromRecords(subselect.Records(), columns)
	if err != nil {
		return nil, true, err
	}

	provider, err := c.externalDB.Table(ctx, table, namespace, false)
	if err != nil {
		return nil, true, err
	}

	pool, err := c.externalDB.Pool(namespace)
	if err != nil {
		return nil, true, err
	}

	db, err := pool.Connect(ctx)
	if err != nil {
		return nil, true, apperr.DataFusion(fmt.Errorf("connect to namespace %q: %w", namespace, err))
	}

	if err := provider.Insert(ctx, db, rows); err != nil {
		return nil, true, err
	}

	c.touch()

	return rowsInsertedReader(len(rows)), true, nil
}

// splitColumnList splits a parenthesized INSERT column list on commas,
// trimming whitespace and quoting; an empty list means "take every
// column of the sub-select, in order".
func splitColumnList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	parts := strings.Split(list, ",")
	cols := make([]string, len(parts))
	for i, p := range parts {
		cols[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}

	return cols
}

// rowsFromRecords flattens recs into one map per row, keyed by names
// (or, if names is empty, by each record's own field names) and
// valued through externaldb.ColumnBinder.
func rowsFromRecords(recs []arrow.Record, names []string) ([]map[string]any, error) {
	var rows []map[string]any

	for _, rec := range recs {
		cols := names
		if len(cols) == 0 {
			cols = make([]string, rec.Schema().NumFields())
			for i := range cols {
				cols[i] = rec.Schema().Field(i).Name
			}
		}

		binder := externaldb.NewColumnBinder(rec)

		for r := 0; r < int(rec.NumRows()); r++ {
			row := make(map[string]any, len(cols))
			for i, name := range cols {
				v, err := binder.Value(i, r)
				if err != nil {
					return nil, apperr.DataFusion(err)
				}

				row[name] = v
			}

			rows = append(rows, row)
		}
	}

	return rows, nil
}

// rowsInsertedReader builds the one-row, one-column result
// ExecuteLogicalPlan returns for a forwarded external INSERT, the
// same shape a DML statement's affected-row-count would take.
func rowsInsertedReader(n int) engine.RecordReader {
	sc := schema.ToArrowSchema(schema.Schema{Fields: []schema.Field{
		{Name: "rows_inserted", Dtype: schema.Dtype{Kind: schema.Int64}},
	}})

	bld := array.NewRecordBuilder(memory.NewGoAllocator(), sc)
	defer bld.Release()

	bld.Field(0).(*array.Int64Builder).Append(int64(n))

	return &insertResultReader{schema: sc, records: []arrow.Record{bld.NewRecord()}}
}

type insertResultReader struct {
	schema  *arrow.Schema
	records []arrow.Record
}

func (r *insertResultReader) Schema() *arrow.Schema   { return r.schema }
func (r *insertResultReader) Records() []arrow.Record { return r.records }

// singleRecordStream adapts an already-materialized RecordReader to
// the RecordStream interface, for the one forwarded-INSERT result
// ExecuteLogicalPlanStream has no remote streaming equivalent for.
type singleRecordStream struct {
	schema  *arrow.Schema
	records []arrow.Record
	idx     int
}

func (s *singleRecordStream) Schema() *arrow.Schema { return s.schema }

func (s *singleRecordStream) Next(context.Context) (arrow.Record, error) {
	if s.idx >= len(s.records) {
		return nil, io.EOF
	}

	rec := s.records[s.idx]
	s.idx++

	return rec, nil
}

func (s *singleRecordStream) Close() error { return nil }

// Engine exposes the underlying engine.Session for packages (merge,
// httpapi) that need direct register/query access beyond Context's
// catalog-aware wrappers.
func (c *Context) Engine() engine.Session {
	return c.engine
}

// Close releases the session's embedded engine resources.
func (c *Context) Close() error {
	return c.engine.Close()
}
