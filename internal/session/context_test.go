package session

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/engine"
	"github.com/sal-openlab/datafusion-server/internal/externaldb"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func makeRecord(t *testing.T) arrow.Record {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}}}}
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), schema.ToArrowSchema(sc))
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)

	return bld.NewRecord()
}

func makeRecordAltSchema(t *testing.T) arrow.Record {
	t.Helper()

	sc := schema.Schema{Fields: []schema.Field{{Name: "name", Dtype: schema.Dtype{Kind: schema.Utf8}}}}
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), schema.ToArrowSchema(sc))
	defer bld.Release()
	bld.Field(0).(*array.StringBuilder).AppendValues([]string{"a"}, nil)

	return bld.NewRecord()
}

func TestRegisterRecordBatchRejectsEmptyBatches(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	err := ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, nil)
	assert.Error(t, err)
}

func TestRegisterRecordBatchRejectsSchemaMismatch(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec1 := makeRecord(t)
	defer rec1.Release()
	rec2 := makeRecordAltSchema(t)
	defer rec2.Release()

	err := ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec1, rec2})
	assert.Error(t, err)
}

func TestRegisterRecordBatchDuplicateWithoutOverwriteFails(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec := makeRecord(t)
	defer rec.Release()

	require.NoError(t, ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec}))

	err := ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec})
	assert.Error(t, err)
}

func TestRegisterRecordBatchDuplicateWithOverwriteSucceeds(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec := makeRecord(t)
	defer rec.Release()

	require.NoError(t, ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec}))

	ds := datasource.DataSource{Name: "t", Options: datasource.Options{Overwrite: true}}
	require.NoError(t, ctx.RegisterRecordBatch(ds, []arrow.Record{rec}))
}

func TestExistsDataSourceRemovesWhenOverwriteSet(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec := makeRecord(t)
	defer rec.Release()
	require.NoError(t, ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec}))

	err := ctx.ExistsDataSource(datasource.DataSource{Name: "t", Options: datasource.Options{Overwrite: true}})
	require.NoError(t, err)

	_, ok := ctx.DataSource("t")
	assert.False(t, ok)
}

func TestExistsDataSourceWithoutOverwriteErrors(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec := makeRecord(t)
	defer rec.Release()
	require.NoError(t, ctx.RegisterRecordBatch(datasource.DataSource{Name: "t"}, []arrow.Record{rec}))

	err := ctx.ExistsDataSource(datasource.DataSource{Name: "t"})
	assert.Error(t, err)
}

func TestRemoveDataSourceUnknownNameErrors(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	assert.Error(t, ctx.RemoveDataSource("nope"))
}

func TestSetVariableAndVariablesSnapshot(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	ctx.SetVariable(Variable{Name: "region", Value: "us-east-1"})

	vars := ctx.Variables()
	require.Contains(t, vars, "region")
	assert.Equal(t, "us-east-1", vars["region"].Value)
}

func TestExpiredAndTTL(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Millisecond, nil)
	time.Sleep(5 * time.Millisecond)

	assert.True(t, ctx.Expired())
	assert.Less(t, ctx.TTL(), time.Duration(0))
}

func TestDataSourceNamesListsRegistered(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	rec := makeRecord(t)
	defer rec.Release()
	require.NoError(t, ctx.RegisterRecordBatch(datasource.DataSource{Name: "orders"}, []arrow.Record{rec}))

	assert.Equal(t, []string{"orders"}, ctx.DataSourceNames())
}

// A Context with no externalDB resolver configured (the common case:
// no external-db namespaces in config.Config) must leave every
// statement untouched, including one that happens to contain an
// "@namespace"-shaped table reference — resolveExternal only acts once
// a Resolver is wired in.
func TestResolveExternalWithoutResolverIsPassthrough(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	got, err := ctx.resolveExternal(context.Background(), `SELECT * FROM orders@erp`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM orders@erp`, got)
}

func TestResolveExternalWithoutNamespaceReferenceIsPassthrough(t *testing.T) {
	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, nil)

	got, err := ctx.resolveExternal(context.Background(), `SELECT * FROM orders`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM orders`, got)
}

// stubQueryEngine is a fakeEngine whose Query always returns a fixed
// RecordReader, so executeExternalInsert's sub-select step can be
// exercised without a real DuckDB session.
type stubQueryEngine struct {
	fakeEngine
	reader engine.RecordReader
}

func (e *stubQueryEngine) Query(context.Context, string) (engine.RecordReader, error) {
	return e.reader, nil
}

type stubReader struct {
	schema  *arrow.Schema
	records []arrow.Record
}

func (r *stubReader) Schema() *arrow.Schema   { return r.schema }
func (r *stubReader) Records() []arrow.Record { return r.records }

// A plain local INSERT (no "@namespace" target) must never be
// recognized as an external write — it falls straight through to the
// embedded engine untouched, even with a resolver configured.
func TestExecuteExternalInsertNonExternalStatementIsNotHandled(t *testing.T) {
	resolver, err := externaldb.NewResolver(nil, "", 0, mlog.Noop{})
	require.NoError(t, err)

	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, resolver)

	reader, handled, err := ctx.executeExternalInsert(context.Background(), `INSERT INTO orders (id) VALUES (1)`)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, reader)
}

// An INSERT INTO an "@namespace"-qualified table runs its sub-select
// against the embedded engine, then reaches Resolver.Table/Pool for
// the target namespace — proven here by the "unknown namespace" error
// a Resolver with zero configured namespaces returns, since no real
// Postgres/MySQL server is available in this environment.
func TestExecuteExternalInsertForwardsSubselectToResolver(t *testing.T) {
	rec := makeRecord(t)
	defer rec.Release()

	eng := &stubQueryEngine{reader: &stubReader{schema: rec.Schema(), records: []arrow.Record{rec}}}

	resolver, err := externaldb.NewResolver(nil, "", 0, mlog.Noop{})
	require.NoError(t, err)

	ctx := NewContext("s1", eng, time.Hour, resolver)

	_, err = ctx.ExecuteLogicalPlan(context.Background(), `INSERT INTO orders@warehouse SELECT id FROM staging`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown external db namespace")
}

// A malformed external INSERT (no SELECT to forward) is rejected
// before ever touching the resolver.
func TestExecuteExternalInsertRejectsNonSelectBody(t *testing.T) {
	resolver, err := externaldb.NewResolver(nil, "", 0, mlog.Noop{})
	require.NoError(t, err)

	ctx := NewContext("s1", &fakeEngine{tables: map[string][]arrow.Record{}}, time.Hour, resolver)

	_, err = ctx.ExecuteLogicalPlan(context.Background(), `INSERT INTO orders@warehouse VALUES (1, 2)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSERT INTO table [(columns)] SELECT")
}
