package externaldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func accountsProvider() *TableProvider {
	return &TableProvider{
		Table:  "accounts",
		Engine: Postgres,
		Columns: []Column{
			{Name: "id"},
			{Name: "name"},
			{Name: "balance"},
			{Name: "opened"},
		},
		Schema: schema.Schema{Fields: []schema.Field{
			{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}},
			{Name: "name", Dtype: schema.Dtype{Kind: schema.Utf8}},
			{Name: "balance", Dtype: schema.Dtype{Kind: schema.Decimal128, Precision: 38, Scale: 9}},
			{Name: "opened", Dtype: schema.Dtype{Kind: schema.Date32}},
		}},
	}
}

func TestTableProviderFetchReadsRemoteRows(t *testing.T) {
	dsn := "fetch-accounts"
	opened := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	registerFakeScript(t, dsn, []string{"id", "name", "balance", "opened"}, [][]driver.Value{
		{int64(1), "alice", "120.500000000", opened},
		{int64(2), "bob", "45.000000000", opened},
	})

	db, err := sql.Open("externaldb-fake", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	recs, err := accountsProvider().Fetch(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	defer recs[0].Release()

	assert.EqualValues(t, 2, recs[0].NumRows())
	assert.Equal(t, []int64{1, 2}, recs[0].Column(0).(*array.Int64).Int64Values())

	names := recs[0].Column(1).(*array.String)
	assert.Equal(t, "alice", names.Value(0))
	assert.Equal(t, "bob", names.Value(1))

	assert.False(t, recs[0].Column(2).IsNull(0))
	assert.False(t, recs[0].Column(3).IsNull(0))
}

func TestTableProviderFetchNullValueBecomesNull(t *testing.T) {
	dsn := "fetch-accounts-null"
	registerFakeScript(t, dsn, []string{"id", "name", "balance", "opened"}, [][]driver.Value{
		{int64(1), nil, nil, nil},
	})

	db, err := sql.Open("externaldb-fake", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	recs, err := accountsProvider().Fetch(context.Background(), db)
	require.NoError(t, err)
	defer recs[0].Release()

	assert.True(t, recs[0].Column(1).IsNull(0))
	assert.True(t, recs[0].Column(2).IsNull(0))
	assert.True(t, recs[0].Column(3).IsNull(0))
}

func TestTableProviderInsertBindsEveryRow(t *testing.T) {
	dsn := "insert-accounts"
	script := registerFakeScript(t, dsn, nil, nil)

	db, err := sql.Open("externaldb-fake", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := &TableProvider{
		Table:  "accounts",
		Engine: Postgres,
		Schema: schema.Schema{Fields: []schema.Field{
			{Name: "id", Dtype: schema.Dtype{Kind: schema.Int64}},
			{Name: "name", Dtype: schema.Dtype{Kind: schema.Utf8}},
		}},
	}

	err = p.Insert(context.Background(), db, []map[string]any{
		{"id": int64(1), "name": "carol"},
		{"id": int64(2), "name": "dave"},
	})
	require.NoError(t, err)

	script.mu.Lock()
	defer script.mu.Unlock()
	assert.Len(t, script.inserted, 2)
}

func TestTableProviderInsertEmptyRowsIsNoop(t *testing.T) {
	p := &TableProvider{Table: "accounts", Engine: Postgres}
	assert.NoError(t, p.Insert(context.Background(), nil, nil))
}
