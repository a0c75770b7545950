package externaldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func TestRewriteStatement(t *testing.T) {
	plain, ns, err := RewriteStatement(`INSERT INTO orders@warehouse (id, total) VALUES ($1, $2)`)
	assert.NoError(t, err)
	assert.Equal(t, "warehouse", ns)
	assert.Equal(t, `INSERT INTO orders (id, total) VALUES ($1, $2)`, plain)
}

func TestRewriteStatementNoNamespace(t *testing.T) {
	_, _, err := RewriteStatement(`INSERT INTO orders (id, total) VALUES ($1, $2)`)
	assert.Error(t, err)
}

func TestRewriteStatementMultipleNamespaces(t *testing.T) {
	_, _, err := RewriteStatement(`INSERT INTO orders@warehouse SELECT * FROM archive@cold`)
	assert.Error(t, err)
}

func TestFindReferencesDedupesByTableAndNamespace(t *testing.T) {
	refs := FindReferences(`SELECT * FROM orders@erp o JOIN orders@erp o2 ON o.id = o2.id JOIN archive@cold a ON a.id = o.id`)

	require.Len(t, refs, 2)
	assert.Equal(t, "orders", refs[0].Table)
	assert.Equal(t, "erp", refs[0].Namespace)
	assert.Equal(t, "archive", refs[1].Table)
	assert.Equal(t, "cold", refs[1].Namespace)
}

func TestFindReferencesNoneReturnsNil(t *testing.T) {
	assert.Nil(t, FindReferences(`SELECT * FROM orders`))
}

func TestQuoteReferencesRewritesEveryOccurrence(t *testing.T) {
	stmt := `SELECT * FROM orders@erp JOIN archive@cold ON orders@erp.id = archive@cold.id`
	refs := FindReferences(stmt)

	got := QuoteReferences(stmt, refs)
	assert.Equal(t, `SELECT * FROM "orders@erp" JOIN "archive@cold" ON "orders@erp".id = "archive@cold".id`, got)
}

func TestDtypeFromPostgresSpotCheck(t *testing.T) {
	assert.Equal(t, schema.Int32, dtypeFromPostgres("integer").Kind)
	assert.Equal(t, schema.Utf8, dtypeFromPostgres("unknown_vendor_type").Kind)
}

func TestDtypeFromMySQLSpotCheck(t *testing.T) {
	assert.Equal(t, schema.Int64, dtypeFromMySQL("bigint").Kind)
	assert.Equal(t, schema.Utf8, dtypeFromMySQL("varchar").Kind)
}
