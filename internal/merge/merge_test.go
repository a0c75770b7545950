package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramValidateRowEmptyTargets(t *testing.T) {
	p := Program{Direction: Row, BaseTable: "orders"}
	assert.Error(t, p.Validate())
}

func TestProgramValidateColumnEmptyTargets(t *testing.T) {
	p := Program{Direction: Column, BaseTable: "orders"}
	assert.Error(t, p.Validate())
}

func TestProgramValidateColumnKeyLengthMismatch(t *testing.T) {
	p := Program{
		Direction: Column,
		BaseTable: "orders",
		ColumnTargets: []ColumnTarget{
			{Table: "customers", BaseKeys: []string{"customer_id"}, TargetKeys: []string{"id", "extra"}},
		},
	}
	assert.Error(t, p.Validate())
}

func TestProgramValidateOK(t *testing.T) {
	p := Program{
		Direction:  Row,
		BaseTable:  "orders",
		RowTargets: []string{"orders_q2"},
	}
	assert.NoError(t, p.Validate())
}

func TestQuoteEscapesDoubleQuotes(t *testing.T) {
	assert.Equal(t, `"weird""name"`, quote(`weird"name`))
}
