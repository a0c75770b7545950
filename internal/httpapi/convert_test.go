package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/merge"
)

func TestToSchemaParsesDtypes(t *testing.T) {
	sc, err := toSchema([]SchemaFieldInput{
		{Name: "id", Dtype: "int64"},
		{Name: "name", Dtype: "utf8", Nullable: true},
	})
	require.NoError(t, err)
	require.Len(t, sc.Fields, 2)
	assert.Equal(t, "id", sc.Fields[0].Name)
	assert.True(t, sc.Fields[1].Nullable)
}

func TestToSchemaRejectsUnknownDtype(t *testing.T) {
	_, err := toSchema([]SchemaFieldInput{{Name: "id", Dtype: "not-a-type"}})
	assert.Error(t, err)
}

func TestToOptionsMapsHasHeaderAndDelimiter(t *testing.T) {
	hasHeader := true
	opts := toOptions(DataSourceOption{
		HasHeader: &hasHeader,
		Delimiter: ";",
		Overwrite: true,
	})

	assert.True(t, opts.HasHeaderSet)
	assert.True(t, opts.HasHeader)
	assert.Equal(t, ';', opts.Delimiter)
	assert.True(t, opts.Overwrite)
}

func TestToOptionsLeavesHasHeaderUnsetWhenNil(t *testing.T) {
	opts := toOptions(DataSourceOption{})
	assert.False(t, opts.HasHeaderSet)
}

func TestToMergeProgramRow(t *testing.T) {
	p, err := toMergeProgram(MergeProcessorInput{
		Direction:  "row",
		BaseTable:  "base",
		RowTargets: []string{"extra"},
	})
	require.NoError(t, err)
	assert.Equal(t, merge.Row, p.Direction)
	assert.Equal(t, []string{"extra"}, p.RowTargets)
}

func TestToMergeProgramColumn(t *testing.T) {
	p, err := toMergeProgram(MergeProcessorInput{
		Direction: "column",
		BaseTable: "base",
		ColumnTargets: []ColumnTargetInput{
			{Table: "t2", BaseKeys: []string{"id"}, TargetKeys: []string{"t2_id"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, merge.Column, p.Direction)
	require.Len(t, p.ColumnTargets, 1)
	assert.Equal(t, "t2", p.ColumnTargets[0].Table)
}

func TestToMergeProgramRejectsUnknownDirection(t *testing.T) {
	_, err := toMergeProgram(MergeProcessorInput{Direction: "diagonal", BaseTable: "base"})
	assert.Error(t, err)
}

func TestToVariableCopiesFields(t *testing.T) {
	v := toVariable("region", VariableVal{Dtype: "utf8", Value: "us-east-1"})
	assert.Equal(t, "region", v.Name)
	assert.Equal(t, "utf8", v.Dtype)
	assert.Equal(t, "us-east-1", v.Value)
}

func TestToSessionInfo(t *testing.T) {
	info := toSessionInfo("s1", 5*time.Second, time.Minute, 3)
	assert.Equal(t, "s1", info.ID)
	assert.Equal(t, int64(60000), info.KeepAliveMs)
	assert.Equal(t, int64(5000), info.RemainingTTLMs)
	assert.Equal(t, 3, info.TableCount)
}
