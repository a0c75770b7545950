package externaldb

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ColumnBinder extracts a single Arrow column's value at a given row
// as a driver-compatible value for parameter binding, grounded on
// original_source/lib/src/data_source/database/column_binder.rs.
type ColumnBinder struct {
	rec arrow.Record
}

// NewColumnBinder builds a binder over rec.
func NewColumnBinder(rec arrow.Record) *ColumnBinder {
	return &ColumnBinder{rec: rec}
}

// Value returns the value at (col, row) as a type database/sql's
// driver can bind directly.
func (b *ColumnBinder) Value(col, row int) (any, error) {
	arr := b.rec.Column(col)
	if arr.IsNull(row) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(row), nil
	case *array.Int8:
		return a.Value(row), nil
	case *array.Int16:
		return a.Value(row), nil
	case *array.Int32:
		return a.Value(row), nil
	case *array.Int64:
		return a.Value(row), nil
	case *array.Uint8:
		return a.Value(row), nil
	case *array.Uint16:
		return a.Value(row), nil
	case *array.Uint32:
		return a.Value(row), nil
	case *array.Uint64:
		return a.Value(row), nil
	case *array.Float32:
		return a.Value(row), nil
	case *array.Float64:
		return a.Value(row), nil
	case *array.String:
		return a.Value(row), nil
	case *array.LargeString:
		return a.Value(row), nil
	case *array.Date32:
		return a.Value(row).ToTime(), nil
	case *array.Timestamp:
		dt := b.rec.Schema().Field(col).Type.(*arrow.TimestampType)
		return a.Value(row).ToTime(dt.Unit), nil
	default:
		return nil, fmt.Errorf("column binder: unsupported arrow type %s for column %d", arr.DataType(), col)
	}
}
