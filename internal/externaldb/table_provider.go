package externaldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Column is one remote column as reported by information_schema,
// before it is mapped to a logical Dtype.
type Column struct {
	Name       string
	VendorType string
	Nullable   bool
}

// TableProvider caches a remote table's column list and logical
// schema for a namespace's lifetime, unless options.refreshSchema
// asks the resolver to rebuild it.
type TableProvider struct {
	Table     string
	Namespace string
	Engine    Engine
	Columns   []Column
	Schema    schema.Schema
}

func newTableProvider(ctx context.Context, db *sql.DB, engine Engine, table, namespace string) (*TableProvider, error) {
	columns, err := fetchColumns(ctx, db, engine, table)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		return nil, apperr.RequestValidation("table %q not found in namespace %q", table, namespace)
	}

	fields := make([]schema.Field, len(columns))
	for i, c := range columns {
		dtype := dtypeFor(engine, c.VendorType)
		fields[i] = schema.Field{Name: c.Name, Dtype: dtype, Nullable: c.Nullable}
	}

	return &TableProvider{
		Table:     table,
		Namespace: namespace,
		Engine:    engine,
		Columns:   columns,
		Schema:    schema.Schema{Fields: fields},
	}, nil
}

func fetchColumns(ctx context.Context, db *sql.DB, engine Engine, table string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`

	if engine == MySQL {
		query = `
			SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE = 'YES'
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_NAME = ?
			ORDER BY ORDINAL_POSITION`
	}

	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, apperr.RequestValidation("list columns for %q: %s", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.VendorType, &c.Nullable); err != nil {
			return nil, fmt.Errorf("scan column metadata for %q: %w", table, err)
		}

		columns = append(columns, c)
	}

	return columns, rows.Err()
}

func dtypeFor(engine Engine, vendorType string) schema.Dtype {
	if engine == MySQL {
		return dtypeFromMySQL(vendorType)
	}

	return dtypeFromPostgres(vendorType)
}

// Fetch runs a full scan of p's remote table and returns its rows as a
// single Arrow record batch, giving the embedded query engine real
// data to register a "<table>@<namespace>" reference against rather
// than just the schema newTableProvider already caches.
func (p *TableProvider) Fetch(ctx context.Context, db *sql.DB) ([]arrow.Record, error) {
	cols := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		cols[i] = quoteIdentifier(c.Name)
	}

	query, args, err := builderFor(p.Engine).Select(cols...).From(quoteIdentifier(p.Table)).ToSql()
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("build select for %q: %w", p.Table, err))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("fetch %q: %w", p.Table, err))
	}
	defer rows.Close()

	arrowSchema := schema.ToArrowSchema(p.Schema)
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()

	raw := make([]any, len(p.Columns))
	dest := make([]any, len(p.Columns))
	for i := range dest {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, apperr.DataFusion(fmt.Errorf("scan row of %q: %w", p.Table, err))
		}

		for i, f := range p.Schema.Fields {
			appendRemoteValue(bld.Field(i), f.Dtype, raw[i])
		}
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.DataFusion(fmt.Errorf("iterate rows of %q: %w", p.Table, err))
	}

	return []arrow.Record{bld.NewRecord()}, nil
}

// appendRemoteValue converts a driver-scanned value (typically int64,
// float64, bool, string, []byte, or time.Time, depending on the Go SQL
// driver) into dtype's builder. Any value that cannot be converted to
// the expected kind becomes null rather than failing the whole fetch,
// matching jsonreader.appendValue's tolerant shape for a similarly
// dynamically-typed source.
func appendRemoteValue(b array.Builder, dtype schema.Dtype, v any) {
	if v == nil {
		b.AppendNull()
		return
	}

	switch dtype.Kind {
	case schema.Boolean:
		if val, ok := v.(bool); ok {
			b.(*array.BooleanBuilder).Append(val)
			return
		}
	case schema.Int8, schema.Int16, schema.Int32, schema.Int64,
		schema.Uint8, schema.Uint16, schema.Uint32, schema.Uint64:
		if n, ok := toInt64(v); ok {
			appendInt(b, dtype.Kind, n)
			return
		}
	case schema.Float32, schema.Float64:
		if f, ok := toFloat64(v); ok {
			appendFloat(b, dtype.Kind, f)
			return
		}
	case schema.Decimal128:
		if num, ok := toDecimal128(v, dtype.Precision, dtype.Scale); ok {
			b.(*array.Decimal128Builder).Append(num)
			return
		}
	case schema.Date32:
		if t, ok := v.(time.Time); ok {
			b.(*array.Date32Builder).Append(arrow.Date32FromTime(t))
			return
		}
	case schema.Timestamp:
		if t, ok := v.(time.Time); ok {
			ts, err := arrow.TimestampFromTime(t, timeUnitToArrow(dtype.Unit))
			if err == nil {
				b.(*array.TimestampBuilder).Append(ts)
				return
			}
		}
	case schema.Utf8:
		b.(*array.StringBuilder).Append(stringify(v))
		return
	}

	b.AppendNull()
}

func appendInt(b array.Builder, kind schema.Kind, n int64) {
	switch kind {
	case schema.Int8:
		b.(*array.Int8Builder).Append(int8(n))
	case schema.Int16:
		b.(*array.Int16Builder).Append(int16(n))
	case schema.Int32:
		b.(*array.Int32Builder).Append(int32(n))
	case schema.Int64:
		b.(*array.Int64Builder).Append(n)
	case schema.Uint8:
		b.(*array.Uint8Builder).Append(uint8(n))
	case schema.Uint16:
		b.(*array.Uint16Builder).Append(uint16(n))
	case schema.Uint32:
		b.(*array.Uint32Builder).Append(uint32(n))
	case schema.Uint64:
		b.(*array.Uint64Builder).Append(uint64(n))
	}
}

func appendFloat(b array.Builder, kind schema.Kind, f float64) {
	if kind == schema.Float32 {
		b.(*array.Float32Builder).Append(float32(f))
		return
	}

	b.(*array.Float64Builder).Append(f)
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case []byte:
		n, err := strconv.ParseInt(string(t), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toDecimal128(v any, precision, scale int32) (decimal128.Num, bool) {
	num, err := decimal128.FromString(stringify(v), precision, scale)
	if err != nil {
		return decimal128.Num{}, false
	}

	return num, true
}

func stringify(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return fmt.Sprint(v)
}

func timeUnitToArrow(u schema.TimeUnit) arrow.TimeUnit {
	switch u {
	case schema.Second:
		return arrow.Second
	case schema.Millisecond:
		return arrow.Millisecond
	case schema.Nanosecond:
		return arrow.Nanosecond
	default:
		return arrow.Microsecond
	}
}
