package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

var timeUnitToArrow = map[TimeUnit]arrow.TimeUnit{
	Second:      arrow.Second,
	Millisecond: arrow.Millisecond,
	Microsecond: arrow.Microsecond,
	Nanosecond:  arrow.Nanosecond,
}

var timeUnitFromArrow = map[arrow.TimeUnit]TimeUnit{
	arrow.Second:      Second,
	arrow.Millisecond: Millisecond,
	arrow.Microsecond: Microsecond,
	arrow.Nanosecond:  Nanosecond,
}

// ToArrow converts a Dtype into its native arrow.DataType. Kinds with
// no direct arrow representation (Unknown, or any malformed payload
// this package itself never produces) fall back to binary rather than
// panicking.
func ToArrow(d Dtype) arrow.DataType {
	switch d.Kind {
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Uint8:
		return arrow.PrimitiveTypes.Uint8
	case Uint16:
		return arrow.PrimitiveTypes.Uint16
	case Uint32:
		return arrow.PrimitiveTypes.Uint32
	case Uint64:
		return arrow.PrimitiveTypes.Uint64
	case Float16:
		return arrow.FixedWidthTypes.Float16
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Decimal128:
		return &arrow.Decimal128Type{Precision: d.Precision, Scale: d.Scale}
	case Decimal256:
		return &arrow.Decimal256Type{Precision: d.Precision, Scale: d.Scale}
	case Timestamp:
		return &arrow.TimestampType{Unit: timeUnitToArrow[d.Unit], TimeZone: d.TimeZone}
	case Date32:
		return arrow.FixedWidthTypes.Date32
	case Date64:
		return arrow.FixedWidthTypes.Date64
	case Time32:
		if timeUnitToArrow[d.Unit] == arrow.Millisecond {
			return arrow.FixedWidthTypes.Time32ms
		}

		return arrow.FixedWidthTypes.Time32s
	case Time64:
		if timeUnitToArrow[d.Unit] == arrow.Nanosecond {
			return arrow.FixedWidthTypes.Time64ns
		}

		return arrow.FixedWidthTypes.Time64us
	case Duration:
		return &arrow.DurationType{Unit: timeUnitToArrow[d.Unit]}
	case Interval:
		switch d.IntervalUnit {
		case IntervalMonths:
			return arrow.FixedWidthTypes.MonthInterval
		case IntervalMonthDayNano:
			return arrow.FixedWidthTypes.MonthDayNanoInterval
		default:
			return arrow.FixedWidthTypes.DayTimeInterval
		}
	case Utf8:
		return arrow.BinaryTypes.String
	case List:
		return arrow.ListOf(ToArrow(d.Elem.Dtype))
	case LargeList:
		return arrow.LargeListOf(ToArrow(d.Elem.Dtype))
	case Map:
		return arrow.MapOf(ToArrow(d.Key.Dtype), ToArrow(d.Value.Dtype))
	case Struct:
		return arrow.StructOf(toArrowFields(d.Fields)...)
	case Union:
		fields := toArrowFields(d.Branches)
		if d.UnionMode == DenseUnion {
			return arrow.DenseUnionOf(fields, d.TypeCodes)
		}

		return arrow.SparseUnionOf(fields, d.TypeCodes)
	default:
		return arrow.BinaryTypes.Binary
	}
}

func toArrowFields(fields []Field) []arrow.Field {
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		out[i] = arrow.Field{Name: f.Name, Type: ToArrow(f.Dtype), Nullable: f.Nullable}
	}

	return out
}

// FromArrow converts a native arrow.DataType into its logical Dtype.
// Types this package has no logical representation for decode to
// Kind Unknown instead of erroring, matching the "Unknown→binary
// fallback" spec.md §3 calls for.
func FromArrow(t arrow.DataType) Dtype {
	switch v := t.(type) {
	case *arrow.BooleanType:
		return Dtype{Kind: Boolean}
	case *arrow.Int8Type:
		return Dtype{Kind: Int8}
	case *arrow.Int16Type:
		return Dtype{Kind: Int16}
	case *arrow.Int32Type:
		return Dtype{Kind: Int32}
	case *arrow.Int64Type:
		return Dtype{Kind: Int64}
	case *arrow.Uint8Type:
		return Dtype{Kind: Uint8}
	case *arrow.Uint16Type:
		return Dtype{Kind: Uint16}
	case *arrow.Uint32Type:
		return Dtype{Kind: Uint32}
	case *arrow.Uint64Type:
		return Dtype{Kind: Uint64}
	case *arrow.Float16Type:
		return Dtype{Kind: Float16}
	case *arrow.Float32Type:
		return Dtype{Kind: Float32}
	case *arrow.Float64Type:
		return Dtype{Kind: Float64}
	case *arrow.Decimal128Type:
		return Dtype{Kind: Decimal128, Precision: v.Precision, Scale: v.Scale}
	case *arrow.Decimal256Type:
		return Dtype{Kind: Decimal256, Precision: v.Precision, Scale: v.Scale}
	case *arrow.TimestampType:
		return Dtype{Kind: Timestamp, Unit: timeUnitFromArrow[v.Unit], TimeZone: v.TimeZone}
	case *arrow.Date32Type:
		return Dtype{Kind: Date32}
	case *arrow.Date64Type:
		return Dtype{Kind: Date64}
	case *arrow.Time32Type:
		return Dtype{Kind: Time32, Unit: timeUnitFromArrow[v.Unit]}
	case *arrow.Time64Type:
		return Dtype{Kind: Time64, Unit: timeUnitFromArrow[v.Unit]}
	case *arrow.DurationType:
		return Dtype{Kind: Duration, Unit: timeUnitFromArrow[v.Unit]}
	case *arrow.MonthIntervalType:
		return Dtype{Kind: Interval, IntervalUnit: IntervalMonths}
	case *arrow.DayTimeIntervalType:
		return Dtype{Kind: Interval, IntervalUnit: IntervalDayTime}
	case *arrow.MonthDayNanoIntervalType:
		return Dtype{Kind: Interval, IntervalUnit: IntervalMonthDayNano}
	case *arrow.StringType, *arrow.LargeStringType:
		return Dtype{Kind: Utf8}
	case *arrow.ListType:
		elem := fromArrowField(v.ElemField())
		return Dtype{Kind: List, Elem: &elem}
	case *arrow.LargeListType:
		elem := fromArrowField(v.ElemField())
		return Dtype{Kind: LargeList, Elem: &elem}
	case *arrow.MapType:
		key := fromArrowField(v.KeyField())
		val := fromArrowField(v.ItemField())

		return Dtype{Kind: Map, Key: &key, Value: &val}
	case *arrow.StructType:
		return Dtype{Kind: Struct, Fields: fromArrowFields(v.Fields())}
	case *arrow.SparseUnionType:
		return Dtype{Kind: Union, Branches: fromArrowFields(v.Fields()), TypeCodes: v.TypeCodes(), UnionMode: SparseUnion}
	case *arrow.DenseUnionType:
		return Dtype{Kind: Union, Branches: fromArrowFields(v.Fields()), TypeCodes: v.TypeCodes(), UnionMode: DenseUnion}
	default:
		return Dtype{Kind: Unknown}
	}
}

func fromArrowField(f arrow.Field) Field {
	return Field{Name: f.Name, Dtype: FromArrow(f.Type), Nullable: f.Nullable}
}

func fromArrowFields(fields []arrow.Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = fromArrowField(f)
	}

	return out
}

// ToArrowSchema converts a logical Schema into an *arrow.Schema.
func ToArrowSchema(s Schema) *arrow.Schema {
	return arrow.NewSchema(toArrowFields(s.Fields), nil)
}

// FromArrowSchema converts an *arrow.Schema into a logical Schema.
func FromArrowSchema(s *arrow.Schema) Schema {
	return Schema{Fields: fromArrowFields(s.Fields())}
}
