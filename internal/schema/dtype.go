// Package schema is the bidirectional conversion layer between the
// server's logical, user-declared schema and the engine's native Arrow
// schema. It never panics on an unrepresentable native type; an
// unknown arrow.DataType decodes to Kind Unknown and re-encodes as
// binary, satisfying the round-trip property tests pin down in spec §8.
package schema

// Kind enumerates the logical dtype kinds spec.md §3 lists. It is a
// flat closed enum with kind-specific payload fields on Dtype rather
// than an interface hierarchy, so dispatch stays a single switch.
type Kind int

const (
	Boolean Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	Decimal128
	Decimal256
	Timestamp
	Date32
	Date64
	Time32
	Time64
	Duration
	Interval
	Utf8
	List
	LargeList
	Map
	Struct
	Union
	Unknown
)

// TimeUnit mirrors arrow.TimeUnit without importing the arrow package
// into the logical model's vocabulary.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
)

// UnionMode mirrors arrow.UnionMode.
type UnionMode int

const (
	SparseUnion UnionMode = iota
	DenseUnion
)

// Dtype is a logical dtype. Only the fields relevant to Kind are
// populated; the rest are zero.
type Dtype struct {
	Kind Kind

	// Decimal128/Decimal256
	Precision int32
	Scale     int32

	// Timestamp, Time32/64, Duration
	Unit TimeUnit
	// Timestamp only; empty means no timezone.
	TimeZone string

	// Interval
	IntervalUnit IntervalUnit

	// List, LargeList: element field.
	Elem *Field

	// Map: key/value fields.
	Key   *Field
	Value *Field

	// Struct: member fields in order.
	Fields []Field

	// Union: branch fields and mode.
	Branches  []Field
	TypeCodes []int8
	UnionMode UnionMode
}

// IntervalUnit mirrors arrow.IntervalUnit.
type IntervalUnit int

const (
	IntervalMonths IntervalUnit = iota
	IntervalDayTime
	IntervalMonthDayNano
)

// Field is an ordered, named, nullable logical column.
type Field struct {
	Name     string
	Dtype    Dtype
	Nullable bool
}

// Schema is an ordered sequence of fields.
type Schema struct {
	Fields []Field
}

// FieldByName returns the field with the given name and true, or the
// zero Field and false.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return Field{}, false
}

// Names returns the fields' names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}

	return names
}
