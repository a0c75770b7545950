package schema

import "fmt"

var kindNames = map[Kind]string{
	Boolean:    "boolean",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	Uint8:      "uint8",
	Uint16:     "uint16",
	Uint32:     "uint32",
	Uint64:     "uint64",
	Float16:    "float16",
	Float32:    "float32",
	Float64:    "float64",
	Decimal128: "decimal128",
	Decimal256: "decimal256",
	Timestamp:  "timestamp",
	Date32:     "date32",
	Date64:     "date64",
	Time32:     "time32",
	Time64:     "time64",
	Duration:   "duration",
	Interval:   "interval",
	Utf8:       "utf8",
	List:       "list",
	LargeList:  "large_list",
	Map:        "map",
	Struct:     "struct",
	Union:      "union",
	Unknown:    "unknown",
}

var namesByKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the wire name for k.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind resolves a wire-level dtype name to its Kind, used when
// decoding a client-supplied schema (spec.md §6 DataSource.schema).
// Parametrized kinds (decimal, timestamp, list, map, struct, union)
// only resolve their Kind here; field-level detail is filled in by the
// caller from the rest of the wire object.
func ParseKind(name string) (Kind, error) {
	if k, ok := namesByKind[name]; ok {
		return k, nil
	}

	return Unknown, fmt.Errorf("unrecognized dtype %q", name)
}
