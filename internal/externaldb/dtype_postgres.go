package externaldb

import "github.com/sal-openlab/datafusion-server/internal/schema"

// dtypeFromPostgres maps an information_schema.columns.data_type
// value to a logical Dtype, following
// original_source/lib/src/data_source/database/dtype_postgres.rs's
// per-vendor mapping shape. Unrecognized vendor types decode to Utf8
// rather than Unknown, since the external-db path always has a
// concrete textual representation to fall back to.
func dtypeFromPostgres(vendorType string) schema.Dtype {
	switch vendorType {
	case "boolean":
		return schema.Dtype{Kind: schema.Boolean}
	case "smallint":
		return schema.Dtype{Kind: schema.Int16}
	case "integer":
		return schema.Dtype{Kind: schema.Int32}
	case "bigint":
		return schema.Dtype{Kind: schema.Int64}
	case "real":
		return schema.Dtype{Kind: schema.Float32}
	case "double precision":
		return schema.Dtype{Kind: schema.Float64}
	case "numeric", "decimal":
		return schema.Dtype{Kind: schema.Decimal128, Precision: 38, Scale: 9}
	case "date":
		return schema.Dtype{Kind: schema.Date32}
	case "timestamp without time zone":
		return schema.Dtype{Kind: schema.Timestamp, Unit: schema.Microsecond}
	case "timestamp with time zone":
		return schema.Dtype{Kind: schema.Timestamp, Unit: schema.Microsecond, TimeZone: "UTC"}
	case "character varying", "character", "text", "uuid", "json", "jsonb":
		return schema.Dtype{Kind: schema.Utf8}
	default:
		return schema.Dtype{Kind: schema.Utf8}
	}
}
