package externaldb

import "github.com/sal-openlab/datafusion-server/internal/schema"

// dtypeFromMySQL maps an INFORMATION_SCHEMA.COLUMNS.DATA_TYPE value
// to a logical Dtype, the MySQL counterpart of dtypeFromPostgres.
func dtypeFromMySQL(vendorType string) schema.Dtype {
	switch vendorType {
	case "tinyint":
		return schema.Dtype{Kind: schema.Int8}
	case "smallint":
		return schema.Dtype{Kind: schema.Int16}
	case "int", "mediumint":
		return schema.Dtype{Kind: schema.Int32}
	case "bigint":
		return schema.Dtype{Kind: schema.Int64}
	case "float":
		return schema.Dtype{Kind: schema.Float32}
	case "double":
		return schema.Dtype{Kind: schema.Float64}
	case "decimal", "numeric":
		return schema.Dtype{Kind: schema.Decimal128, Precision: 38, Scale: 9}
	case "date":
		return schema.Dtype{Kind: schema.Date32}
	case "datetime", "timestamp":
		return schema.Dtype{Kind: schema.Timestamp, Unit: schema.Microsecond}
	case "varchar", "char", "text", "longtext", "mediumtext", "json":
		return schema.Dtype{Kind: schema.Utf8}
	default:
		return schema.Dtype{Kind: schema.Utf8}
	}
}
