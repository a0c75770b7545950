package httpapi

// DataSourceOption is the recognized subset of a DataSource's option
// bag from spec.md §6.
type DataSourceOption struct {
	HasHeader        *bool             `json:"hasHeader,omitempty"`
	InferSchemaRows  int               `json:"inferSchemaRows,omitempty"`
	Delimiter        string            `json:"delimiter,omitempty"`
	JSONPath         string            `json:"jsonPath,omitempty"`
	RequireNormalize bool              `json:"requireNormalize,omitempty"`
	Overwrite        bool              `json:"overwrite,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Version          *int64            `json:"version,omitempty"`
	RefreshSchema    bool              `json:"refreshSchema,omitempty"`
}

// SchemaFieldInput is a single field of a client-supplied schema.
type SchemaFieldInput struct {
	Name     string `json:"name" validate:"required"`
	Dtype    string `json:"dtype" validate:"required"`
	Nullable bool   `json:"nullable"`
}

// DataSourceInput is one entry of the DataSources payload accepted by
// POST /session/{id}/datasource and /datasource/save.
type DataSourceInput struct {
	Name     string             `json:"name" validate:"required"`
	Format   string             `json:"format" validate:"required"`
	Location string             `json:"location" validate:"required"`
	Schema   []SchemaFieldInput `json:"schema,omitempty"`
	Options  DataSourceOption   `json:"options,omitempty"`
}

// DataSourcesRequest is the request body for
// POST /session/{id}/datasource and /datasource/save.
type DataSourcesRequest struct {
	DataSources []DataSourceInput `json:"dataSources" validate:"required,min=1,dive"`
}

// ColumnTargetInput mirrors merge.ColumnTarget on the wire.
type ColumnTargetInput struct {
	Table      string   `json:"table" validate:"required"`
	BaseKeys   []string `json:"baseKeys" validate:"required,min=1"`
	TargetKeys []string `json:"targetKeys" validate:"required,min=1"`
}

// MergeProcessorInput mirrors merge.Program on the wire.
type MergeProcessorInput struct {
	Direction     string              `json:"direction" validate:"required,oneof=row column"`
	BaseTable     string              `json:"baseTable" validate:"required"`
	RowTargets    []string            `json:"rowTargets,omitempty"`
	ColumnTargets []ColumnTargetInput `json:"columnTargets,omitempty"`
	Options       struct {
		Distinct          bool `json:"distinct,omitempty"`
		RemoveAfterMerged bool `json:"removeAfterMerged,omitempty"`
	} `json:"options,omitempty"`
}

// ProcessorInput is the request body for POST /session/{id}/processor.
type ProcessorInput struct {
	MergeProcessors []MergeProcessorInput `json:"mergeProcessors" validate:"required,min=1,dive"`
}

// ResponseOption is the response.format/options object of a
// DataFrameQuery.
type ResponseOption struct {
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// QueryInput is the query.{sql, postProcessors} object of a
// DataFrameQuery.
type QueryInput struct {
	SQL            string   `json:"sql" validate:"required"`
	PostProcessors []string `json:"postProcessors,omitempty"`
}

// DataFrameQueryRequest is the body of POST /dataframe/query.
type DataFrameQueryRequest struct {
	DataSources []DataSourceInput      `json:"dataSources" validate:"required,min=1,dive"`
	Variables   map[string]VariableVal `json:"variables,omitempty"`
	Processor   *ProcessorInput        `json:"processor,omitempty"`
	Query       QueryInput             `json:"query" validate:"required"`
	Response    *ResponseOption        `json:"response,omitempty"`
}

// VariableVal is one entry of DataFrameQueryRequest.Variables.
type VariableVal struct {
	Dtype string `json:"dtype" validate:"required"`
	Value any    `json:"value"`
}

// SessionQueryRequest is the body of POST /session/{id}/query when
// Content-Type is application/json rather than application/sql.
type SessionQueryRequest struct {
	SQL      string          `json:"sql" validate:"required"`
	Response *ResponseOption `json:"response,omitempty"`
}

// SessionInfo is the response shape for session listing/detail.
type SessionInfo struct {
	ID             string `json:"id"`
	KeepAliveMs    int64  `json:"keepAliveMs"`
	RemainingTTLMs int64  `json:"remainingTtlMs"`
	TableCount     int    `json:"tableCount"`
}

// DataSourceDetail is the response shape for
// GET /session/{id}/datasource/{name}.
type DataSourceDetail struct {
	Name   string             `json:"name"`
	Format string             `json:"format"`
	Schema []SchemaFieldInput `json:"schema"`
}

// SysInfo is the response body for GET /sysinfo.
type SysInfo struct {
	Version           string `json:"version"`
	GoVersion         string `json:"goVersion"`
	UptimeSeconds     int64  `json:"uptimeSeconds"`
	SessionCount      int    `json:"sessionCount"`
	ObjectStoreCount  int    `json:"objectStoreCount"`
	ExternalDBCount   int    `json:"externalDbCount"`
	RegisteredPlugins int    `json:"registeredPlugins"`
}
