package httpapi

import (
	"time"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/merge"
	"github.com/sal-openlab/datafusion-server/internal/schema"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

// toDataSource resolves a wire DataSourceInput into the internal
// descriptor C1/C3 operate on, parsing its location through the
// plugin-scheme-aware resolver the registered extensions contribute.
func (h *handlers) toDataSource(in DataSourceInput) (datasource.DataSource, error) {
	format, err := location.ParseFormat(in.Format)
	if err != nil {
		return datasource.DataSource{}, err
	}

	loc, err := location.ParseLocation(in.Location, h.deps.Plugins.HasScheme)
	if err != nil {
		return datasource.DataSource{}, err
	}

	var sc *schema.Schema
	if len(in.Schema) > 0 {
		sc, err = toSchema(in.Schema)
		if err != nil {
			return datasource.DataSource{}, err
		}
	}

	return datasource.DataSource{
		Name:     in.Name,
		Format:   format,
		Location: loc,
		Schema:   sc,
		Options:  toOptions(in.Options),
	}, nil
}

func toSchema(fields []SchemaFieldInput) (*schema.Schema, error) {
	out := make([]schema.Field, len(fields))

	for i, f := range fields {
		kind, err := schema.ParseKind(f.Dtype)
		if err != nil {
			return nil, apperr.RequestValidation("schema field %q: %s", f.Name, err)
		}

		out[i] = schema.Field{Name: f.Name, Dtype: schema.Dtype{Kind: kind}, Nullable: f.Nullable}
	}

	return &schema.Schema{Fields: out}, nil
}

func toOptions(o DataSourceOption) datasource.Options {
	opts := datasource.Options{
		InferSchemaRows:  o.InferSchemaRows,
		JSONPath:         o.JSONPath,
		RequireNormalize: o.RequireNormalize,
		Overwrite:        o.Overwrite,
		Headers:          o.Headers,
		Version:          o.Version,
		RefreshSchema:    o.RefreshSchema,
	}

	if o.HasHeader != nil {
		opts.HasHeader = *o.HasHeader
		opts.HasHeaderSet = true
	}

	if o.Delimiter != "" {
		opts.Delimiter = []rune(o.Delimiter)[0]
	}

	return opts
}

// toMergeProgram converts one wire MergeProcessorInput into a
// merge.Program.
func toMergeProgram(in MergeProcessorInput) (merge.Program, error) {
	p := merge.Program{
		BaseTable:  in.BaseTable,
		RowTargets: in.RowTargets,
		Options: merge.Options{
			Distinct:          in.Options.Distinct,
			RemoveAfterMerged: in.Options.RemoveAfterMerged,
		},
	}

	switch in.Direction {
	case "row":
		p.Direction = merge.Row
	case "column":
		p.Direction = merge.Column
	default:
		return merge.Program{}, apperr.RequestValidation("unknown merge direction %q", in.Direction)
	}

	p.ColumnTargets = make([]merge.ColumnTarget, len(in.ColumnTargets))
	for i, t := range in.ColumnTargets {
		p.ColumnTargets[i] = merge.ColumnTarget{Table: t.Table, BaseKeys: t.BaseKeys, TargetKeys: t.TargetKeys}
	}

	return p, nil
}

// toVariable converts one wire VariableVal entry into a
// session.Variable.
func toVariable(name string, v VariableVal) session.Variable {
	return session.Variable{Name: name, Dtype: v.Dtype, Value: v.Value}
}

func toSessionInfo(id string, ttl, keepAlive time.Duration, tableCount int) SessionInfo {
	return SessionInfo{
		ID:             id,
		KeepAliveMs:    keepAlive.Milliseconds(),
		RemainingTTLMs: ttl.Milliseconds(),
		TableCount:     tableCount,
	}
}
