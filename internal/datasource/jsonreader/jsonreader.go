// Package jsonreader decodes JSON array sources into Arrow record
// batches, optionally scoped by a JSONPath expression, following the
// null-padding and schema-order behavior of
// original_source/lib/src/data_source/reader/json_decoder.rs.
package jsonreader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/tidwall/gjson"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Reader implements datasource.Reader for JSON array sources.
type Reader struct {
	Open func(ds datasource.DataSource) (io.ReadCloser, error)
}

// New builds a Reader that opens ds.Location.Path directly from disk.
func New() *Reader {
	return &Reader{Open: openLocalFile}
}

func openLocalFile(ds datasource.DataSource) (io.ReadCloser, error) {
	f, err := os.Open(ds.Location.Path)
	if err != nil {
		return nil, apperr.HTTPRequest(err)
	}

	return f, nil
}

// Read decodes ds per spec.md §4.3: without a JSONPath the whole
// document must be a JSON array of objects; with one, the expression
// is evaluated first via gjson and its result must itself be an
// array. With Options.RequireNormalize set, objects missing a schema
// field get that field synthesized as null, preserving field order.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	rc, err := r.Open(ds)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("read json source %q: %w", ds.Name, err))
	}

	objects, err := extractObjects(data, ds.Options.JSONPath)
	if err != nil {
		return nil, err
	}

	return BuildFromObjects(ds, objects)
}

// BuildFromObjects infers (or reuses) a schema, normalizes if
// requested, and builds a single record batch from already-decoded
// objects. Exported so ndjsonreader and any plugin-decoded source can
// reuse the same schema-inference and null-padding behavior without
// re-implementing it.
func BuildFromObjects(ds datasource.DataSource, objects []map[string]any) ([]arrow.Record, error) {
	sc := ds.Schema
	if sc == nil {
		inferred := inferSchema(objects, ds.InferSchemaRows(false))
		sc = &inferred
	}

	if ds.Options.RequireNormalize {
		objects = normalize(objects, *sc)
	}

	rec, err := buildRecord(*sc, objects)
	if err != nil {
		return nil, err
	}

	return []arrow.Record{rec}, nil
}

func extractObjects(data []byte, jsonPath string) ([]map[string]any, error) {
	var raw json.RawMessage = data

	if jsonPath != "" {
		result := gjson.GetBytes(data, jsonPath)
		if !result.Exists() {
			return nil, apperr.JSONParsing(fmt.Errorf("jsonPath %q matched nothing", jsonPath))
		}

		if !result.IsArray() {
			return nil, apperr.RequestValidation("jsonPath %q must evaluate to an array", jsonPath)
		}

		raw = json.RawMessage(result.Raw)
	}

	var generic []any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, apperr.JSONParsing(fmt.Errorf("decode json source: %w", err))
	}

	objects := make([]map[string]any, 0, len(generic))
	for _, v := range generic {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, apperr.RequestValidation("json source must be an array of objects")
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

func normalize(objects []map[string]any, sc schema.Schema) []map[string]any {
	out := make([]map[string]any, len(objects))
	for i, obj := range objects {
		normalized := make(map[string]any, len(sc.Fields))
		for _, f := range sc.Fields {
			if v, ok := obj[f.Name]; ok {
				normalized[f.Name] = v
			} else {
				normalized[f.Name] = nil
			}
		}

		out[i] = normalized
	}

	return out
}

// inferSchema samples up to maxRows objects, unions their keys (keys
// first seen in an earlier object come first; the order among keys
// first seen in the same object is not defined), and derives a dtype
// per key from the first non-null value observed for it.
func inferSchema(objects []map[string]any, maxRows int) schema.Schema {
	if maxRows > len(objects) {
		maxRows = len(objects)
	}

	var order []string
	seen := make(map[string]bool)
	kinds := make(map[string]schema.Kind)
	typed := make(map[string]bool)

	for i := 0; i < maxRows; i++ {
		for k, v := range objects[i] {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
				kinds[k] = schema.Utf8
			}

			if kind, ok := inferKind(v); ok && !typed[k] {
				kinds[k] = kind
				typed[k] = true
			}
		}
	}

	fields := make([]schema.Field, len(order))
	for i, name := range order {
		fields[i] = schema.Field{Name: name, Dtype: schema.Dtype{Kind: kinds[name]}, Nullable: true}
	}

	return schema.Schema{Fields: fields}
}

func inferKind(v any) (schema.Kind, bool) {
	switch v.(type) {
	case nil:
		return 0, false
	case bool:
		return schema.Boolean, true
	case float64:
		return schema.Float64, true
	case string:
		return schema.Utf8, true
	default:
		return schema.Utf8, true
	}
}

func buildRecord(sc schema.Schema, objects []map[string]any) (arrow.Record, error) {
	arrowSchema := schema.ToArrowSchema(sc)
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema)
	defer bld.Release()

	for _, obj := range objects {
		for i, f := range sc.Fields {
			appendValue(bld.Field(i), f.Dtype.Kind, obj[f.Name])
		}
	}

	return bld.NewRecord(), nil
}

func appendValue(b array.Builder, kind schema.Kind, v any) {
	if v == nil {
		b.AppendNull()
		return
	}

	switch kind {
	case schema.Boolean:
		bb, ok := b.(*array.BooleanBuilder)
		val, vok := v.(bool)
		if ok && vok {
			bb.Append(val)
			return
		}
	case schema.Int64:
		ib, ok := b.(*array.Int64Builder)
		val, vok := v.(float64)
		if ok && vok {
			ib.Append(int64(val))
			return
		}
	case schema.Float64:
		fb, ok := b.(*array.Float64Builder)
		val, vok := v.(float64)
		if ok && vok {
			fb.Append(val)
			return
		}
	case schema.Utf8:
		sb, ok := b.(*array.StringBuilder)
		if ok {
			sb.Append(fmt.Sprint(v))
			return
		}
	}

	b.AppendNull()
}
