// Package avroreader decodes Avro object container files into Arrow
// record batches via hamba/avro, registered as a plain file-format
// table with no table-provider machinery (unlike externaldb's C5).
package avroreader

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/datasource/jsonreader"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

// Reader implements datasource.Reader for Avro sources.
type Reader struct{}

// New builds an Avro Reader.
func New() *Reader { return &Reader{} }

// Read decodes every object in ds's Avro container into a generic
// map, then reuses jsonreader's schema-inference and record-building
// logic (the Schema Model's ToArrow conversion underlies both).
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	f, err := os.Open(ds.Location.Path)
	if err != nil {
		return nil, apperr.HTTPRequest(err)
	}
	defer f.Close()

	dec, err := ocf.NewDecoder(f)
	if err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("open avro source %q: %w", ds.Name, err))
	}

	var objects []map[string]any
	for dec.HasNext() {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, apperr.RecordBatch(fmt.Errorf("decode avro record: %w", err))
		}

		objects = append(objects, obj)
	}

	if err := dec.Error(); err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("read avro source %q: %w", ds.Name, err))
	}

	if ds.Schema == nil {
		if inferred, ok := schemaFromAvro(dec.Schema()); ok {
			ds.Schema = &inferred
		}
	}

	return jsonreader.BuildFromObjects(ds, objects)
}

// schemaFromAvro maps the Avro writer schema's top-level record
// fields to a logical Schema, falling back to JSON-based inference
// when the schema is not a record (e.g. a bare union or primitive).
func schemaFromAvro(s avro.Schema) (schema.Schema, bool) {
	rec, ok := s.(*avro.RecordSchema)
	if !ok {
		return schema.Schema{}, false
	}

	fields := make([]schema.Field, 0, len(rec.Fields()))
	for _, f := range rec.Fields() {
		fields = append(fields, schema.Field{
			Name:     f.Name(),
			Dtype:    dtypeFromAvro(f.Type()),
			Nullable: isNullable(f.Type()),
		})
	}

	return schema.Schema{Fields: fields}, true
}

func isNullable(s avro.Schema) bool {
	u, ok := s.(*avro.UnionSchema)
	if !ok {
		return false
	}

	for _, t := range u.Types() {
		if t.Type() == avro.Null {
			return true
		}
	}

	return false
}

func dtypeFromAvro(s avro.Schema) schema.Dtype {
	switch s.Type() {
	case avro.Boolean:
		return schema.Dtype{Kind: schema.Boolean}
	case avro.Int:
		return schema.Dtype{Kind: schema.Int32}
	case avro.Long:
		return schema.Dtype{Kind: schema.Int64}
	case avro.Float:
		return schema.Dtype{Kind: schema.Float32}
	case avro.Double:
		return schema.Dtype{Kind: schema.Float64}
	case avro.String:
		return schema.Dtype{Kind: schema.Utf8}
	case avro.Union:
		u := s.(*avro.UnionSchema)
		for _, t := range u.Types() {
			if t.Type() != avro.Null {
				return dtypeFromAvro(t)
			}
		}
	}

	return schema.Dtype{Kind: schema.Utf8}
}
