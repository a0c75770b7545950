package stream

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/engine"
)

// Flusher is satisfied by *bufio.Writer (the writer fiber hands to a
// body stream writer) and lets WriteArrowStream push each message to
// the client as soon as it is written, instead of buffering in front
// of it. http.ResponseWriter's Flush has no return value and does not
// satisfy it.
type Flusher interface {
	Flush() error
}

type streamChunk struct {
	rec arrow.Record
	err error
}

// WriteArrowStream writes schema once, then one IPC message per
// record read from rs, flushing after each message. The producer side
// reads from rs in its own goroutine and hands records to the writer
// over a bounded channel (capacity ChannelCapacity) so a slow client
// applies backpressure to the engine instead of the server
// materializing unboundedly far ahead of the response.
func WriteArrowStream(ctx context.Context, w io.Writer, rs engine.RecordStream) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rs.Schema()))
	defer writer.Close()

	ch := make(chan streamChunk, ChannelCapacity)

	go func() {
		defer close(ch)

		for {
			rec, err := rs.Next(ctx)
			if err == io.EOF {
				return
			}

			if err != nil {
				ch <- streamChunk{err: err}
				return
			}

			select {
			case ch <- streamChunk{rec: rec}:
			case <-ctx.Done():
				rec.Release()
				return
			}
		}
	}()

	for chunk := range ch {
		if chunk.err != nil {
			return apperr.RecordBatch(fmt.Errorf("stream arrow records: %w", chunk.err))
		}

		err := writer.Write(chunk.rec)
		chunk.rec.Release()

		if err != nil {
			return apperr.RecordBatch(fmt.Errorf("write arrow ipc message: %w", err))
		}

		if f, ok := w.(Flusher); ok {
			_ = f.Flush()
		}
	}

	return nil
}

// WriteArrowBuffered materializes every record first, then writes a
// complete Arrow IPC stream into w.
func WriteArrowBuffered(w io.Writer, records []arrow.Record, schema *arrow.Schema) error {
	var buf bytes.Buffer

	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))

	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			writer.Close()
			return apperr.RecordBatch(fmt.Errorf("write arrow ipc batch: %w", err))
		}
	}

	if err := writer.Close(); err != nil {
		return apperr.RecordBatch(fmt.Errorf("close arrow ipc writer: %w", err))
	}

	_, err := w.Write(buf.Bytes())

	return err
}

// WriteJSON materializes records into one JSON array of row objects.
// Non-Arrow formats always buffer (spec.md §4.9).
func WriteJSON(w io.Writer, records []arrow.Record) error {
	enc := json.NewEncoder(w)

	rows, err := rowsFromRecords(records)
	if err != nil {
		return err
	}

	if err := enc.Encode(rows); err != nil {
		return apperr.RecordBatch(fmt.Errorf("encode json response: %w", err))
	}

	return nil
}

// WriteCSV materializes records and writes them with the given
// header/delimiter configuration.
func WriteCSV(w io.Writer, records []arrow.Record, schema *arrow.Schema, hasHeader bool, delimiter rune) error {
	if delimiter == 0 {
		delimiter = ','
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if hasHeader {
		names := make([]string, schema.NumFields())
		for i, f := range schema.Fields() {
			names[i] = f.Name
		}

		if err := cw.Write(names); err != nil {
			return apperr.RecordBatch(fmt.Errorf("write csv header: %w", err))
		}
	}

	rows, err := rowsFromRecords(records)
	if err != nil {
		return err
	}

	for _, row := range rows {
		cells := make([]string, schema.NumFields())
		for i, f := range schema.Fields() {
			cells[i] = fmt.Sprint(row[f.Name])
		}

		if err := cw.Write(cells); err != nil {
			return apperr.RecordBatch(fmt.Errorf("write csv row: %w", err))
		}
	}

	cw.Flush()

	return cw.Error()
}

func rowsFromRecords(records []arrow.Record) ([]map[string]any, error) {
	var rows []map[string]any

	for _, rec := range records {
		schema := rec.Schema()

		for row := 0; row < int(rec.NumRows()); row++ {
			obj := make(map[string]any, int(rec.NumCols()))

			for col := 0; col < int(rec.NumCols()); col++ {
				obj[schema.Field(col).Name] = valueAt(rec.Column(col), row)
			}

			rows = append(rows, obj)
		}
	}

	return rows, nil
}

// valueAt extracts a column value at row as a plain Go value suitable
// for JSON/CSV encoding, covering the dtypes schema.ToArrow produces.
func valueAt(col arrow.Array, row int) any {
	if col.IsNull(row) {
		return nil
	}

	switch a := col.(type) {
	case *array.Boolean:
		return a.Value(row)
	case *array.Int8:
		return a.Value(row)
	case *array.Int16:
		return a.Value(row)
	case *array.Int32:
		return a.Value(row)
	case *array.Int64:
		return a.Value(row)
	case *array.Uint8:
		return a.Value(row)
	case *array.Uint16:
		return a.Value(row)
	case *array.Uint32:
		return a.Value(row)
	case *array.Uint64:
		return a.Value(row)
	case *array.Float32:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.String:
		return a.Value(row)
	case *array.LargeString:
		return a.Value(row)
	case *array.Date32:
		return a.Value(row).ToTime().Format("2006-01-02")
	case *array.Timestamp:
		dt := col.DataType().(*arrow.TimestampType)
		return a.Value(row).ToTime(dt.Unit)
	default:
		return a.ValueStr(row)
	}
}
