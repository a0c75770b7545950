// Package arrowreader decodes an Arrow IPC stream into record
// batches. Valid only when the DataSource's origin is a plugin call
// or already in-memory; the registry (internal/datasource) never
// routes a file/http/https origin here, but Read double-checks the
// invariant itself so a misconfigured registry fails loudly instead
// of silently accepting a local file as Arrow IPC.
package arrowreader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
)

// Reader implements datasource.Reader for Arrow IPC sources.
type Reader struct{}

// New builds an Arrow IPC Reader.
func New() *Reader { return &Reader{} }

// DecodeBuffer decodes a complete Arrow IPC stream already held in
// memory, used by pluginreader when an extension returns an Arrow IPC
// buffer directly and by the HTTP layer for post-processor replies.
// Read does not call it.
func DecodeBuffer(buf []byte) ([]arrow.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(buf), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("open arrow ipc stream: %w", err))
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}

	if err := reader.Err(); err != nil {
		return nil, apperr.RecordBatch(fmt.Errorf("decode arrow ipc stream: %w", err))
	}

	return records, nil
}

// Read decodes nothing itself: a non-plugin location is rejected as
// unsupported_format, and a plugin location is also rejected with
// unsupported_format, since the Arrow payload of a plugin source is
// the buffer the plugin call returns, which DecodeBuffer handles.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	if !ds.Location.IsPlugin {
		return nil, apperr.UnsupportedFormat("arrow format is only valid from a plugin or in-memory origin, got scheme %q", ds.Location.Scheme.String())
	}

	return nil, apperr.UnsupportedFormat("arrow format requires the plugin call's returned buffer; use DecodeBuffer directly")
}
