// Package pluginreader dispatches a DataSource to a registered
// out-of-process extension via hashicorp/go-plugin, keeping the ABI
// narrow per spec.md §9: inputs are format, authority, path, options;
// output is either an Arrow IPC buffer or a declared-format byte
// buffer this package decodes by dispatching back into the matching
// reader.
package pluginreader

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/datasource/arrowreader"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/plugin"
)

// BufferDecoder decodes an in-memory buffer a plugin returned in a
// declared format into record batches.
type BufferDecoder func(data []byte, ds datasource.DataSource) ([]arrow.Record, error)

// Reader implements datasource.Reader, dispatching to the extension
// registered for ds.Location.PluginTag.
type Reader struct {
	Registry *plugin.Registry
	Decode   map[location.Format]BufferDecoder // declared-format fallback decoders, keyed by the buffer's stated format
}

// New builds a Reader backed by reg, decoding non-Arrow buffers with
// decode.
func New(reg *plugin.Registry, decode map[location.Format]BufferDecoder) *Reader {
	return &Reader{Registry: reg, Decode: decode}
}

// Read invokes the extension's FetchDataSource RPC with the narrow
// request shape (format, authority, path, options) and decodes its
// response per the declared payload kind.
func (r *Reader) Read(ctx context.Context, ds datasource.DataSource) ([]arrow.Record, error) {
	ext, err := r.Registry.Lookup(ds.Location.PluginTag)
	if err != nil {
		return nil, err
	}

	resp, err := ext.FetchDataSource(ctx, plugin.FetchRequest{
		Format:    ds.Format.String(),
		Authority: ds.Location.Authority,
		Path:      ds.Location.Path,
		Headers:   ds.Options.Headers,
	})
	if err != nil {
		return nil, apperr.PluginInterpreter(fmt.Errorf("plugin %q fetch %q: %w", ds.Location.PluginTag, ds.Name, err))
	}

	if resp.ArrowIPC {
		return arrowreader.DecodeBuffer(resp.Buffer)
	}

	declared, err := location.ParseFormat(resp.DeclaredFormat)
	if err != nil {
		return nil, apperr.PluginInterpreter(fmt.Errorf("plugin %q declared unknown format %q", ds.Location.PluginTag, resp.DeclaredFormat))
	}

	decode, ok := r.Decode[declared]
	if !ok {
		return nil, apperr.PluginInterpreter(fmt.Errorf("no decoder registered for plugin-declared format %q", declared))
	}

	bufDS := ds
	bufDS.Format = declared

	return decode(resp.Buffer, bufDS)
}
