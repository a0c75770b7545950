package datasource

import (
	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/location"
)

// originClass is the scheme-class half of the (format, scheme-class)
// double match spec.md §9 calls for, kept separate from Format so
// neither axis degenerates into a single type switch.
type originClass int

const (
	originLocal originClass = iota
	originRemote
	originObjectStore
	originPlugin
)

// Exported aliases so cmd/datafusion-server's wiring code can call
// Register without reaching into an unexported type.
const (
	OriginLocal       = originLocal
	OriginRemote      = originRemote
	OriginObjectStore = originObjectStore
	OriginPlugin      = originPlugin
)

func classify(loc location.Location) originClass {
	switch {
	case loc.IsPlugin:
		return originPlugin
	case loc.Scheme.RemoteSource():
		return originRemote
	case loc.Scheme.HandlesObjectStore():
		return originObjectStore
	default:
		return originLocal
	}
}

type registryKey struct {
	format Format
	origin originClass
}

// Registry dispatches a DataSource to the Reader registered for its
// (format, scheme-class) pair. It never switches on format alone: an
// arrow-format DataSource over a local file is rejected even though a
// reader is registered for arrow-format-over-plugin (spec.md §4.3).
type Registry struct {
	readers      map[registryKey]Reader
	pluginReader Reader // handles every format when origin is plugin; the plugin itself decodes per its declared format
}

// NewRegistry builds an empty registry; callers populate it with
// Register during startup wiring (cmd/datafusion-server).
func NewRegistry() *Registry {
	return &Registry{readers: make(map[registryKey]Reader)}
}

// Register binds a reader to every origin class it is valid for.
func (r *Registry) Register(f Format, reader Reader, origins ...originClass) {
	for _, o := range origins {
		r.readers[registryKey{format: f, origin: o}] = reader
	}
}

// RegisterPlugin binds the single pluginreader that handles every
// format when a DataSource's location resolves to a plugin scheme.
func (r *Registry) RegisterPlugin(reader Reader) {
	r.pluginReader = reader
}

// Resolve returns the reader for ds, enforcing the format × origin
// match spec.md §9 and §4.3's arrow-only-from-plugin rule.
func (r *Registry) Resolve(ds DataSource) (Reader, error) {
	origin := classify(ds.Location)

	if origin == originPlugin {
		if r.pluginReader == nil {
			return nil, apperr.UnsupportedFormat("no plugin registered for scheme %q", ds.Location.PluginTag)
		}

		return r.pluginReader, nil
	}

	isFlight := ds.Location.Scheme == location.GRPC || ds.Location.Scheme == location.GRPCTLS

	if ds.Format == location.ArrowStream && !isFlight {
		return nil, apperr.UnsupportedFormat("arrow format is only valid from a plugin, Arrow Flight or in-memory origin")
	}

	reader, ok := r.readers[registryKey{format: ds.Format, origin: origin}]
	if !ok {
		return nil, apperr.UnsupportedFormat("no reader registered for format %q over this origin", ds.Format)
	}

	return reader, nil
}
