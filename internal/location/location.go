package location

import (
	"net/url"
	"strings"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

// Location is a parsed data source URI: scheme, authority (host, or
// host:port for remote/object-store schemes), path and query.
type Location struct {
	Raw       string
	Scheme    Scheme
	IsPlugin  bool
	PluginTag string // raw scheme string when IsPlugin is true
	Authority string
	Path      string
	Query     url.Values
}

// PluginSchemes reports whether a raw scheme string has been claimed
// by a registered extension. It is satisfied by internal/plugin's
// registry; kept as a narrow func type here so this package never
// imports the plugin package.
type PluginSchemes func(raw string) bool

// ParseLocation splits raw into scheme, authority, path and query via
// net/url, defaulting to the file scheme when none is present. hasPlugin
// may be nil, in which case no scheme is ever treated as plugin-owned.
func ParseLocation(raw string, hasPlugin PluginSchemes) (Location, error) {
	if raw == "" {
		return Location{}, apperr.RequestValidation("location is empty")
	}

	schemeStr, rest, hasScheme := splitScheme(raw)
	if !hasScheme {
		schemeStr = "file"
		rest = raw
	}

	if builtin, ok := Builtin(schemeStr); ok {
		u, err := url.Parse(raw)
		if err != nil {
			return Location{}, apperr.RequestValidation("invalid location %q: %s", raw, err)
		}

		path := u.Path
		if !hasScheme || builtin == File {
			path = rest
			if u.Opaque != "" {
				path = u.Opaque
			}
		}

		return Location{
			Raw:       raw,
			Scheme:    builtin,
			Authority: u.Host,
			Path:      path,
			Query:     u.Query(),
		}, nil
	}

	if hasPlugin != nil && hasPlugin(schemeStr) {
		u, err := url.Parse(raw)
		if err != nil {
			return Location{}, apperr.RequestValidation("invalid location %q: %s", raw, err)
		}

		return Location{
			Raw:       raw,
			IsPlugin:  true,
			PluginTag: schemeStr,
			Authority: u.Host,
			Path:      u.Path,
			Query:     u.Query(),
		}, nil
	}

	return Location{}, apperr.UnsupportedFormat("unsupported scheme %q", schemeStr)
}

// splitScheme returns the lowercase scheme and the remainder of raw
// after "scheme://" (or "scheme:" when there is no "//"), and whether a
// scheme was present at all. It treats a single-letter prefix before
// ':' as a Windows drive letter, not a scheme, so "C:\data\x.csv"
// still defaults to file.
func splitScheme(raw string) (scheme string, rest string, ok bool) {
	sep := "://"
	idx := strings.Index(raw, sep)
	if idx < 0 {
		sep = ":"
		idx = strings.Index(raw, sep)
		if idx <= 1 {
			return "", raw, false
		}
	}

	return strings.ToLower(raw[:idx]), raw[idx+len(sep):], true
}
