// Package location parses data source URIs and resolves their
// serialization format, mirroring
// original_source/lib/src/data_source/location/uri.rs.
package location

// Scheme is a closed enum of the URI schemes the server recognizes
// natively. Anything else is either a plugin-registered scheme or
// rejected by ParseLocation with an unsupported_format error.
type Scheme int

const (
	File Scheme = iota
	HTTP
	HTTPS
	S3
	GS
	AZ
	ADL
	ABFS
	ABFSS
	WebDAV
	GRPC
	GRPCTLS
)

var schemeBySpelling = map[string]Scheme{
	"file":     File,
	"http":     HTTP,
	"https":    HTTPS,
	"s3":       S3,
	"gs":       GS,
	"az":       AZ,
	"adl":      ADL,
	"abfs":     ABFS,
	"abfss":    ABFSS,
	"webdav":   WebDAV,
	"grpc":     GRPC,
	"grpc+tls": GRPCTLS,
}

var spellingByScheme = func() map[Scheme]string {
	out := make(map[Scheme]string, len(schemeBySpelling))
	for s, v := range schemeBySpelling {
		out[v] = s
	}

	return out
}()

// String returns the scheme's canonical URI spelling.
func (s Scheme) String() string {
	return spellingByScheme[s]
}

// RemoteSource reports whether this scheme is fetched over HTTP or RPC
// rather than read from local disk or an object-store abstraction.
func (s Scheme) RemoteSource() bool {
	switch s {
	case HTTP, HTTPS, GRPC, GRPCTLS, WebDAV:
		return true
	default:
		return false
	}
}

// HandlesObjectStore reports whether this scheme is accessed through
// the Object-Store Registry (C4) rather than directly.
func (s Scheme) HandlesObjectStore() bool {
	switch s {
	case S3, GS, AZ, ADL, ABFS, ABFSS:
		return true
	default:
		return false
	}
}

// Builtin reports whether s is one of the schemes this package
// recognizes natively. Plugin-registered schemes are consulted only
// when Builtin is false for the raw scheme string — built-ins always
// take precedence over a same-named plugin registration (spec.md §9
// Open Question, resolved explicitly: plugins cannot shadow built-ins).
func Builtin(raw string) (Scheme, bool) {
	s, ok := schemeBySpelling[raw]
	return s, ok
}
