// Package stream is the Result Streamer (C9): content negotiation and
// the four response-writing modes spec.md §4.9 names, plus the
// bounded-channel backpressure between the engine's producer
// goroutine and the HTTP response writer (spec.md §5, capacity 32).
package stream

import "strings"

// Format is the closed set of response encodings C9 can write.
type Format int

const (
	ArrowStream Format = iota
	ArrowBuffered
	JSON
	CSV
)

// ResponseFormat is the explicit response.format request field, which
// takes precedence over the Accept header when present.
type ResponseFormat struct {
	Format string // "arrow", "json", "csv"
}

// ChannelCapacity is the bounded channel capacity between the
// producer goroutine and the response writer (spec.md §5).
const ChannelCapacity = 32

// Negotiate implements spec.md §4.9's precedence: an explicit
// response.format always wins over the Accept header. Arrow is
// returned as the chunked/streaming variant only when neither a
// post-processor nor an explicit non-Arrow format was requested;
// callers that know a post-processor ran should pass ArrowBuffered's
// counterpart logic themselves (Negotiate only resolves the format,
// not the buffered-vs-chunked choice).
func Negotiate(acceptHeader string, explicit *ResponseFormat) Format {
	if explicit != nil && explicit.Format != "" {
		return formatFromName(explicit.Format)
	}

	switch {
	case strings.Contains(acceptHeader, "application/vnd.apache.arrow.stream"):
		return ArrowStream
	case strings.Contains(acceptHeader, "text/csv"):
		return CSV
	case strings.Contains(acceptHeader, "application/json"):
		return JSON
	default:
		return ArrowStream
	}
}

func formatFromName(name string) Format {
	switch strings.ToLower(name) {
	case "json":
		return JSON
	case "csv":
		return CSV
	case "arrow":
		return ArrowStream
	default:
		return ArrowBuffered
	}
}
