// Package apperr defines the closed set of error kinds the server can
// raise, each carrying the HTTP status it maps to. Readers and the
// session manager return these directly; ToResponse at the HTTP edge
// finds one with errors.As, so it still renders the right status when
// a caller has wrapped it.
package apperr

import "fmt"

// Kind is the wire-visible error discriminator from spec §7.
type Kind string

const (
	KindSessionNotFound      Kind = "session_not_found"
	KindRequestValidation    Kind = "request_validation"
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindAlreadyExisting      Kind = "already_existing"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindJSONParsing          Kind = "json_parsing"
	KindRecordBatch          Kind = "record_batch_error"
	KindParquet              Kind = "parquet_error"
	KindHTTPRequest          Kind = "http_request"
	KindConnectionByPeer     Kind = "connection_by_peer"
	KindPluginInterpreter    Kind = "plugin_interpreter"
	KindDataFusion           Kind = "data_fusion_error"
)

// Error is the single error type the server constructs by hand; Kind
// selects the HTTP status (see ToResponse), EntityType/Message carry
// the human-readable detail, and Err optionally wraps the cause for
// errors.Is/As chains.
type Error struct {
	Kind       Kind
	EntityType string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, entityType, format string, args ...any) *Error {
	return &Error{Kind: kind, EntityType: entityType, Message: fmt.Sprintf(format, args...)}
}

// SessionNotFound builds the 400 session_not_found error for an
// unknown or expired session id.
func SessionNotFound(id string) *Error {
	return newf(KindSessionNotFound, "session", "session %q not found", id)
}

// RequestValidation builds the 400 request_validation error.
func RequestValidation(format string, args ...any) *Error {
	return newf(KindRequestValidation, "", format, args...)
}

// DuplicateDataSource is the specific request_validation error scenario
// 2 of spec §8 pins the exact message shape for.
func DuplicateDataSource(name string) *Error {
	return newf(KindRequestValidation, "data_source", "Duplicated data source '%s'", name)
}

// UnsupportedFormat builds the 400 unsupported_format/unsupported_type error.
func UnsupportedFormat(format string, args ...any) *Error {
	return newf(KindUnsupportedFormat, "", format, args...)
}

// AlreadyExisting builds the 400 already_existing error raised by
// save_to_file without overwrite.
func AlreadyExisting(format string, args ...any) *Error {
	return newf(KindAlreadyExisting, "", format, args...)
}

// PayloadTooLarge builds the 413 payload_too_large error.
func PayloadTooLarge(format string, args ...any) *Error {
	return newf(KindPayloadTooLarge, "", format, args...)
}

// JSONParsing builds the 400 json_parsing error.
func JSONParsing(err error) *Error {
	return &Error{Kind: KindJSONParsing, Message: err.Error(), Err: err}
}

// RecordBatch builds the 500 record_batch_creation/extraction error.
func RecordBatch(err error) *Error {
	return &Error{Kind: KindRecordBatch, Message: err.Error(), Err: err}
}

// Parquet builds the 500 parquet_(de)serialization error.
func Parquet(err error) *Error {
	return &Error{Kind: KindParquet, Message: err.Error(), Err: err}
}

// HTTPRequest builds the 417 http_request error for a failed remote fetch.
func HTTPRequest(err error) *Error {
	return &Error{Kind: KindHTTPRequest, Message: err.Error(), Err: err}
}

// ConnectionByPeer builds the 417 connection_by_peer error for a
// failed Flight/gRPC dial or stream.
func ConnectionByPeer(err error) *Error {
	return &Error{Kind: KindConnectionByPeer, Message: err.Error(), Err: err}
}

// PluginInterpreter builds the 500 plugin_interpreter error.
func PluginInterpreter(err error) *Error {
	return &Error{Kind: KindPluginInterpreter, Message: err.Error(), Err: err}
}

// DataFusion builds the 400 data_fusion_error for planner/executor failures.
func DataFusion(err error) *Error {
	return &Error{Kind: KindDataFusion, Message: err.Error(), Err: err}
}
