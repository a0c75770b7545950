// Package mlog defines the structured-logging interface used throughout
// the server. The server never logs through the standard library's log
// package directly; every component that can fail independently takes a
// Logger so call sites can attach fields (session_id, table, format)
// without string interpolation.
package mlog

// Logger is the common interface for log implementations.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a child Logger that prepends the given
	// key/value pairs (alternating key, value, key, value, ...) to
	// every subsequent log entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// Noop is a Logger that discards everything. Useful as a default when
// a caller does not provide one (tests, library use outside the
// server binary).
type Noop struct{}

func (Noop) Info(...any)           {}
func (Noop) Infof(string, ...any)  {}
func (Noop) Warn(...any)           {}
func (Noop) Warnf(string, ...any)  {}
func (Noop) Error(...any)          {}
func (Noop) Errorf(string, ...any) {}
func (Noop) Debug(...any)          {}
func (Noop) Debugf(string, ...any) {}
func (Noop) Fatal(...any)          {}
func (Noop) Fatalf(string, ...any) {}
func (Noop) Sync() error           { return nil }

func (n Noop) WithFields(...any) Logger { return n }
