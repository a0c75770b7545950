package externaldb

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"testing"
)

// fakeScript is a canned result set (for Fetch) plus a capture buffer
// (for Insert), addressed by DSN so every test gets its own isolated
// script under one process-wide driver registration.
type fakeScript struct {
	cols []string
	rows [][]driver.Value

	mu       sync.Mutex
	inserted [][]driver.Value
}

var fakeScripts = struct {
	mu sync.Mutex
	m  map[string]*fakeScript
}{m: map[string]*fakeScript{}}

// registerFakeScript wires dsn to a fresh fakeScript for the duration
// of t, so sql.Open("externaldb-fake", dsn) resolves to real
// database/sql machinery (connection, query, exec, transaction)
// running against an in-memory fixture rather than a mock of
// TableProvider itself.
func registerFakeScript(t *testing.T, dsn string, cols []string, rows [][]driver.Value) *fakeScript {
	t.Helper()

	s := &fakeScript{cols: cols, rows: rows}

	fakeScripts.mu.Lock()
	fakeScripts.m[dsn] = s
	fakeScripts.mu.Unlock()

	t.Cleanup(func() {
		fakeScripts.mu.Lock()
		delete(fakeScripts.m, dsn)
		fakeScripts.mu.Unlock()
	})

	return s
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	fakeScripts.mu.Lock()
	s, ok := fakeScripts.m[name]
	fakeScripts.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no fake script registered for dsn %q", name)
	}

	return &fakeConn{script: s}, nil
}

func init() {
	sql.Register("externaldb-fake", fakeDriver{})
}

type fakeConn struct {
	script *fakeScript
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported by fake driver")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

// Query implements driver.Queryer so database/sql executes QueryContext
// directly against the connection without going through Prepare/Stmt.
func (c *fakeConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return &fakeRows{cols: c.script.cols, rows: c.script.rows}, nil
}

// Exec implements driver.Execer, recording every bound argument list
// so an Insert test can assert on what was sent.
func (c *fakeConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	c.script.mu.Lock()
	c.script.inserted = append(c.script.inserted, args)
	c.script.mu.Unlock()

	return driver.RowsAffected(1), nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}

	copy(dest, r.rows[r.idx])
	r.idx++

	return nil
}
