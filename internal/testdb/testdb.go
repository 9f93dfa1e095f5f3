// Package testdb provides a recording database/sql driver for tests.
// Every statement reaching the driver is logged; result sets and failures are
// scripted by substring match on the statement text.
package testdb

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// ResultSet is one scripted result set.
type ResultSet struct {
	Columns []string
	Rows    [][]driver.Value
}

type rule struct {
	match string
	sets  []ResultSet
	err   error
}

// Recorder scripts and records the statements issued through its driver.
type Recorder struct {
	mu         sync.Mutex
	rules      []rule
	statements []string
	openConns  atomic.Int64
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{}
}

// On scripts the result sets returned for statements containing match.
// Rules are evaluated in registration order.
func (r *Recorder) On(match string, sets ...ResultSet) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{match: match, sets: sets})
	return r
}

// Fail makes statements containing match fail with err.
func (r *Recorder) Fail(match string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{match: match, err: err})
	return r
}

// Statements returns a copy of every statement issued so far, in order.
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statements...)
}

// Count returns how many recorded statements contain substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, s := range r.Statements() {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// OpenConns returns the number of driver connections currently open.
func (r *Recorder) OpenConns() int64 {
	return r.openConns.Load()
}

// Open registers a uniquely named driver backed by r and opens a pool on it.
// The pool is closed when the test ends.
func (r *Recorder) Open(t testing.TB) *sql.DB {
	t.Helper()

	name := fmt.Sprintf("testdb-%d", driverCounter.Add(1))
	sql.Register(name, &recordingDriver{rec: r})

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func (r *Recorder) record(query string) ([]ResultSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statements = append(r.statements, query)
	for _, ru := range r.rules {
		if strings.Contains(query, ru.match) {
			return ru.sets, ru.err
		}
	}
	return nil, nil
}

var driverCounter atomic.Uint64

type recordingDriver struct {
	rec *Recorder
}

func (d *recordingDriver) Open(_ string) (driver.Conn, error) {
	d.rec.openConns.Add(1)
	return &conn{rec: d.rec}, nil
}

type conn struct {
	rec    *Recorder
	closed bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{rec: c.rec, query: query}, nil
}

func (c *conn) Close() error {
	if !c.closed {
		c.closed = true
		c.rec.openConns.Add(-1)
	}
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return tx{}, nil
}

type tx struct{}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

type stmt struct {
	rec   *Recorder
	query string
}

func (s *stmt) Close() error { return nil }

// NumInput returns -1 so database/sql does not check argument counts.
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(_ []driver.Value) (driver.Result, error) {
	if _, err := s.rec.record(s.query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), nil
}

func (s *stmt) Query(_ []driver.Value) (driver.Rows, error) {
	sets, err := s.rec.record(s.query)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		sets = []ResultSet{{Columns: []string{"result"}}}
	}
	return &rows{sets: sets}, nil
}

// rows iterates scripted result sets; it implements driver.RowsNextResultSet.
type rows struct {
	sets []ResultSet
	set  int
	row  int
}

func (r *rows) Columns() []string {
	return r.sets[r.set].Columns
}

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	cur := r.sets[r.set]
	if r.row >= len(cur.Rows) {
		return io.EOF
	}
	copy(dest, cur.Rows[r.row])
	r.row++
	return nil
}

func (r *rows) HasNextResultSet() bool {
	return r.set+1 < len(r.sets)
}

func (r *rows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}
	r.set++
	r.row = 0
	return nil
}

// ErrScripted is a convenience error for scripted failures.
var ErrScripted = errors.New("scripted failure")
