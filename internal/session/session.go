// Package session models a query command bound to a live database connection
// and provides the scoped guards used while extracting its plan: the
// connection guard (open for the duration, close only what was opened) and
// the session-setting guard (apply, run, always restore).
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrConnClosed is returned when a statement is issued on a closed connection.
var ErrConnClosed = errors.New("connection is closed")

// Execer runs statements on a database session.
// *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is the live connection a Command is bound to. The host owns it; the
// engine only toggles its open state for the duration of one extraction.
type Conn interface {
	Execer
	IsOpen() bool
	Open(ctx context.Context) error
	Close() error
}

// Command is a parameterized SQL statement bound to a connection and,
// optionally, to a transaction on that connection.
type Command struct {
	Text string
	Args []any
	Conn Conn
	Tx   *sql.Tx
}

// Session returns the executor sibling statements must use so that they share
// the command's transaction and session.
func (c *Command) Session() Execer {
	if c.Tx != nil {
		return c.Tx
	}
	return c.Conn
}

// Query runs the command text with its arguments.
func (c *Command) Query(ctx context.Context) (*sql.Rows, error) {
	return c.Session().QueryContext(ctx, c.Text, c.Args...)
}

// SQLConn adapts a *sql.DB pool to Conn. Opening pins a single pooled
// connection so session-level settings reach the statements that follow;
// closing returns it to the pool.
type SQLConn struct {
	db   *sql.DB
	conn *sql.Conn
}

// NewSQLConn creates a closed connection over db.
func NewSQLConn(db *sql.DB) *SQLConn {
	return &SQLConn{db: db}
}

// IsOpen reports whether a pooled connection is currently pinned.
func (c *SQLConn) IsOpen() bool {
	return c.conn != nil
}

// Open pins a pooled connection. Opening an open connection is a no-op.
func (c *SQLConn) Open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Close releases the pinned connection. Closing a closed connection is a no-op.
func (c *SQLConn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// BeginTx starts a transaction on the pinned connection.
func (c *SQLConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c.conn == nil {
		return nil, ErrConnClosed
	}
	return c.conn.BeginTx(ctx, opts)
}

// ExecContext executes a statement on the pinned connection.
func (c *SQLConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.conn == nil {
		return nil, ErrConnClosed
	}
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the pinned connection.
func (c *SQLConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.conn == nil {
		return nil, ErrConnClosed
	}
	return c.conn.QueryContext(ctx, query, args...)
}

// WithOpenConnection runs fn with conn open. A connection that was closed on
// entry is closed again on every exit path, including a panic in fn; a
// connection that was already open is left open.
func WithOpenConnection(ctx context.Context, conn Conn, fn func() error) (err error) {
	if conn.IsOpen() {
		return fn()
	}

	if err := conn.Open(ctx); err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close connection: %w", closeErr)
		}
	}()

	return fn()
}

// Setting is a session-level toggle: Enable is issued before the guarded
// action and Restore after it.
type Setting struct {
	Enable  string
	Restore string
}

// WithSetting applies s on exec, runs fn and restores s. Restore runs exactly
// once whatever happens after the enable statement is attempted, including
// an enable failure, an fn error, a panic or a cancelled ctx.
func WithSetting(ctx context.Context, exec Execer, s Setting, fn func() error) (err error) {
	defer func() {
		if _, restoreErr := exec.ExecContext(context.WithoutCancel(ctx), s.Restore); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore session setting (%s): %w", s.Restore, restoreErr))
		}
	}()

	if _, err := exec.ExecContext(ctx, s.Enable); err != nil {
		return fmt.Errorf("failed to apply session setting (%s): %w", s.Enable, err)
	}

	return fn()
}
