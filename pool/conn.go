package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
)

// Conn is a checked-out connection. It must be used by one goroutine at a
// time and returned with Release exactly once.
type Conn struct {
	raw      *sql.Conn
	pool     *Pool
	released atomic.Bool
	broken   atomic.Bool
}

func (c *Conn) check() error {
	if c.released.Load() {
		return ErrConnReleased
	}
	if c.pool.closed.Load() {
		return ErrPoolClosed
	}
	return nil
}

func (c *Conn) observe(err error) {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.broken.Store(true)
	}
}

// ExecContext runs a statement that returns no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	res, err := c.raw.ExecContext(ctx, query, args...)
	c.observe(err)
	return res, err //nolint:wrapcheck // thin wrapper
}

// QueryContext runs a statement that returns rows. The rows must be closed
// before the connection is released.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	rows, err := c.raw.QueryContext(ctx, query, args...)
	c.observe(err)
	return rows, err //nolint:wrapcheck // thin wrapper
}

// BeginTx starts a transaction on this connection.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	tx, err := c.raw.BeginTx(ctx, opts)
	c.observe(err)
	return tx, err //nolint:wrapcheck // thin wrapper
}

// PingContext verifies the connection is alive.
func (c *Conn) PingContext(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	err := c.raw.PingContext(ctx)
	c.observe(err)
	return err //nolint:wrapcheck // thin wrapper
}

// Release returns the connection to its pool. Releasing the same handle
// twice returns ErrDoubleRelease and leaves the pool untouched.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrDoubleRelease
	}
	c.pool.release(c)
	return nil
}
