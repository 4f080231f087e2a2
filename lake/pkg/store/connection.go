package store

import (
	"context"
	"database/sql"
)

// Connection is a single database session. Statements passed to it use ? placeholders; they are
// rebound for the underlying driver. Statements without arguments are sent as written.
type Connection interface {
	Driver() Driver
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error)
	Close() error
}

type storeConnection struct {
	conn   *sql.Conn
	driver Driver
}

func (c *storeConnection) Driver() Driver {
	return c.driver
}

func (c *storeConnection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, rebindArgs(c.driver, query, args), args...)
}

func (c *storeConnection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, rebindArgs(c.driver, query, args), args...)
}

func (c *storeConnection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, rebindArgs(c.driver, query, args), args...)
}

func (c *storeConnection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: c.driver}, nil
}

func (c *storeConnection) Close() error {
	return c.conn.Close()
}

// Tx wraps sql.Tx with the same placeholder rebinding as Connection.
type Tx struct {
	tx     *sql.Tx
	driver Driver
}

func (t *Tx) Driver() Driver {
	return t.driver
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebindArgs(t.driver, query, args), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebindArgs(t.driver, query, args), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebindArgs(t.driver, query, args), args...)
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Queryer is satisfied by both Connection and *Tx.
type Queryer interface {
	Driver() Driver
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rebindArgs(driver Driver, query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	return Rebind(driver, query)
}
