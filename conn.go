package ormkit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// LazyConnection holds at most one physical connection, opened on the
// first Cursor call. Work runs inside an implicit transaction that starts
// with the first cursor after a commit or rollback.
type LazyConnection struct {
	engine *Engine

	conn bun.Conn
	open bool

	tx   bun.Tx
	inTx bool
}

// NewLazyConnection returns an unopened connection bound to e
func NewLazyConnection(e *Engine) *LazyConnection {
	return &LazyConnection{engine: e}
}

// IsOpen reports whether a physical connection is held
func (c *LazyConnection) IsOpen() bool {
	return c.open
}

// Cursor returns a statement handle, connecting on first use
func (c *LazyConnection) Cursor(ctx context.Context) (*Cursor, error) {
	if !c.open {
		connect, err := c.engine.Connector()
		if err != nil {
			return nil, err
		}
		conn, err := connect(ctx)
		if err != nil {
			return nil, err
		}
		c.conn = conn
		c.open = true
		c.engine.Logger().InfoContext(ctx, "open connection")
		c.engine.notify(func(h LifecycleHook) { h.ConnectionOpened(ctx) })
	}

	if !c.inTx {
		tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{Isolation: c.engine.Config().Isolation})
		if err != nil {
			return nil, wrapError(err, "Begin")
		}
		c.tx = tx
		c.inTx = true
	}

	return &Cursor{tx: c.tx}, nil
}

// Commit commits pending work. It fails if no cursor was ever requested.
func (c *LazyConnection) Commit(ctx context.Context) error {
	if !c.open {
		return newError(CodeConnectionNotOpen, "Commit", "connection is not open")
	}
	if !c.inTx {
		return nil
	}
	// database/sql ends the transaction even when Commit fails
	err := c.tx.Commit()
	c.tx = bun.Tx{}
	c.inTx = false
	if err != nil {
		return phaseError(err, "Commit", CodeCommit)
	}
	c.engine.notify(func(h LifecycleHook) { h.Committed(ctx) })
	return nil
}

// Rollback discards pending work. It fails if no cursor was ever requested.
func (c *LazyConnection) Rollback(ctx context.Context) error {
	if !c.open {
		return newError(CodeConnectionNotOpen, "Rollback", "connection is not open")
	}
	if !c.inTx {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = bun.Tx{}
	c.inTx = false
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return phaseError(err, "Rollback", CodeRollback)
	}
	c.engine.notify(func(h LifecycleHook) { h.RolledBack(ctx) })
	return nil
}

// Cleanup closes the physical connection, discarding pending work.
// Calling it on an unopened connection is a no-op.
func (c *LazyConnection) Cleanup(ctx context.Context) error {
	if !c.open {
		return nil
	}

	var rbErr error
	if c.inTx {
		rbErr = c.Rollback(ctx)
	}

	conn := c.conn
	c.conn = bun.Conn{}
	c.open = false

	c.engine.Logger().InfoContext(ctx, "close connection")
	c.engine.notify(func(h LifecycleHook) { h.ConnectionClosed(ctx) })

	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return errors.Join(rbErr, wrapError(err, "Cleanup"))
	}
	return rbErr
}

// Cursor executes statements on the connection's current transaction.
// Result sets opened through Query are closed with the cursor.
type Cursor struct {
	tx     bun.Tx
	rows   []*sql.Rows
	closed bool
}

// Exec runs a statement and returns the number of affected rows
func (c *Cursor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if c.closed {
		return 0, newError(CodeNoActiveConnection, "Exec", "cursor is closed")
	}
	res, err := c.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapStatementError(err, "Exec", query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStatementError(err, "Exec", query)
	}
	return n, nil
}

// Query runs a statement that returns rows
func (c *Cursor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.closed {
		return nil, newError(CodeNoActiveConnection, "Query", "cursor is closed")
	}
	rows, err := c.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStatementError(err, "Query", query)
	}
	c.rows = append(c.rows, rows)
	return rows, nil
}

// Close releases every result set opened by the cursor
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, rows := range c.rows {
		if err := rows.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.rows = nil
	return errors.Join(errs...)
}
