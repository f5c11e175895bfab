package ormkit

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// QueryHandler answers queries sent to the counting driver
type QueryHandler func(query string) (cols []string, rows [][]driver.Value, err error)

// countingConnector is an in-memory driver that records connection and
// transaction traffic
type countingConnector struct {
	mu        sync.Mutex
	connects  int
	closes    int
	begins    int
	commits   int
	rollbacks int
	execs     []string

	query     QueryHandler
	execErr   func(query string) error
	commitErr error
}

func (c *countingConnector) Connect(context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return &countingConn{c: c}, nil
}

func (c *countingConnector) Driver() driver.Driver { return countingDriver{} }

// stats returns connects, closes, commits and rollbacks
func (c *countingConnector) stats() (connects, closes, commits, rollbacks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects, c.closes, c.commits, c.rollbacks
}

func (c *countingConnector) lastExec() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.execs) == 0 {
		return ""
	}
	return c.execs[len(c.execs)-1]
}

type countingDriver struct{}

func (countingDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("countingDriver.Open should not be called; use sql.OpenDB with connector")
}

type countingConn struct {
	c *countingConnector
}

func (cn *countingConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }

func (cn *countingConn) Close() error {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	cn.c.closes++
	return nil
}

func (cn *countingConn) Begin() (driver.Tx, error) {
	return cn.BeginTx(context.Background(), driver.TxOptions{})
}

func (cn *countingConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	cn.c.mu.Lock()
	defer cn.c.mu.Unlock()
	cn.c.begins++
	return &countingTx{c: cn.c}, nil
}

func (cn *countingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	cn.c.mu.Lock()
	cn.c.execs = append(cn.c.execs, query)
	execErr := cn.c.execErr
	cn.c.mu.Unlock()

	if execErr != nil {
		if err := execErr(query); err != nil {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func (cn *countingConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if cn.c.query == nil {
		return &countingRows{cols: []string{"1"}, data: [][]driver.Value{{int64(1)}}}, nil
	}
	cols, data, err := cn.c.query(query)
	if err != nil {
		return nil, err
	}
	return &countingRows{cols: cols, data: data}, nil
}

type countingTx struct {
	c *countingConnector
}

func (tx *countingTx) Commit() error {
	tx.c.mu.Lock()
	defer tx.c.mu.Unlock()
	tx.c.commits++
	return tx.c.commitErr
}

func (tx *countingTx) Rollback() error {
	tx.c.mu.Lock()
	defer tx.c.mu.Unlock()
	tx.c.rollbacks++
	return nil
}

type countingRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *countingRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *countingRows) Close() error      { return nil }
func (r *countingRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

// newCountingEngine returns an initialized engine backed by the counting driver
func newCountingEngine(t *testing.T) (*Engine, *countingConnector) {
	t.Helper()
	cc := &countingConnector{}
	e := NewEngine()
	cfg := Config{Driver: DriverSQLite}.WithConnector(cc)
	if err := e.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, cc
}
