package ormkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/bun"
)

// run executes fn with a cursor of the scope connection, opening one for the
// duration of the call when ctx carries none. Outside a transaction guard
// the work is committed after fn succeeds and rolled back after it fails.
func (e *Engine) run(ctx context.Context, fn func(ctx context.Context, cur *Cursor) error) (err error) {
	ctx, c := e.OpenConnection(ctx)
	defer c.Exit(&err)

	s := c.scope
	cur, err := s.Cursor(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, cur)
	if cerr := cur.Close(); err == nil && cerr != nil {
		err = wrapError(cerr, "Close")
	}

	if s.Depth() > 0 {
		return err
	}
	conn := s.Connection()
	if err != nil {
		if rbErr := conn.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	e.Logger().InfoContext(ctx, "auto commit")
	return conn.Commit(ctx)
}

// Select runs a query and returns every row
func (e *Engine) Select(ctx context.Context, query string, args ...any) ([]*Record, error) {
	var records []*Record
	err := e.run(ctx, func(ctx context.Context, cur *Cursor) error {
		rows, err := cur.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		records, err = scanRecords(rows, "Select", query, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SelectOne runs a query and returns its first row, or nil when there is none
func (e *Engine) SelectOne(ctx context.Context, query string, args ...any) (*Record, error) {
	var records []*Record
	err := e.run(ctx, func(ctx context.Context, cur *Cursor) error {
		rows, err := cur.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		records, err = scanRecords(rows, "SelectOne", query, 1)
		return err
	})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// SelectScalar runs a query that must return exactly one column and
// returns the value of the first row
func (e *Engine) SelectScalar(ctx context.Context, query string, args ...any) (any, error) {
	var records []*Record
	err := e.run(ctx, func(ctx context.Context, cur *Cursor) error {
		rows, err := cur.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		cols, err := rows.Columns()
		if err != nil {
			return wrapStatementError(err, "SelectScalar", query)
		}
		if len(cols) != 1 {
			return &Error{
				Code:    CodeMultipleColumns,
				Message: fmt.Sprintf("expected one column, got %d", len(cols)),
				Op:      "SelectScalar",
				Query:   truncateSQL(query, 200),
			}
		}
		records, err = scanRecords(rows, "SelectScalar", query, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &Error{Code: CodeNotFound, Message: "record not found", Op: "SelectScalar"}
	}
	return records[0].At(0), nil
}

// SelectInt runs SelectScalar and converts the value to an integer
func (e *Engine) SelectInt(ctx context.Context, query string, args ...any) (int64, error) {
	v, err := e.SelectScalar(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, &Error{Code: CodeUnknown, Message: err.Error(), Op: "SelectInt", Cause: err}
	}
	return n, nil
}

// Insert inserts rec into table, one column per record entry in record order
func (e *Engine) Insert(ctx context.Context, table string, rec *Record) (int64, error) {
	cols := rec.Columns()
	if len(cols) == 0 {
		return 0, newError(CodeStatement, "Insert", "record has no columns")
	}

	args := make([]any, 0, 1+2*len(cols))
	args = append(args, bun.Ident(table))
	for _, col := range cols {
		args = append(args, bun.Ident(col))
	}
	args = append(args, rec.Values()...)

	query := "INSERT INTO ? (" + placeholders(len(cols)) + ") VALUES (" + placeholders(len(cols)) + ")"
	return e.Update(ctx, query, args...)
}

// Update runs a statement and returns the number of affected rows.
// Outside a transaction guard the statement is committed immediately.
func (e *Engine) Update(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := e.run(ctx, func(ctx context.Context, cur *Cursor) error {
		var err error
		n, err = cur.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Exec is Update for statements that are not row updates, such as DDL
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return e.Update(ctx, query, args...)
}

// scanRecords drains rows into records. limit > 0 stops after that many rows.
func scanRecords(rows *sql.Rows, op, query string, limit int) ([]*Record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapStatementError(err, op, query)
	}
	if len(cols) == 0 {
		return nil, &Error{
			Code:    CodeStatement,
			Message: "statement returned no columns",
			Op:      op,
			Query:   truncateSQL(query, 200),
		}
	}

	var records []*Record
	for rows.Next() {
		values, err := sqlx.SliceScan(rows)
		if err != nil {
			return nil, wrapStatementError(err, op, query)
		}
		records = append(records, newRowRecord(cols, values))
		if limit > 0 && len(records) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStatementError(err, op, query)
	}
	return records, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case nil:
		return 0, fmt.Errorf("value is NULL")
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

// floatToInt64 converts whole numbers within the int64 range
func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not a whole number", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}
