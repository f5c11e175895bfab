package ormkit

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicate          ErrorCode = "DUPLICATE"
	CodeForeignKey         ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation     ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation   ErrorCode = "NOT_NULL"
	CodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeSerialization      ErrorCode = "SERIALIZATION"
	CodeDeadlock           ErrorCode = "DEADLOCK"
	CodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"
	CodeNotInitialized     ErrorCode = "NOT_INITIALIZED"
	CodeConnectionNotOpen  ErrorCode = "CONNECTION_NOT_OPEN"
	CodeNoActiveConnection ErrorCode = "NO_ACTIVE_CONNECTION"
	CodeTransactionActive  ErrorCode = "TRANSACTION_ACTIVE"
	CodeMultipleColumns    ErrorCode = "MULTIPLE_COLUMNS"
	CodeStatement          ErrorCode = "STATEMENT"
	CodeCommit             ErrorCode = "COMMIT"
	CodeRollback           ErrorCode = "ROLLBACK"
	CodeUnknown            ErrorCode = "UNKNOWN"
)

// Sentinel errors for quick checks
var (
	ErrNotFound         = errors.New("ormkit: record not found")
	ErrDuplicate        = errors.New("ormkit: duplicate key violation")
	ErrForeignKey       = errors.New("ormkit: foreign key violation")
	ErrCheckViolation   = errors.New("ormkit: check constraint violation")
	ErrNotNullViolation = errors.New("ormkit: not null violation")
	ErrConnection       = errors.New("ormkit: connection failed")
	ErrTimeout          = errors.New("ormkit: operation timeout")
	ErrSerialization    = errors.New("ormkit: serialization failure")
	ErrDeadlock         = errors.New("ormkit: deadlock detected")

	ErrEngineAlreadyInitialized = errors.New("ormkit: engine is already initialized")
	ErrConnectorNotInitialized  = errors.New("ormkit: connector is not initialized")
	ErrConnectionNotOpen        = errors.New("ormkit: connection is not open")
	ErrNoActiveConnection       = errors.New("ormkit: no active connection in scope")
	ErrTransactionActive        = errors.New("ormkit: transaction still active in scope")
	ErrMultipleColumns          = errors.New("ormkit: expected exactly one column")
	ErrStatement                = errors.New("ormkit: statement execution failed")
	ErrCommit                   = errors.New("ormkit: commit failed")
	ErrRollback                 = errors.New("ormkit: rollback failed")
)

// Error is a rich database error with context
type Error struct {
	Code       ErrorCode // Error classification
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "Select", "Insert", "Commit")
	Table      string    // Table name if known
	Column     string    // Column name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from the backend
	Hint       string    // Hint from the backend
	Query      string    // Statement that failed; set for every statement-level failure
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ormkit: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("ormkit.%s: %s", e.Op, e.Message)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching.
// Any error raised by the backend while executing a statement also matches ErrStatement,
// and any failure to end a transaction matches ErrCommit or ErrRollback.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrStatement:
		return e.Code == CodeStatement || e.Query != ""
	case ErrCommit:
		return e.Code == CodeCommit || e.Op == "Commit"
	case ErrRollback:
		return e.Code == CodeRollback || e.Op == "Rollback"
	}
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	case CodeAlreadyInitialized:
		return target == ErrEngineAlreadyInitialized
	case CodeNotInitialized:
		return target == ErrConnectorNotInitialized
	case CodeConnectionNotOpen:
		return target == ErrConnectionNotOpen
	case CodeNoActiveConnection:
		return target == ErrNoActiveConnection
	case CodeTransactionActive:
		return target == ErrTransactionActive
	case CodeMultipleColumns:
		return target == ErrMultipleColumns
	}
	return false
}

// newError builds an error that did not originate in the backend.
func newError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// wrapError converts a raw error to a rich Error
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{
			Code:    CodeNotFound,
			Message: "record not found",
			Op:      op,
			Cause:   err,
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return wrapMySQLError(myErr, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgErr, op)
	}

	var pgdErr pgdriver.Error
	if errors.As(err, &pgdErr) {
		return wrapPgError(&pgconn.PgError{
			Code:           pgdErr.Field('C'),
			Message:        pgdErr.Field('M'),
			Detail:         pgdErr.Field('D'),
			Hint:           pgdErr.Field('H'),
			TableName:      pgdErr.Field('t'),
			ColumnName:     pgdErr.Field('c'),
			ConstraintName: pgdErr.Field('n'),
		}, op)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return wrapSQLiteError(liteErr, op)
	}

	// Generic wrapping
	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
}

// wrapStatementError wraps a backend failure raised while executing query.
func wrapStatementError(err error, op, query string) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	wrapped := wrapError(err, op).(*Error)
	if wrapped.Code == CodeUnknown {
		wrapped.Code = CodeStatement
	}
	wrapped.Query = truncateSQL(query, 200)
	return wrapped
}

// phaseError wraps a failure to end a transaction.
func phaseError(err error, op string, code ErrorCode) error {
	var dbErr *Error
	if !errors.As(wrapError(err, op), &dbErr) {
		return err
	}
	if dbErr.Code == CodeUnknown {
		dbErr.Code = code
	}
	return dbErr
}

// wrapPgError converts PostgreSQL errors to rich errors
func wrapPgError(pgErr *pgconn.PgError, op string) *Error {
	e := &Error{
		Op:         op,
		Table:      pgErr.TableName,
		Column:     pgErr.ColumnName,
		Constraint: pgErr.ConstraintName,
		Detail:     pgErr.Detail,
		Hint:       pgErr.Hint,
		Cause:      pgErr,
	}

	// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch pgErr.Code {
	case "23505": // unique_violation
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case "23502": // not_null_violation
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case "23514": // check_violation
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case "40001": // serialization_failure
		e.Code = CodeSerialization
		e.Message = "serialization failure, retry transaction"
	case "40P01": // deadlock_detected
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case "57014": // query_canceled (timeout)
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case "08000", "08003", "08006": // connection errors
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		e.Message = pgErr.Message
	}

	return e
}

// wrapMySQLError converts MySQL server errors to rich errors
func wrapMySQLError(myErr *mysql.MySQLError, op string) *Error {
	e := &Error{
		Op:    op,
		Cause: myErr,
	}

	// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
	switch myErr.Number {
	case 1062: // ER_DUP_ENTRY
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case 1048: // ER_BAD_NULL_ERROR
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case 1213: // ER_LOCK_DEADLOCK
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case 1205: // ER_LOCK_WAIT_TIMEOUT
		e.Code = CodeTimeout
		e.Message = "lock wait timeout exceeded"
	default:
		e.Code = CodeUnknown
		e.Message = myErr.Message
	}

	return e
}

// wrapSQLiteError converts SQLite result codes to rich errors
func wrapSQLiteError(liteErr *sqlite.Error, op string) *Error {
	e := &Error{
		Op:    op,
		Cause: liteErr,
	}

	// See: https://www.sqlite.org/rescode.html
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		e.Code = CodeTimeout
		e.Message = "database is locked"
	default:
		e.Code = CodeUnknown
		e.Message = liteErr.Error()
	}

	return e
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsStatement checks if the backend rejected a statement
func IsStatement(err error) bool {
	return errors.Is(err, ErrStatement)
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsRetryable checks if the error is retryable (serialization, deadlock)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeadlock)
}

// GetErrorCode extracts the error code if it's an ormkit error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}

// GetQuery extracts the failed statement if available
func GetQuery(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Query != "" {
		return dbErr.Query, true
	}
	return "", false
}
