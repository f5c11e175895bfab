package ormkit

import "context"

var defaultEngine = NewEngine()

// Default returns the process-wide engine used by the package-level functions
func Default() *Engine {
	return defaultEngine
}

// InitEngine initializes the default engine
func InitEngine(cfg Config) error {
	return defaultEngine.Init(cfg)
}

// CloseEngine clears the default engine connector
func CloseEngine() error {
	return defaultEngine.Close()
}

// OpenConnection enters a connection guard on the default engine
func OpenConnection(ctx context.Context) (context.Context, *ConnectionContext) {
	return defaultEngine.OpenConnection(ctx)
}

// Begin enters a transaction guard on the default engine
func Begin(ctx context.Context) (context.Context, *TransactionContext) {
	return defaultEngine.Begin(ctx)
}

// WithConnection runs fn with a shared connection of the default engine
func WithConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	return defaultEngine.WithConnection(ctx, fn)
}

// Transaction runs fn inside a transaction of the default engine
func Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return defaultEngine.Transaction(ctx, fn)
}

func Select(ctx context.Context, query string, args ...any) ([]*Record, error) {
	return defaultEngine.Select(ctx, query, args...)
}

func SelectOne(ctx context.Context, query string, args ...any) (*Record, error) {
	return defaultEngine.SelectOne(ctx, query, args...)
}

func SelectScalar(ctx context.Context, query string, args ...any) (any, error) {
	return defaultEngine.SelectScalar(ctx, query, args...)
}

func SelectInt(ctx context.Context, query string, args ...any) (int64, error) {
	return defaultEngine.SelectInt(ctx, query, args...)
}

func Insert(ctx context.Context, table string, rec *Record) (int64, error) {
	return defaultEngine.Insert(ctx, table, rec)
}

func Update(ctx context.Context, query string, args ...any) (int64, error) {
	return defaultEngine.Update(ctx, query, args...)
}

func Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return defaultEngine.Exec(ctx, query, args...)
}
