package ormkit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"

	"github.com/fernandezvara/ormkit/hooks"
)

// Connector produces a new physical connection from the engine configuration
type Connector func(ctx context.Context) (bun.Conn, error)

// LifecycleHook observes physical connections and transaction outcomes
type LifecycleHook interface {
	ConnectionOpened(ctx context.Context)
	ConnectionClosed(ctx context.Context)
	Committed(ctx context.Context)
	RolledBack(ctx context.Context)
}

// Engine owns the connector shared by every execution scope.
// It is initialized once; Init fails until Close has been called.
type Engine struct {
	mu        sync.RWMutex
	db        *bun.DB
	config    Config
	logger    *slog.Logger
	lifecycle []LifecycleHook
	counters  []LifecycleHook // added by Init, dropped by Close
}

// NewEngine returns an uninitialized engine
func NewEngine() *Engine {
	return &Engine{logger: slog.New(slog.DiscardHandler)}
}

// Init sets the engine connector from cfg
func (e *Engine) Init(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return newError(CodeAlreadyInitialized, "Init", "connector is already initialized")
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	sqlDB, dialect, err := openDB(cfg)
	if err != nil {
		return &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to build connector",
			Op:      "Init",
			Cause:   err,
		}
	}

	// Connections belong to one scope and are closed with it.
	sqlDB.SetMaxIdleConns(-1)

	bunDB := bun.NewDB(sqlDB, dialect)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var counters []LifecycleHook
	if cfg.Logger != nil && (cfg.LogQueries || cfg.LogSlowQueries > 0) {
		bunDB.AddQueryHook(hooks.NewLoggerHook(cfg.Logger, cfg.LogQueries, cfg.LogSlowQueries))
	}
	if cfg.MetricsRegistry != nil {
		hook, err := hooks.NewMetricsHook(cfg.MetricsRegistry)
		if err != nil {
			_ = bunDB.Close()
			return fmt.Errorf("ormkit: failed to create metrics hook: %w", err)
		}
		bunDB.AddQueryHook(hook)

		lifecycle, err := hooks.NewLifecycleMetrics(cfg.MetricsRegistry)
		if err != nil {
			_ = bunDB.Close()
			return fmt.Errorf("ormkit: failed to create lifecycle metrics: %w", err)
		}
		counters = append(counters, lifecycle)
	}
	if cfg.Tracer != nil {
		bunDB.AddQueryHook(hooks.NewTracingHook(cfg.Tracer, dbSystem(cfg.Driver)))
	}

	e.db = bunDB
	e.config = cfg
	e.logger = logger
	e.counters = counters

	logger.Info("init engine", slog.String("driver", cfg.Driver), slog.String("addr", cfg.Addr()))
	return nil
}

// openDB builds the sql.DB and bun dialect for the configured driver
func openDB(cfg Config) (*sql.DB, schema.Dialect, error) {
	connector := cfg.Connector
	if connector == nil {
		var err error
		connector, err = newConnector(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	var dialect schema.Dialect
	switch cfg.Driver {
	case DriverMySQL:
		dialect = mysqldialect.New()
	case DriverPostgres, DriverPgx:
		dialect = pgdialect.New()
	case DriverSQLite:
		dialect = sqlitedialect.New()
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	if connector == nil {
		// modernc.org/sqlite registers a driver but exposes no connector
		sqlDB, err := sql.Open("sqlite", cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		return sqlDB, dialect, nil
	}
	return sql.OpenDB(connector), dialect, nil
}

// newConnector builds a driver connector from the configuration fields.
// It returns a nil connector for drivers that are opened by name.
func newConnector(cfg Config) (driver.Connector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		myCfg, err := mysql.ParseDSN(cfg.DSN())
		if err != nil {
			return nil, err
		}
		return mysql.NewConnector(myCfg)

	case DriverPostgres:
		params := map[string]interface{}{
			"client_encoding": pgEncoding(cfg.Charset),
		}
		for k, v := range cfg.Options {
			if k == "sslmode" {
				continue
			}
			params[k] = v
		}
		sslmode := cfg.Options["sslmode"]
		return pgdriver.NewConnector(
			pgdriver.WithAddr(cfg.Addr()),
			pgdriver.WithUser(cfg.User),
			pgdriver.WithPassword(cfg.Password),
			pgdriver.WithDatabase(cfg.Database),
			pgdriver.WithConnParams(params),
			pgdriver.WithInsecure(sslmode == "" || sslmode == "disable"),
			pgdriver.WithDialTimeout(cfg.DialTimeout),
			pgdriver.WithReadTimeout(cfg.ReadTimeout),
			pgdriver.WithWriteTimeout(cfg.WriteTimeout),
		), nil

	case DriverPgx:
		pgxCfg, err := pgx.ParseConfig(cfg.DSN())
		if err != nil {
			return nil, err
		}
		return stdlib.GetConnector(*pgxCfg), nil

	case DriverSQLite:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// dbSystem returns the OpenTelemetry db.system value for a driver
func dbSystem(driverName string) string {
	switch driverName {
	case DriverPostgres, DriverPgx:
		return "postgresql"
	case DriverSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// Close clears the connector. Closing an uninitialized engine is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}
	db := e.db
	e.db = nil
	e.counters = nil
	e.logger.Info("close engine")
	if err := db.Close(); err != nil {
		return wrapError(err, "Close")
	}
	return nil
}

// Initialized reports whether the engine has a connector
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db != nil
}

// Connector returns the function that opens physical connections
func (e *Engine) Connector() (Connector, error) {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()

	if db == nil {
		return nil, newError(CodeNotInitialized, "Cursor", "connector is not initialized")
	}
	return func(ctx context.Context) (bun.Conn, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return bun.Conn{}, &Error{
				Code:    CodeConnectionFailed,
				Message: "failed to connect to database",
				Op:      "Cursor",
				Cause:   err,
			}
		}
		return conn, nil
	}, nil
}

// AddLifecycleHook registers h for connection and transaction events
func (e *Engine) AddLifecycleHook(h LifecycleHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lifecycle = append(e.lifecycle, h)
}

func (e *Engine) notify(fn func(LifecycleHook)) {
	e.mu.RLock()
	hs := append(e.counters[:len(e.counters):len(e.counters)], e.lifecycle...)
	e.mu.RUnlock()
	for _, h := range hs {
		fn(h)
	}
}

// Bun returns the underlying bun.DB, nil before Init
func (e *Engine) Bun() *bun.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

// Config returns the configuration the engine was initialized with
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// Logger returns the engine logger
func (e *Engine) Logger() *slog.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// Stats returns statistics of the underlying sql.DB
func (e *Engine) Stats() sql.DBStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return sql.DBStats{}
	}
	return e.db.Stats()
}
