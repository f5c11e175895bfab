package ormkit

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Supported drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres" // bun pgdriver
	DriverPgx      = "pgx"      // jackc/pgx stdlib
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

// Config holds database configuration
type Config struct {
	// Connection
	Driver   string `mapstructure:"driver" yaml:"driver"`     // Backend driver (default: mysql)
	User     string `mapstructure:"user" yaml:"user"`         // Database user
	Password string `mapstructure:"password" yaml:"password"` // Database password
	Database string `mapstructure:"database" yaml:"database"` // Database name, or file path for sqlite
	Host     string `mapstructure:"host" yaml:"host"`         // Server host (default: 127.0.0.1)
	Port     int    `mapstructure:"port" yaml:"port"`         // Server port (default: 3306, 5432 for postgres)

	// Session defaults
	Charset   string             `mapstructure:"charset" yaml:"charset"`     // Connection charset (default: utf8)
	Collation string             `mapstructure:"collation" yaml:"collation"` // Connection collation (default: utf8_general_ci)
	Isolation sql.IsolationLevel `mapstructure:"-" yaml:"-"`                 // Isolation of implicit transactions (default: driver default)

	// Options are passed to the driver verbatim and override defaults of the same name.
	Options map[string]string `mapstructure:",remain" yaml:"options"`

	// Connector replaces the connector built from the fields above.
	Connector driver.Connector `mapstructure:"-" yaml:"-"`

	// Timeouts
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`   // Connection dial timeout (default: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`   // Read timeout (default: 30s)
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"` // Write timeout (default: 30s)

	// Observability (all optional)
	Logger          *slog.Logger          `mapstructure:"-" yaml:"-"` // Structured logger
	LogQueries      bool                  `mapstructure:"log_queries" yaml:"log_queries"`
	LogSlowQueries  time.Duration         `mapstructure:"log_slow_queries" yaml:"log_slow_queries"`
	MetricsRegistry prometheus.Registerer `mapstructure:"-" yaml:"-"` // Prometheus registry for metrics
	Tracer          trace.Tracer          `mapstructure:"-" yaml:"-"` // OpenTelemetry tracer
}

// DefaultConfig returns sensible defaults for a MySQL database
func DefaultConfig(user, password, database string) Config {
	cfg := Config{
		User:     user,
		Password: password,
		Database: database,
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		switch c.Driver {
		case DriverPostgres, DriverPgx:
			c.Port = 5432
		default:
			c.Port = 3306
		}
	}
	if c.Charset == "" {
		c.Charset = "utf8"
	}
	if c.Collation == "" {
		c.Collation = "utf8_general_ci"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// validate reports configuration that can never produce a connection
func (c *Config) validate() error {
	if c.Connector != nil {
		return nil
	}
	switch c.Driver {
	case DriverMySQL, DriverPostgres, DriverPgx:
		if c.User == "" {
			return newError(CodeConnectionFailed, "Init", "database user is required")
		}
	case DriverSQLite:
		if c.Database == "" {
			return newError(CodeConnectionFailed, "Init", "sqlite database path is required")
		}
	default:
		return newError(CodeConnectionFailed, "Init", fmt.Sprintf("unsupported driver %q", c.Driver))
	}
	return nil
}

// Addr returns host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// sessionParams merges the session defaults with caller options.
// Options win over defaults.
func (c Config) sessionParams() map[string]string {
	params := map[string]string{
		"charset": c.Charset,
	}
	if c.Driver == DriverMySQL {
		params["autocommit"] = "0"
	}
	for k, v := range c.Options {
		params[k] = v
	}
	return params
}

// DSN renders the connection string understood by the configured driver
func (c Config) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		q := url.Values{}
		q.Set("collation", c.Collation)
		q.Set("timeout", c.DialTimeout.String())
		q.Set("readTimeout", c.ReadTimeout.String())
		q.Set("writeTimeout", c.WriteTimeout.String())
		for k, v := range c.sessionParams() {
			q.Set(k, v)
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s", c.User, c.Password, c.Addr(), c.Database, q.Encode())
	case DriverSQLite:
		q := url.Values{}
		for k, v := range c.Options {
			q.Set(k, v)
		}
		if len(q) == 0 {
			return "file:" + c.Database
		}
		return "file:" + c.Database + "?" + q.Encode()
	default:
		q := url.Values{}
		q.Set("connect_timeout", strconv.Itoa(int(c.DialTimeout.Seconds())))
		q.Set("client_encoding", pgEncoding(c.Charset))
		for k, v := range c.Options {
			q.Set(k, v)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Addr(),
			Path:     "/" + c.Database,
			RawQuery: q.Encode(),
		}
		return u.String()
	}
}

// pgEncoding maps MySQL-style charset names onto PostgreSQL encodings
func pgEncoding(charset string) string {
	switch charset {
	case "utf8", "utf8mb4", "utf8mb3":
		return "UTF8"
	}
	return charset
}

// WithLogger enables query logging
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Logger = logger
	c.LogQueries = true
	return c
}

// WithSlowQueryLog logs queries slower than the threshold
func (c Config) WithSlowQueryLog(threshold time.Duration) Config {
	c.LogSlowQueries = threshold
	return c
}

// WithMetrics enables Prometheus metrics
func (c Config) WithMetrics(registry prometheus.Registerer) Config {
	c.MetricsRegistry = registry
	return c
}

// WithTracing enables OpenTelemetry tracing
func (c Config) WithTracing(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}

// WithOption sets a driver option passed through verbatim
func (c Config) WithOption(key, value string) Config {
	opts := make(map[string]string, len(c.Options)+1)
	for k, v := range c.Options {
		opts[k] = v
	}
	opts[key] = value
	c.Options = opts
	return c
}

// WithConnector makes the engine open connections through connector
func (c Config) WithConnector(connector driver.Connector) Config {
	c.Connector = connector
	return c
}

// ConfigFromMap decodes a configuration mapping such as
//
//	{"user": "root", "password": "secret", "database": "test", "port": 3306, "sql_mode": "ANSI"}
//
// Keys that are not configuration fields are kept as driver options.
func ConfigFromMap(m map[string]any) (Config, error) {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		if k == "options" {
			if opts, ok := v.(map[string]any); ok {
				for key, val := range opts {
					flat[key] = val
				}
				continue
			}
		}
		flat[k] = v
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, fmt.Errorf("ormkit: config decoder: %w", err)
	}
	if err := decoder.Decode(flat); err != nil {
		return Config{}, fmt.Errorf("ormkit: decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfigFile reads a YAML file of named profiles and returns one of them.
//
//	testDB:
//	  user: root
//	  password: secret
//	  database: test
func LoadConfigFile(path, profile string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ormkit: read config: %w", err)
	}

	var profiles map[string]map[string]any
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return Config{}, fmt.Errorf("ormkit: parse config %s: %w", path, err)
	}

	m, ok := profiles[profile]
	if !ok {
		return Config{}, fmt.Errorf("ormkit: profile %q not found in %s", profile, path)
	}
	return ConfigFromMap(m)
}
