package ormkit

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"testing"
)

// getTestEngine returns an engine connected to the PostgreSQL server named by
// TEST_DATABASE_URL, with an empty test_users table
func getTestEngine(t *testing.T, driverName string) *Engine {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg, err := configFromURL(dbURL)
	if err != nil {
		t.Fatalf("invalid TEST_DATABASE_URL: %v", err)
	}
	cfg.Driver = driverName

	e := NewEngine()
	if err := e.Init(cfg.WithLogger(slog.Default())); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	ctx := context.Background()
	if _, err := e.Exec(ctx, "DROP TABLE IF EXISTS test_users"); err != nil {
		t.Fatalf("Failed to drop test table: %v", err)
	}
	_, err = e.Exec(ctx, `CREATE TABLE test_users (
		id INTEGER PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		passwd VARCHAR(255)
	)`)
	if err != nil {
		t.Fatalf("Failed to create test table: %v", err)
	}
	return e
}

func configFromURL(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		User:     u.User.Username(),
		Host:     u.Hostname(),
		Database: u.Path[1:],
		Options:  map[string]string{},
	}
	cfg.Password, _ = u.User.Password()
	if p := u.Port(); p != "" {
		if cfg.Port, err = strconv.Atoi(p); err != nil {
			return Config{}, err
		}
	}
	for k, v := range u.Query() {
		cfg.Options[k] = v[0]
	}
	return cfg, nil
}

func TestIntegration_NestedTransaction(t *testing.T) {
	for _, driverName := range []string{DriverPgx, DriverPostgres} {
		t.Run(driverName, func(t *testing.T) {
			e := getTestEngine(t, driverName)
			ctx := context.Background()

			err := e.Transaction(ctx, func(ctx context.Context) error {
				if _, err := e.Insert(ctx, "test_users", NewRecord("id", 123, "name", "Chao", "passwd", "pass")); err != nil {
					return err
				}
				return e.Transaction(ctx, func(ctx context.Context) error {
					_, err := e.Update(ctx, "UPDATE test_users SET passwd = ? WHERE id = ?", "new_pass", 123)
					return err
				})
			})
			if err != nil {
				t.Fatalf("Transaction failed: %v", err)
			}

			v, err := e.SelectScalar(ctx, "SELECT passwd FROM test_users WHERE id = ?", 123)
			if err != nil {
				t.Fatalf("SelectScalar failed: %v", err)
			}
			if v != "new_pass" {
				t.Errorf("expected new_pass, got %v", v)
			}
		})
	}
}

func TestIntegration_DuplicateRollsBack(t *testing.T) {
	for _, driverName := range []string{DriverPgx, DriverPostgres} {
		t.Run(driverName, func(t *testing.T) {
			e := getTestEngine(t, driverName)
			ctx := context.Background()

			err := e.Transaction(ctx, func(ctx context.Context) error {
				if _, err := e.Insert(ctx, "test_users", NewRecord("id", 1, "name", "Chao")); err != nil {
					return err
				}
				_, err := e.Insert(ctx, "test_users", NewRecord("id", 1, "name", "Ma"))
				return err
			})
			if !IsDuplicate(err) {
				t.Errorf("expected duplicate, got %v", err)
			}
			if c, ok := GetConstraint(err); !ok || c == "" {
				t.Error("expected the violated constraint on the error")
			}

			n, err := e.SelectInt(ctx, "SELECT count(*) FROM test_users")
			if err != nil {
				t.Fatalf("SelectInt failed: %v", err)
			}
			if n != 0 {
				t.Errorf("expected rollback, got %d rows", n)
			}
		})
	}
}

func TestIntegration_Health(t *testing.T) {
	e := getTestEngine(t, DriverPgx)

	status := e.Health(context.Background())
	if !status.Healthy {
		t.Fatalf("Database should be healthy: %s", status.Error)
	}
	if status.Latency <= 0 {
		t.Error("Latency should be positive")
	}

	if _, err := e.SelectScalar(context.Background(), "SELECT 1, 2"); !errors.Is(err, ErrMultipleColumns) {
		t.Errorf("expected ErrMultipleColumns, got %v", err)
	}
}
