package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fernandezvara/ormkit"
	"github.com/fernandezvara/ormkit/loader"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: ormkit [flags] <command> [args]

commands:
  ping                    check that the database answers
  exec <sql> [args...]    run a statement and print the affected row count
  query <sql> [args...]   run a query and print the rows as JSON
  load <table> <file>     insert every object of a JSON array file
  version                 print the version

flags:
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ormkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "YAML file of connection profiles")
	profile := fs.String("profile", "default", "Profile to read from the config file")
	driverName := fs.String("driver", "", "Driver override: mysql, postgres, pgx or sqlite")
	database := fs.String("database", "", "Database override (file path for sqlite)")
	verbose := fs.Bool("v", false, "Log connection, transaction and statement events")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "ormkit %s\n", Version)
		return 0
	}

	cfg, err := loadConfig(*configFile, *profile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *driverName != "" {
		cfg.Driver = *driverName
	}
	if *database != "" {
		cfg.Database = *database
	}
	if *verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		cfg = cfg.WithLogger(logger)
	}

	engine := ormkit.NewEngine()
	if err := engine.Init(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := dispatch(ctx, engine, cmd, rest, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("wrong number of arguments")

func loadConfig(path, profile string) (ormkit.Config, error) {
	if path == "" {
		return ormkit.ConfigFromMap(map[string]any{})
	}
	return ormkit.LoadConfigFile(path, profile)
}

func dispatch(ctx context.Context, engine *ormkit.Engine, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "ping":
		status := engine.Health(ctx)
		if !status.Healthy {
			return errors.New(status.Error)
		}
		fmt.Fprintf(stdout, "ok (%s)\n", status.Latency.Round(time.Microsecond))
		return nil

	case "exec":
		if len(args) == 0 {
			return errUsage
		}
		n, err := engine.Exec(ctx, args[0], toArgs(args[1:])...)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d row(s) affected\n", n)
		return nil

	case "query":
		if len(args) == 0 {
			return errUsage
		}
		records, err := engine.Select(ctx, args[0], toArgs(args[1:])...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []*ormkit.Record{}
		}
		return enc.Encode(records)

	case "load":
		if len(args) != 2 {
			return errUsage
		}
		var n int
		err := engine.Transaction(ctx, func(ctx context.Context) error {
			var err error
			n, err = loader.LoadJSON(ctx, engine, args[0], args[1])
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d record(s) loaded\n", n)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func toArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
