// Package loader bulk inserts records read from JSON files.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fernandezvara/ormkit"
)

// Inserter inserts one record. *ormkit.Engine implements it.
type Inserter interface {
	Insert(ctx context.Context, table string, rec *ormkit.Record) (int64, error)
}

// LoadJSON inserts every object of the JSON array stored at path into table
func LoadJSON(ctx context.Context, ins Inserter, table, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(ctx, ins, table, f)
}

// Load inserts every object of the JSON array read from r into table.
// Objects are inserted one at a time in file order, with their keys as
// columns in file order. It returns the number of records inserted before
// the first failure.
func Load(ctx context.Context, ins Inserter, table string, r io.Reader) (int, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return 0, fmt.Errorf("loader: decode: %w", err)
	}

	n := 0
	for i, msg := range raw {
		rec := ormkit.NewRecord()
		if err := json.Unmarshal(msg, rec); err != nil {
			return n, fmt.Errorf("loader: record %d: %w", i, err)
		}
		if _, err := ins.Insert(ctx, table, rec); err != nil {
			return n, fmt.Errorf("loader: insert record %d: %w", i, err)
		}
		n++
	}
	return n, nil
}
