/*
Package store selects and wraps a CollectionStore backend.

PURPOSE:
  One place that knows every backend. The server and CLI call Open with
  the configured driver name; everything else sees generic.CollectionStore.

DRIVERS:
  file:     One JSON document per type under DataDir (default)
  sqlite:   One row per type in SQLitePath
  postgres: One jsonb row per type at PostgresDSN
  s3:       One object per type in S3.Bucket
  memory:   Process-local, for demos and tests

USAGE:
  st, closeFn, err := store.Open(ctx, store.Options{Driver: "file", DataDir: "./data"})
  defer closeFn()

SEE ALSO:
  - store/instrumented.go: Latency metrics around any backend
*/
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/warp/dashboard-engine/generic"
	memstore "github.com/warp/dashboard-engine/generic/store"
	"github.com/warp/dashboard-engine/store/file"
	"github.com/warp/dashboard-engine/store/postgres"
	"github.com/warp/dashboard-engine/store/s3"
	"github.com/warp/dashboard-engine/store/sqlite"
)

// Driver names a backend.
type Driver string

const (
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
	DriverMemory   Driver = "memory"
)

// Options configures Open. Only the fields of the chosen driver are read.
type Options struct {
	Driver      Driver
	DataDir     string
	SQLitePath  string
	PostgresDSN string
	S3          s3.Config
}

// Open builds the backend. The returned close function is never nil.
func Open(ctx context.Context, opts Options) (generic.CollectionStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Driver {
	case DriverFile, "":
		dir := opts.DataDir
		if dir == "" {
			dir = "./data"
		}
		st, err := file.New(dir)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil

	case DriverSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.DataDir, "dashboard.db")
		}
		st, err := sqlite.New(path)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil

	case DriverPostgres:
		st, err := postgres.New(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil

	case DriverS3:
		st, err := s3.New(ctx, opts.S3)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil

	case DriverMemory:
		return memstore.NewMemory(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
