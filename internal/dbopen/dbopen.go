// Package dbopen opens the SQLite databases of the attempt journal.
//
// Pragmas go in the DSN rather than through Exec, so every pooled
// connection gets them and not only the first one.
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("var/traces.db", dbopen.WithMkdirAll())
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const memory = ":memory:"

type config struct {
	driver      string
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

func defaults() config {
	return config{
		driver:      "sqlite",
		busyTimeout: 10_000,
		synchronous: "NORMAL",
	}
}

// Option customises Open.
type Option func(*config)

// WithDriver sets the database/sql driver name. The driver must understand
// modernc-style _pragma DSN parameters. Default "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets the busy timeout in milliseconds. Default 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates the parent directories of path first.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// DSN builds the connection string for path with the configured pragmas.
func DSN(path string, opts ...Option) string {
	return build(path, apply(opts))
}

func apply(opts []Option) config {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func build(path string, cfg config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout))
	if path != memory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", "synchronous("+strings.ToUpper(cfg.synchronous)+")")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database at path and checks it answers. The caller
// blank-imports the driver.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := apply(opts)
	if cfg.mkdirAll && path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}
	db, err := sql.Open(cfg.driver, build(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	return db, nil
}

// OpenMemory opens an in-memory database closed at the end of the test.
// It is limited to one connection: each connection to ":memory:" is a
// database of its own.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
