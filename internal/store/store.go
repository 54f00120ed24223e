package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store persists members, tokens, keyword rules, prompt templates, and
// token-prompt mappings. SQLite is the default backing (embedded, zero
// configuration); Postgres and MySQL are supported for shared deployments.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// Options configures the backing database.
type Options struct {
	// Driver is one of "sqlite" (default), "postgres", "mysql".
	Driver string
	// DSN is the connection string. For sqlite an empty DSN with an empty
	// DataDir opens an in-memory database.
	DSN string
	// DataDir is the directory for the sqlite file when DSN is empty.
	DataDir string
}

// Open connects to the configured database and applies migrations.
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case "sqlite":
		dsn := opts.DSN
		if dsn == "" {
			if opts.DataDir == "" {
				dsn = ":memory:?_journal_mode=WAL"
			} else {
				if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
					return nil, fmt.Errorf("create data dir: %w", err)
				}
				dsn = filepath.Join(opts.DataDir, "promptgate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
			}
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
			if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
				err = fmt.Errorf("enable foreign keys: %w", err)
			}
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", opts.DSN)
	case "mysql":
		db, err = sqlx.Connect("mysql", opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	s := &Store{db: db, dialect: dialectFor(driver)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite store. Used by tests and the CLI.
func OpenMemory() (*Store, error) {
	return Open(Options{Driver: "sqlite"})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind translates ?-style placeholders into the driver's native form.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

// isUniqueViolation reports whether err is a unique-constraint failure. The
// three supported drivers each word it differently, so this match is textual,
// the same way the row-level CRUD paths classify constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
