// Package sqlite provides the reference Backend on SQLite.
//
// One table per component name holds serialized payloads, created
// lazily on first write; a shared leases table backs the locking
// capability. Both capabilities run over the same connection, making
// the store a joint provider.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/stow"
)

//go:embed schema.sql
var schemaSQL string

// Store is a joint Backend over a single SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// now is swapped out by expiry tests.
	now func() time.Time
}

// Config carries the driver options accepted by the registry.
type Config struct {
	Path string `yaml:"path"`
}

func init() {
	stow.RegisterDriver("sqlite", func(cfg stow.Config) (stow.Backend, error) {
		var opts Config
		if err := cfg.DecodeOptions(&opts); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite: no path configured")
		}
		return Open(opts.Path)
	})
}

// Open creates or opens a SQLite database at the given path and
// prepares the lease schema. ":memory:" gives a private in-memory
// store. Idempotent - safe to call on an existing database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// SQLite supports a single writer, so the pool is limited to one
// connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, logger: slog.Default(), now: time.Now}, nil
}

// InMemory opens a private in-memory store, mainly for tests.
func InMemory() (*Store, error) {
	return Open(":memory:")
}

// SetLogger replaces the store's logger. The default is slog.Default.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
