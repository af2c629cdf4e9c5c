// Package postgres provides a joint Backend on PostgreSQL.
//
// The layout mirrors the SQLite reference store: one table per
// component name, created lazily on first write, plus a shared leases
// table for the locking capability. Unlike SQLite the pool is left at
// its defaults; Postgres handles concurrent writers itself.
package postgres

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/roach88/stow"
)

//go:embed schema.sql
var schemaSQL string

// Store is a joint Backend over a PostgreSQL database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// now is swapped out by expiry tests.
	now func() time.Time
}

// Config carries the driver options accepted by the registry.
type Config struct {
	Source string `yaml:"source"`
}

func init() {
	stow.RegisterDriver("postgres", func(cfg stow.Config) (stow.Backend, error) {
		var opts Config
		if err := cfg.DecodeOptions(&opts); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if opts.Source == "" {
			return nil, fmt.Errorf("postgres: no source configured")
		}
		return Open(opts.Source)
	})
}

// Open connects to the database named by the data source string and
// prepares the lease schema. Idempotent - safe to call on an existing
// database.
func Open(source string) (*Store, error) {
	db, err := sql.Open("postgres", source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, logger: slog.Default(), now: time.Now}, nil
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
