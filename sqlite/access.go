package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/ident"
)

// componentTable maps a validated component name to its table name.
// The prefix keeps component tables clear of the leases table and
// anything SQLite reserves.
func componentTable(name string) string {
	return "c_" + name
}

// WriteComponents persists every entry in one transaction, creating
// storage for each component identity on first write. One insert is
// attempted per entry; the UNIQUE constraint on entity makes a
// duplicate insert fail, which rolls the whole call back with an
// AccessConflictError. Entries that inserted cleanly earlier in the
// same call are rolled back too.
func (s *Store) WriteComponents(ctx context.Context, entity stow.Entity, components []stow.SerializedComponent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write components: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, c := range components {
		if err := ident.Check(c.Name); err != nil {
			return fmt.Errorf("write components: %w", err)
		}
		if c.Version == nil {
			return fmt.Errorf("write components: component %s has no version", c.Name)
		}

		table := componentTable(c.Name)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %q (
				entity   TEXT NOT NULL UNIQUE,
				version  TEXT NOT NULL,
				contents BLOB NOT NULL
			)
		`, table)); err != nil {
			return fmt.Errorf("write components: create storage for %s: %w", c.Name, err)
		}

		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %q (entity, version, contents) VALUES (?, ?, ?)`, table),
			entity.String(), c.Version.String(), c.Contents,
		)
		if isUniqueViolation(err) {
			return &stow.AccessConflictError{Entity: entity, Name: c.Name, Version: c.Version}
		}
		if err != nil {
			return fmt.Errorf("write components: insert %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write components: commit: %w", err)
	}
	return nil
}

// ReadComponents resolves each descriptor against the store. Results
// preserve request order; absent rows, including reads of component
// identities that were never written, come back as nil entries. The
// entity pseudo-descriptor is resolved to the entity's own identifier
// without touching storage; its Contents carry the id's textual form.
func (s *Store) ReadComponents(ctx context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) ([]*stow.SerializedComponent, error) {
	results := make([]*stow.SerializedComponent, 0, len(descriptors))

	for _, d := range descriptors {
		if d.Entity {
			results = append(results, &stow.SerializedComponent{Contents: []byte(entity.String())})
			continue
		}
		if err := ident.Check(d.Name); err != nil {
			return nil, fmt.Errorf("read components: %w", err)
		}
		if d.Version == nil {
			return nil, fmt.Errorf("read components: descriptor %s has no version", d.Name)
		}

		table := componentTable(d.Name)
		exists, err := tableExists(ctx, s.db, table)
		if err != nil {
			return nil, fmt.Errorf("read components: %w", err)
		}
		if !exists {
			results = append(results, nil)
			continue
		}

		var contents []byte
		err = s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT contents FROM %q WHERE entity = ? AND version = ?`, table),
			entity.String(), d.Version.String(),
		).Scan(&contents)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			results = append(results, nil)
		case err != nil:
			return nil, fmt.Errorf("read components: query %s: %w", d.Name, err)
		default:
			results = append(results, &stow.SerializedComponent{
				Name:     d.Name,
				Version:  d.Version,
				Contents: contents,
			})
		}
	}

	return results, nil
}

// RemoveComponents deletes each named row in one transaction. If any
// named row is absent the transaction rolls back with ErrNotFound,
// leaving the store unchanged. The entity pseudo-descriptor is not a
// stored resource and is rejected.
func (s *Store) RemoveComponents(ctx context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove components: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, d := range descriptors {
		if d.Entity {
			return fmt.Errorf("remove components: entity pseudo-component cannot be removed")
		}
		if err := ident.Check(d.Name); err != nil {
			return fmt.Errorf("remove components: %w", err)
		}
		if d.Version == nil {
			return fmt.Errorf("remove components: descriptor %s has no version", d.Name)
		}

		table := componentTable(d.Name)
		exists, err := tableExists(ctx, tx, table)
		if err != nil {
			return fmt.Errorf("remove components: %w", err)
		}
		if !exists {
			return fmt.Errorf("remove components: %s(%s) for entity %s: %w", d.Name, d.Version, entity, stow.ErrNotFound)
		}

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %q WHERE entity = ? AND version = ?`, table),
			entity.String(), d.Version.String(),
		)
		if err != nil {
			return fmt.Errorf("remove components: delete %s: %w", d.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove components: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("remove components: %s(%s) for entity %s: %w", d.Name, d.Version, entity, stow.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remove components: commit: %w", err)
	}
	return nil
}

// queryer abstracts over *sql.DB and *sql.Tx. The pool is capped at
// one connection, so lookups made while a transaction is open must go
// through that transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var name string
	err := q.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	default:
		return true, nil
	}
}

// isUniqueViolation determines if the given error is a unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
