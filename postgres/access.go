package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/ident"
)

// componentTable maps a validated component name to its table name.
func componentTable(name string) string {
	return "c_" + name
}

// WriteComponents persists every entry in one transaction, creating
// storage for each component identity on first write. A duplicate
// insert trips the UNIQUE constraint on entity and rolls the whole
// call back with an AccessConflictError.
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
				entity   TEXT  NOT NULL UNIQUE,
				version  TEXT  NOT NULL,
				contents BYTEA NOT NULL
			)
		`, table)); err != nil {
			return fmt.Errorf("write components: create storage for %s: %w", c.Name, err)
		}

		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %q (entity, version, contents) VALUES ($1, $2, $3)`, table),
			entity.String(), c.Version.String(), c.Contents,
		)
		if isErrUniqueViolation(err) {
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
// preserve request order; absent rows come back as nil entries. The
// entity pseudo-descriptor resolves to the entity's own identifier
// without touching storage.
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
			fmt.Sprintf(`SELECT contents FROM %q WHERE entity = $1 AND version = $2`, table),
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
// leaving the store unchanged.
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
			fmt.Sprintf(`DELETE FROM %q WHERE entity = $1 AND version = $2`, table),
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

// queryer abstracts over *sql.DB and *sql.Tx for existence lookups
// that may run inside or outside a transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
		table,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	default:
		return true, nil
	}
}

// isErrUniqueViolation determines if the given error is a unique
// constraint violation (Postgres error code 23505).
func isErrUniqueViolation(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == "23505"
}
