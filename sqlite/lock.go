package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/ident"
)

// Conditional lease inserts. The insert lands only if no unexpired
// incompatible lease exists on the same (entity, component, version)
// resource; zero affected rows signals a conflict. Expired rows fail
// the `expires > now` filter and are treated as nonexistent.
const (
	writeLeaseSQL = `
		INSERT INTO leases (lockid, entity, component, version, locktype, expires)
		SELECT ?, ?, ?, ?, 'write', ?
		WHERE NOT EXISTS (
			SELECT 1 FROM leases
			WHERE entity = ? AND component = ? AND version = ?
			  AND expires > ?
		)`

	readLeaseSQL = `
		INSERT INTO leases (lockid, entity, component, version, locktype, expires)
		SELECT ?, ?, ?, ?, 'read', ?
		WHERE NOT EXISTS (
			SELECT 1 FROM leases
			WHERE entity = ? AND component = ? AND version = ?
			  AND locktype = 'write'
			  AND expires > ?
		)`
)

// AcquireLock grants one lease per descriptor inside a single
// transaction; either every lease lands under a fresh lock id or none
// survive. A write request conflicts with any unexpired lease on the
// same (entity, name, version), a read request only with an unexpired
// write lease, and reads coexist freely. Expired rows are invisible to
// the check but stay in the table.
//
// Leases granted earlier in the same call are visible to later
// descriptors, so requesting write access to the same resource twice
// in one call conflicts with itself.
func (s *Store) AcquireLock(ctx context.Context, entity stow.Entity, descriptors []stow.LockDescriptor, ttl time.Duration) (stow.Lock, error) {
	lock := stow.NewLock()
	now := s.now()
	expires := now.Add(ttl).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stow.Lock{}, fmt.Errorf("acquire lock: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, d := range descriptors {
		if err := ident.Check(d.Name); err != nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: %w", err)
		}
		if d.Version == nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: descriptor %s has no version", d.Name)
		}

		stmt := readLeaseSQL
		if d.Mode == stow.LockWrite {
			stmt = writeLeaseSQL
		}

		s.logger.Debug("acquiring lease",
			"lock", lock, "entity", entity,
			"component", d.Name, "version", d.Version, "mode", d.Mode)

		res, err := tx.ExecContext(ctx, stmt,
			lock.ID(), entity.String(), d.Name, d.Version.String(), expires,
			entity.String(), d.Name, d.Version.String(), now.UnixMilli(),
		)
		if err != nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: insert lease for %s: %w", d.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: rows affected: %w", err)
		}
		if n != 1 {
			return stow.Lock{}, &stow.LockConflictError{
				Entity:  entity,
				Name:    d.Name,
				Version: d.Version,
				Mode:    d.Mode,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stow.Lock{}, fmt.Errorf("acquire lock: commit: %w", err)
	}

	s.logger.Debug("lock acquired", "lock", lock, "entity", entity, "leases", len(descriptors))
	return lock, nil
}

// ReleaseLock deletes every lease row carried by the lock. Releasing a
// lock whose rows are already gone, expired or previously released, is
// not an error.
func (s *Store) ReleaseLock(ctx context.Context, lock stow.Lock) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE lockid = ?`, lock.ID())
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lock: rows affected: %w", err)
	}

	s.logger.Debug("lock released", "lock", lock, "leases", n)
	return nil
}

// ReapExpiredLeases deletes lease rows whose expiry has passed and
// returns how many were removed. The conflict check already ignores
// expired rows, so reaping only bounds table growth; it can run on any
// schedule, or never.
func (s *Store) ReapExpiredLeases(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE expires <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("reap expired leases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reap expired leases: rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Info("reaped expired leases", "count", n)
	}
	return n, nil
}
