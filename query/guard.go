package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/stow"
)

// Guard carries the decoded values of one Get together with the lock
// protecting them. Positions follow the query's shape. A guard is not
// safe for concurrent use.
//
// Release the guard when done: Unlock to observe the release error,
// Close when a deferred best-effort release is enough. An abandoned
// guard's leases lapse on their own once the TTL passes.
type Guard struct {
	entity   stow.Entity
	lock     stow.Lock
	locker   stow.LockingBackend
	shape    []Selector
	values   []any
	logger   *slog.Logger
	released bool
}

// Entity returns the entity the guard was resolved against.
func (g *Guard) Entity() stow.Entity { return g.entity }

// Lock returns the lock protecting the guard's values.
func (g *Guard) Lock() stow.Lock { return g.lock }

// Len returns the number of positions in the guard.
func (g *Guard) Len() int { return len(g.values) }

// Unlock releases the guard's lock. Calling it again is a no-op; the
// values stay readable, but nothing protects them anymore.
func (g *Guard) Unlock(ctx context.Context) error {
	if g.released {
		return nil
	}
	if err := g.locker.ReleaseLock(ctx, g.lock); err != nil {
		return fmt.Errorf("unlock guard: %w", err)
	}
	g.released = true
	return nil
}

// Close releases the guard's lock, logging a failed release instead of
// returning it. Meant for defer.
func (g *Guard) Close() {
	if err := g.Unlock(context.Background()); err != nil {
		g.logger.Error("guard release failed", "entity", g.entity, "lock", g.lock, "error", err)
	}
}

// Get returns a copy of the value at position i. The type parameter
// must match the selector at that position.
func Get[T any](g *Guard, i int) (T, error) {
	p, err := valueAt[T](g, i)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Mut returns a pointer to the value at position i for in-place
// mutation. Only positions selected with Write allow it; the write
// lease is what makes the mutation safe to act on.
func Mut[T any](g *Guard, i int) (*T, error) {
	if i >= 0 && i < len(g.shape) {
		s := g.shape[i]
		if s.entity || s.mode != stow.LockWrite {
			return nil, fmt.Errorf("guard position %d is not writable", i)
		}
	}
	return valueAt[T](g, i)
}

func valueAt[T any](g *Guard, i int) (*T, error) {
	if i < 0 || i >= len(g.values) {
		return nil, fmt.Errorf("guard position %d out of range [0, %d)", i, len(g.values))
	}
	p, ok := g.values[i].(*T)
	if !ok {
		return nil, fmt.Errorf("guard position %d holds %T, not %T", i, g.values[i], (*T)(nil))
	}
	return p, nil
}
