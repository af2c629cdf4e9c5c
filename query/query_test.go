package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/comptest"
	"github.com/roach88/stow/jsonfmt"
	"github.com/roach88/stow/memstore"
)

func newQuery(t *testing.T, shape ...Selector) (*Query, stow.Entity) {
	t.Helper()
	backend := memstore.New()
	q := New(backend, jsonfmt.Format{}, shape...)
	entity := stow.NewEntity()

	err := q.Put(context.Background(), entity,
		comptest.Alpha{Content: "Hello"},
		comptest.Beta{Content: "World"},
		comptest.Gamma{Content: "!"},
	)
	require.NoError(t, err)
	return q, entity
}

func TestGet_ReadAndWritePositions(t *testing.T) {
	q, entity := newQuery(t, Read[comptest.Alpha](), Write[comptest.Beta]())
	ctx := context.Background()

	guard, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer guard.Close()

	require.Equal(t, entity, guard.Entity())
	require.Equal(t, 2, guard.Len())

	alpha, err := Get[comptest.Alpha](guard, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", alpha.Content)

	beta, err := Mut[comptest.Beta](guard, 1)
	require.NoError(t, err)
	require.Equal(t, "World", beta.Content)

	beta.Content = "Mutated"
	again, err := Get[comptest.Beta](guard, 1)
	require.NoError(t, err)
	require.Equal(t, "Mutated", again.Content)
}

func TestGet_MissingComponentTakesNoLease(t *testing.T) {
	backend := memstore.New()
	entity := stow.NewEntity()
	ctx := context.Background()

	q := New(backend, jsonfmt.Format{}, Write[comptest.Alpha]())
	_, err := q.Get(ctx, entity)
	require.ErrorIs(t, err, stow.ErrNotFound)

	// The failed Get must not have leased anything.
	lock, err := backend.AcquireLock(ctx, entity, []stow.LockDescriptor{{
		Name:    "Alpha",
		Version: comptest.Alpha{}.ComponentVersion(),
		Mode:    stow.LockWrite,
	}}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, backend.ReleaseLock(ctx, lock))
}

func TestGet_LockConflictSurfaces(t *testing.T) {
	q, entity := newQuery(t, Write[comptest.Alpha]())
	ctx := context.Background()

	first, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer first.Close()

	_, err = q.Get(ctx, entity)
	require.True(t, stow.IsLockConflict(err), "second Get() = %v, want LockConflictError", err)
}

func TestGet_UnlockAllowsRetry(t *testing.T) {
	q, entity := newQuery(t, Write[comptest.Alpha]())
	ctx := context.Background()

	guard, err := q.Get(ctx, entity)
	require.NoError(t, err)
	require.NoError(t, guard.Unlock(ctx))
	require.NoError(t, guard.Unlock(ctx)) // idempotent

	retry, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer retry.Close()
}

func TestGuard_CloseReleases(t *testing.T) {
	q, entity := newQuery(t, Write[comptest.Alpha]())
	ctx := context.Background()

	guard, err := q.Get(ctx, entity)
	require.NoError(t, err)
	guard.Close()

	retry, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer retry.Close()
}

func TestGet_PositionsFollowShapeOrder(t *testing.T) {
	q, entity := newQuery(t,
		Read[comptest.Alpha](),
		Read[comptest.Gamma](),
		Read[comptest.Beta](),
	)

	guard, err := q.Get(context.Background(), entity)
	require.NoError(t, err)
	defer guard.Close()

	alpha, err := Get[comptest.Alpha](guard, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", alpha.Content)

	gamma, err := Get[comptest.Gamma](guard, 1)
	require.NoError(t, err)
	require.Equal(t, "!", gamma.Content)

	beta, err := Get[comptest.Beta](guard, 2)
	require.NoError(t, err)
	require.Equal(t, "World", beta.Content)
}

func TestGet_DuplicatePositionsAreIndependent(t *testing.T) {
	q, entity := newQuery(t, Read[comptest.Alpha](), Read[comptest.Alpha]())

	guard, err := q.Get(context.Background(), entity)
	require.NoError(t, err)
	defer guard.Close()

	first, err := Get[comptest.Alpha](guard, 0)
	require.NoError(t, err)
	first.Content = "changed copy"

	// Neither the sibling position nor a re-read of the same position
	// sees the mutated copy.
	second, err := Get[comptest.Alpha](guard, 1)
	require.NoError(t, err)
	require.Equal(t, "Hello", second.Content)

	again, err := Get[comptest.Alpha](guard, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", again.Content)
}

func TestGet_EntityIDPosition(t *testing.T) {
	q, entity := newQuery(t, EntityID(), Read[comptest.Alpha]())

	guard, err := q.Get(context.Background(), entity)
	require.NoError(t, err)
	defer guard.Close()

	got, err := Get[stow.Entity](guard, 0)
	require.NoError(t, err)
	require.Equal(t, entity, got)

	// An identifier is never writable.
	_, err = Mut[stow.Entity](guard, 0)
	require.Error(t, err)
}

func TestMut_ReadPositionRejected(t *testing.T) {
	q, entity := newQuery(t, Read[comptest.Alpha]())

	guard, err := q.Get(context.Background(), entity)
	require.NoError(t, err)
	defer guard.Close()

	_, err = Mut[comptest.Alpha](guard, 0)
	require.Error(t, err)

	// The value is still readable.
	alpha, err := Get[comptest.Alpha](guard, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", alpha.Content)
}

func TestGuard_TypeAndRangeErrors(t *testing.T) {
	q, entity := newQuery(t, Read[comptest.Alpha]())

	guard, err := q.Get(context.Background(), entity)
	require.NoError(t, err)
	defer guard.Close()

	_, err = Get[comptest.Beta](guard, 0)
	require.Error(t, err)

	_, err = Get[comptest.Alpha](guard, 1)
	require.Error(t, err)

	_, err = Get[comptest.Alpha](guard, -1)
	require.Error(t, err)
}

func TestPut_DuplicateIdentityConflicts(t *testing.T) {
	q, entity := newQuery(t)

	err := q.Put(context.Background(), entity, comptest.Alpha{Content: "again"})
	require.True(t, stow.IsAccessConflict(err), "Put() = %v, want AccessConflictError", err)
}

func TestQuery_WithTTLGovernsLeaseExpiry(t *testing.T) {
	backend := memstore.New()
	entity := stow.NewEntity()
	ctx := context.Background()

	q := New(backend, jsonfmt.Format{}, Write[comptest.Alpha]()).WithTTL(time.Nanosecond)
	require.NoError(t, q.Put(ctx, entity, comptest.Alpha{Content: "x"}))

	guard, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer guard.Close()

	// The nanosecond lease lapses immediately, so a second guard
	// succeeds without an explicit release.
	time.Sleep(time.Millisecond)
	second, err := q.Get(ctx, entity)
	require.NoError(t, err)
	defer second.Close()
}
