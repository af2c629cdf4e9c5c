package stow

import (
	"context"
	"time"
)

// AccessBackend stores serialized components keyed by entity and
// component identity.
type AccessBackend interface {
	// WriteComponents persists every entry in one transaction,
	// preserving argument order. Storage for a component identity is
	// created on first write. Exactly one insert is attempted per
	// entry, guarded by a uniqueness constraint on entity within that
	// component's storage; if any insert collides, the whole
	// transaction aborts with an AccessConflictError and none of the
	// entries are persisted.
	WriteComponents(ctx context.Context, entity Entity, components []SerializedComponent) error

	// ReadComponents resolves each descriptor to the matching stored
	// row, or nil if absent. Results preserve request order, and the
	// same descriptor may appear more than once, each occurrence
	// resolved independently. The entity pseudo-descriptor requires no
	// storage lookup and resolves to the entity's own identifier.
	ReadComponents(ctx context.Context, entity Entity, descriptors []ExtractionDescriptor) ([]*SerializedComponent, error)

	// RemoveComponents deletes each named row in one transaction.
	// If any named row is absent the transaction aborts with
	// ErrNotFound and nothing is deleted. Replacement of a stored
	// component is explicit remove followed by insert; there is no
	// upsert at this layer.
	RemoveComponents(ctx context.Context, entity Entity, descriptors []ExtractionDescriptor) error
}

// LockingBackend grants TTL-leased read/write locks keyed by entity
// and component identity.
type LockingBackend interface {
	// AcquireLock grants one lease per descriptor inside a single
	// transaction: either every lease is granted under a fresh lock
	// id, or none survive and a LockConflictError names the first
	// failing descriptor. A write request conflicts with any
	// unexpired lease on the same (entity, name, version); a read
	// request conflicts only with an unexpired write lease. Expired
	// lease rows are invisible to the conflict check but are never
	// deleted here.
	AcquireLock(ctx context.Context, entity Entity, descriptors []LockDescriptor, ttl time.Duration) (Lock, error)

	// ReleaseLock deletes every lease row carrying the lock's id.
	// Releasing a lock whose rows are already gone, expired or
	// otherwise, is not an error.
	ReleaseLock(ctx context.Context, lock Lock) error
}

// Backend is the uniform capability surface combining access and
// locking. A joint provider implements Backend directly, sharing one
// transactional resource between both capabilities; Disjoint composes
// two independently pluggable providers. Callers cannot tell the two
// shapes apart.
type Backend interface {
	AccessBackend
	LockingBackend
}

type disjoint struct {
	AccessBackend
	LockingBackend
}

// Disjoint composes an access provider and a locking provider into one
// Backend. Every call is routed to whichever delegate implements it.
func Disjoint(access AccessBackend, locking LockingBackend) Backend {
	return disjoint{AccessBackend: access, LockingBackend: locking}
}

// Snapshotter is the whole-store persistence contract: serialize the
// backend's entire internal state to bytes and reconstruct it from
// bytes. A collaborator such as the filestore package can wrap any
// Backend that also implements Snapshotter to persist its state to a
// single external blob on every mutation.
type Snapshotter interface {
	Save() ([]byte, error)
	Load(data []byte) error
}
