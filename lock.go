package stow

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// LockMode selects the compatibility class of a requested lease.
type LockMode int

const (
	// LockRead coexists with other read leases on the same resource
	// and conflicts only with an unexpired write lease.
	LockRead LockMode = iota

	// LockWrite conflicts with any unexpired lease on the same
	// resource, read or write.
	LockWrite
)

func (m LockMode) String() string {
	switch m {
	case LockRead:
		return "read"
	case LockWrite:
		return "write"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}

// LockDescriptor is a requested lease shape over one (name, version)
// resource, independent of whether the underlying resource currently
// exists. Version is part of the resource key: two versions of an
// identically-named component lock independently of one another.
type LockDescriptor struct {
	Name    string
	Version *semver.Version
	Mode    LockMode
}

// Lock names a set of leases granted atomically by AcquireLock. A
// lock's validity is determined solely by whether any of its lease
// rows have not yet expired; there is no explicit valid flag.
type Lock struct {
	id uuid.UUID
}

// NewLock mints a fresh lock identifier. Backends call this at the
// start of acquisition; callers normally never need to.
func NewLock() Lock {
	return Lock{id: uuid.New()}
}

// ParseLock parses the textual form produced by ID.
func ParseLock(s string) (Lock, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Lock{}, fmt.Errorf("parse lock: %w", err)
	}
	return Lock{id: id}, nil
}

// ID returns the lock's identifier as stored in lease rows.
func (l Lock) ID() string {
	return l.id.String()
}

// IsZero reports whether l is the zero Lock.
func (l Lock) IsZero() bool {
	return l.id == uuid.Nil
}

func (l Lock) String() string {
	return l.id.String()
}
