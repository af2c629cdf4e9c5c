package stow

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrNotFound indicates a requested component row does not exist.
var ErrNotFound = errors.New("stow: not found")

// SerializationError wraps a Format failure. It is always local to a
// single Serialize or Deserialize call and is never retried.
type SerializationError struct {
	// Format is the codec's Name.
	Format string

	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failed (format=%s): %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// AccessConflictError reports an insert that collided with an existing
// row for (entity, component identity). The enclosing write call was
// rolled back in full; nothing from it persisted.
type AccessConflictError struct {
	Entity  Entity
	Name    string
	Version *semver.Version
}

func (e *AccessConflictError) Error() string {
	return fmt.Sprintf("conflicting write of %s(%s) for entity %s", e.Name, e.Version, e.Entity)
}

// LockConflictError reports a lease request that collided with an
// existing unexpired incompatible lease. The enclosing acquire call
// was rolled back in full; no lease from it survives.
type LockConflictError struct {
	Entity  Entity
	Name    string
	Version *semver.Version
	Mode    LockMode
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("conflicting lease on %s(%s) for entity %s while acquiring %s lock",
		e.Name, e.Version, e.Entity, e.Mode)
}

// IsAccessConflict reports whether err is an AccessConflictError.
// Uses errors.As to handle wrapped errors.
func IsAccessConflict(err error) bool {
	var ce *AccessConflictError
	return errors.As(err, &ce)
}

// IsLockConflict reports whether err is a LockConflictError.
// Uses errors.As to handle wrapped errors.
func IsLockConflict(err error) bool {
	var ce *LockConflictError
	return errors.As(err, &ce)
}

// IsSerialization reports whether err is a SerializationError.
// Uses errors.As to handle wrapped errors.
func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
