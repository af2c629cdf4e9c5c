package query

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/stow"
)

// Selector is one position in a query shape: which component identity
// to extract, whether the position wants mutation rights, and how to
// decode the stored payload into a typed value.
//
// Selectors are built with Read, Write, and EntityID; the zero value
// is not usable.
type Selector struct {
	entity  bool
	name    string
	version *semver.Version
	mode    stow.LockMode
	decode  func(stow.Format, []byte) (any, error)
}

// Read selects component T for shared access. The guard position
// yields a copy and acquires a read lease.
func Read[T stow.Component]() Selector {
	var zero T
	return Selector{
		name:    zero.ComponentName(),
		version: zero.ComponentVersion(),
		mode:    stow.LockRead,
		decode:  decodeInto[T],
	}
}

// Write selects component T for exclusive access. The guard position
// yields a mutable pointer and acquires a write lease.
func Write[T stow.Component]() Selector {
	var zero T
	return Selector{
		name:    zero.ComponentName(),
		version: zero.ComponentVersion(),
		mode:    stow.LockWrite,
		decode:  decodeInto[T],
	}
}

// EntityID selects the queried entity's own identifier. The position
// yields the stow.Entity and contributes no lease; an identifier is
// not a stored resource.
func EntityID() Selector {
	return Selector{
		entity: true,
		mode:   stow.LockRead,
		decode: func(_ stow.Format, contents []byte) (any, error) {
			e, err := stow.ParseEntity(string(contents))
			if err != nil {
				return nil, fmt.Errorf("decode entity id: %w", err)
			}
			return &e, nil
		},
	}
}

func decodeInto[T stow.Component](f stow.Format, contents []byte) (any, error) {
	v := new(T)
	if err := f.Deserialize(contents, v); err != nil {
		return nil, err
	}
	return v, nil
}

// descriptor maps the selector to its extraction form.
func (s Selector) descriptor() stow.ExtractionDescriptor {
	return stow.ExtractionDescriptor{Entity: s.entity, Name: s.name, Version: s.version}
}
