package stow

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity is an opaque, globally unique identifier for a row of
// associated component data. An entity is immutable once created and
// never reused; create one with NewEntity.
type Entity struct {
	id uuid.UUID
}

// NewEntity spawns a fresh entity identifier.
func NewEntity() Entity {
	return Entity{id: uuid.New()}
}

// ParseEntity parses the textual form produced by String.
func ParseEntity(s string) (Entity, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Entity{}, fmt.Errorf("parse entity: %w", err)
	}
	return Entity{id: id}, nil
}

// IsZero reports whether e is the zero Entity, which no spawn ever
// produces.
func (e Entity) IsZero() bool {
	return e.id == uuid.Nil
}

func (e Entity) String() string {
	return e.id.String()
}

// MarshalText implements encoding.TextMarshaler so entities can key
// maps in snapshot blobs.
func (e Entity) MarshalText() ([]byte, error) {
	return []byte(e.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Entity) UnmarshalText(text []byte) error {
	id, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("parse entity: %w", err)
	}
	e.id = id
	return nil
}
