// Package memstore provides a joint in-memory Backend with whole-state
// snapshot support. It mirrors the reference SQL backend's semantics,
// including single-writer-wins conflict detection and passive lease
// expiry, and is the usual state provider behind a filestore wrapper.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/ident"
)

// record is one stored component row. Mirroring the SQL layout, a
// component's storage is keyed by name with at most one row per
// entity; version travels with the row.
type record struct {
	Version  string `json:"version"`
	Contents []byte `json:"contents"`
}

type lease struct {
	LockID    string    `json:"lock_id"`
	Entity    string    `json:"entity"`
	Component string    `json:"component"`
	Version   string    `json:"version"`
	Mode      string    `json:"mode"`
	Expires   time.Time `json:"expires"`
}

func (l lease) expired(now time.Time) bool {
	return !l.Expires.After(now)
}

type state struct {
	// Components maps component name -> entity id -> stored row.
	Components map[string]map[string]record `json:"components"`
	Leases     []lease                      `json:"leases"`
}

// Store is a joint in-memory Backend.
type Store struct {
	mu    sync.RWMutex
	state state

	// now is swapped out by expiry tests.
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: state{Components: make(map[string]map[string]record)},
		now:   time.Now,
	}
}

func init() {
	stow.RegisterDriver("memory", func(stow.Config) (stow.Backend, error) {
		return New(), nil
	})
}

// WriteComponents persists every entry or none. A duplicate row for
// (entity, name), whether already stored or duplicated within the
// call itself, aborts the whole write with an AccessConflictError.
func (s *Store) WriteComponents(_ context.Context, entity stow.Entity, components []stow.SerializedComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check phase: nothing is applied until every entry is clear.
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if err := ident.Check(c.Name); err != nil {
			return fmt.Errorf("write components: %w", err)
		}
		if c.Version == nil {
			return fmt.Errorf("write components: component %s has no version", c.Name)
		}
		if _, exists := s.state.Components[c.Name][entity.String()]; exists || seen[c.Name] {
			return &stow.AccessConflictError{Entity: entity, Name: c.Name, Version: c.Version}
		}
		seen[c.Name] = true
	}

	for _, c := range components {
		rows := s.state.Components[c.Name]
		if rows == nil {
			rows = make(map[string]record)
			s.state.Components[c.Name] = rows
		}
		contents := make([]byte, len(c.Contents))
		copy(contents, c.Contents)
		rows[entity.String()] = record{Version: c.Version.String(), Contents: contents}
	}
	return nil
}

// ReadComponents resolves each descriptor in request order; absent
// rows come back nil. The entity pseudo-descriptor resolves to the
// entity's own identifier.
func (s *Store) ReadComponents(_ context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) ([]*stow.SerializedComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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

		row, ok := s.state.Components[d.Name][entity.String()]
		if !ok || row.Version != d.Version.String() {
			results = append(results, nil)
			continue
		}
		contents := make([]byte, len(row.Contents))
		copy(contents, row.Contents)
		results = append(results, &stow.SerializedComponent{
			Name:     d.Name,
			Version:  d.Version,
			Contents: contents,
		})
	}
	return results, nil
}

// RemoveComponents deletes every named row or none; a missing row
// aborts the call with ErrNotFound.
func (s *Store) RemoveComponents(_ context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
		row, ok := s.state.Components[d.Name][entity.String()]
		if !ok || row.Version != d.Version.String() {
			return fmt.Errorf("remove components: %s(%s) for entity %s: %w", d.Name, d.Version, entity, stow.ErrNotFound)
		}
	}

	for _, d := range descriptors {
		delete(s.state.Components[d.Name], entity.String())
	}
	return nil
}

// AcquireLock grants one lease per descriptor atomically, under the
// same compatibility rule as the SQL backends. Leases granted earlier
// in the same call count as held for later descriptors. Expired lease
// rows are skipped by the conflict check but never removed.
func (s *Store) AcquireLock(_ context.Context, entity stow.Entity, descriptors []stow.LockDescriptor, ttl time.Duration) (stow.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := stow.NewLock()
	now := s.now()

	granted := make([]lease, 0, len(descriptors))
	for _, d := range descriptors {
		if err := ident.Check(d.Name); err != nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: %w", err)
		}
		if d.Version == nil {
			return stow.Lock{}, fmt.Errorf("acquire lock: descriptor %s has no version", d.Name)
		}

		if s.conflicts(entity, d, granted, now) {
			return stow.Lock{}, &stow.LockConflictError{
				Entity:  entity,
				Name:    d.Name,
				Version: d.Version,
				Mode:    d.Mode,
			}
		}
		granted = append(granted, lease{
			LockID:    lock.ID(),
			Entity:    entity.String(),
			Component: d.Name,
			Version:   d.Version.String(),
			Mode:      d.Mode.String(),
			Expires:   now.Add(ttl),
		})
	}

	s.state.Leases = append(s.state.Leases, granted...)
	return lock, nil
}

func (s *Store) conflicts(entity stow.Entity, d stow.LockDescriptor, granted []lease, now time.Time) bool {
	check := func(l lease) bool {
		if l.expired(now) {
			return false
		}
		if l.Entity != entity.String() || l.Component != d.Name || l.Version != d.Version.String() {
			return false
		}
		// A write request conflicts with any live lease; a read
		// request only with a live write lease.
		return d.Mode == stow.LockWrite || l.Mode == stow.LockWrite.String()
	}

	for _, l := range s.state.Leases {
		if check(l) {
			return true
		}
	}
	for _, l := range granted {
		if check(l) {
			return true
		}
	}
	return false
}

// ReleaseLock drops every lease row carrying the lock's id; releasing
// an unknown or expired lock is not an error.
func (s *Store) ReleaseLock(_ context.Context, lock stow.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Leases[:0]
	for _, l := range s.state.Leases {
		if l.LockID != lock.ID() {
			kept = append(kept, l)
		}
	}
	s.state.Leases = kept
	return nil
}

// Save serializes the store's entire state, lease rows included.
func (s *Store) Save() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.state)
	if err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return data, nil
}

// Load replaces the store's state with a previously saved blob.
func (s *Store) Load(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if st.Components == nil {
		st.Components = make(map[string]map[string]record)
	}
	s.state = st
	return nil
}
