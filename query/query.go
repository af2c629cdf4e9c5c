// Package query layers typed extraction over a backend.
//
// A Query binds a backend, a serialization format, and a shape - an
// ordered list of selectors naming the components a caller wants and
// whether it wants them mutably. Get resolves the shape against an
// entity, locks the selected resources, and hands back a Guard whose
// positions carry the decoded values.
//
// Get reads before it locks. A writer that lands between the read and
// the lease grant can leave the guard holding stale values; callers
// needing stronger guarantees should retry after Unlock. The lease
// itself still prevents two guards from mutating the same resource.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/stow"
)

// DefaultTTL bounds how long an abandoned guard's leases outlive it.
const DefaultTTL = time.Hour

// Query is a reusable typed view over a backend. It is immutable after
// construction and safe for concurrent use; each Get yields its own
// Guard.
type Query struct {
	backend stow.Backend
	format  stow.Format
	shape   []Selector
	ttl     time.Duration
	logger  *slog.Logger
}

// New builds a query over backend decoding payloads with format. The
// shape fixes the guard's positions: position i of every guard this
// query produces corresponds to shape[i].
func New(backend stow.Backend, format stow.Format, shape ...Selector) *Query {
	return &Query{
		backend: backend,
		format:  format,
		shape:   shape,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
	}
}

// WithTTL returns a copy of the query whose guards lease resources for
// the given duration.
func (q *Query) WithTTL(ttl time.Duration) *Query {
	copied := *q
	copied.ttl = ttl
	return &copied
}

// WithLogger returns a copy of the query using the given logger.
func (q *Query) WithLogger(logger *slog.Logger) *Query {
	copied := *q
	copied.logger = logger
	return &copied
}

// Get resolves the query's shape against entity: extract, decode, then
// lock. Every non-entity selector must resolve to a stored component;
// a missing one fails with ErrNotFound before any lease is taken. Read
// selectors take read leases and write selectors write leases, all
// granted atomically - on a lock conflict no leases are held and the
// decoded values are discarded.
func (q *Query) Get(ctx context.Context, entity stow.Entity) (*Guard, error) {
	descriptors := make([]stow.ExtractionDescriptor, len(q.shape))
	for i, s := range q.shape {
		descriptors[i] = s.descriptor()
	}

	serialized, err := q.backend.ReadComponents(ctx, entity, descriptors)
	if err != nil {
		return nil, fmt.Errorf("query get: %w", err)
	}

	values := make([]any, len(q.shape))
	for i, s := range q.shape {
		if serialized[i] == nil {
			return nil, fmt.Errorf("query get: %s(%s) for entity %s: %w",
				s.name, s.version, entity, stow.ErrNotFound)
		}
		v, err := s.decode(q.format, serialized[i].Contents)
		if err != nil {
			return nil, fmt.Errorf("query get: decode %s: %w", s.name, err)
		}
		values[i] = v
	}

	var leases []stow.LockDescriptor
	for _, s := range q.shape {
		if s.entity {
			continue
		}
		leases = append(leases, stow.LockDescriptor{Name: s.name, Version: s.version, Mode: s.mode})
	}

	lock, err := q.backend.AcquireLock(ctx, entity, leases, q.ttl)
	if err != nil {
		return nil, fmt.Errorf("query get: %w", err)
	}

	q.logger.Debug("guard issued", "entity", entity, "lock", lock, "positions", len(q.shape))
	return &Guard{
		entity: entity,
		lock:   lock,
		locker: q.backend,
		shape:  q.shape,
		values: values,
		logger: q.logger,
	}, nil
}

// Put serializes the given components with the query's format and
// writes them to the entity in one call. Ordering is preserved; the
// backend's single-writer-wins rule applies, so a component identity
// the entity already carries fails the whole call with an
// AccessConflictError.
func (q *Query) Put(ctx context.Context, entity stow.Entity, components ...stow.Component) error {
	serialized := make([]stow.SerializedComponent, len(components))
	for i, c := range components {
		contents, err := q.format.Serialize(c)
		if err != nil {
			return fmt.Errorf("query put: serialize %s: %w", c.ComponentName(), err)
		}
		serialized[i] = stow.SerializedComponent{
			Name:     c.ComponentName(),
			Version:  c.ComponentVersion(),
			Contents: contents,
		}
	}

	if err := q.backend.WriteComponents(ctx, entity, serialized); err != nil {
		return fmt.Errorf("query put: %w", err)
	}
	return nil
}
