// Package stow is a backend-agnostic storage engine for entity-component
// data. It provides durable, per-entity, per-typed-component storage and
// fine-grained, TTL-leased read/write locking over arbitrary sets of
// (entity, component) resources.
//
// The core contracts are AccessBackend (durable component storage with
// single-writer-wins conflict detection), LockingBackend (atomic
// multi-resource lease acquisition with passive expiry) and Format (a
// pluggable codec between typed values and byte payloads). Backend is
// the uniform surface combining both capabilities: a joint provider
// such as the sqlite package implements it directly over one
// transactional resource, while Disjoint composes two independent
// providers.
//
// The query package layers a typed selector shape on top of any
// Backend, fetching, deserializing and locking a declared tuple of
// components in one guarded operation.
//
// Everything is synchronous: there is no internal scheduler, no
// waiting for contended resources and no automatic retry. Every
// conflict comes back immediately as an error value.
package stow
