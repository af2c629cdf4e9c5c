// Package filestore persists a snapshot-capable backend to a single file.
//
// It wraps any backend that can save and load its full state and flushes
// that state to disk after every mutation. Reads are delegated untouched.
// The file is written atomically via a rename so a crash mid-flush never
// leaves a truncated snapshot behind.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/stow"
	"github.com/roach88/stow/memstore"
)

// SnapshotBackend is the contract a wrapped backend must satisfy: full
// backend semantics plus whole-state snapshots.
type SnapshotBackend interface {
	stow.Backend
	stow.Snapshotter
}

// Store delegates all operations to an inner backend and writes the
// inner backend's snapshot to a file after each successful mutation.
type Store struct {
	mu    sync.Mutex
	inner SnapshotBackend
	path  string
}

// Wrap returns a Store persisting inner's state to path. If the file
// already exists its contents are loaded into inner before returning.
func Wrap(inner SnapshotBackend, path string) (*Store, error) {
	s := &Store{inner: inner, path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if err := inner.Load(data); err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return s, nil
}

// Open creates a file-backed in-memory store at path.
func Open(path string) (*Store, error) {
	return Wrap(memstore.New(), path)
}

func init() {
	stow.RegisterDriver("file", func(cfg stow.Config) (stow.Backend, error) {
		var opts struct {
			Path string `yaml:"path"`
		}
		if err := cfg.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("file driver: missing path option")
		}
		return Open(opts.Path)
	})
}

// flush snapshots the inner backend and replaces the file on disk.
// Callers must hold s.mu.
func (s *Store) flush() error {
	data, err := s.inner.Save()
	if err != nil {
		return fmt.Errorf("snapshotting state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".stow-*")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) WriteComponents(ctx context.Context, entity stow.Entity, components []stow.SerializedComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.WriteComponents(ctx, entity, components); err != nil {
		return err
	}
	return s.flush()
}

func (s *Store) ReadComponents(ctx context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) ([]*stow.SerializedComponent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ReadComponents(ctx, entity, descriptors)
}

func (s *Store) RemoveComponents(ctx context.Context, entity stow.Entity, descriptors []stow.ExtractionDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.RemoveComponents(ctx, entity, descriptors); err != nil {
		return err
	}
	return s.flush()
}

func (s *Store) AcquireLock(ctx context.Context, entity stow.Entity, descriptors []stow.LockDescriptor, ttl time.Duration) (stow.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := s.inner.AcquireLock(ctx, entity, descriptors, ttl)
	if err != nil {
		return stow.Lock{}, err
	}
	if err := s.flush(); err != nil {
		return stow.Lock{}, err
	}
	return lock, nil
}

func (s *Store) ReleaseLock(ctx context.Context, lock stow.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.ReleaseLock(ctx, lock); err != nil {
		return err
	}
	return s.flush()
}
