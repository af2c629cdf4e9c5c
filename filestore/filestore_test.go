package filestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stow"
	"github.com/roach88/stow/internal/comptest"
	"github.com/roach88/stow/jsonfmt"
)

func TestWrap_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	entity := stow.NewEntity()
	f := jsonfmt.Format{}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	err = s.WriteComponents(ctx, entity, []stow.SerializedComponent{
		comptest.Serialize(t, f, comptest.Alpha{Content: "Hello"}),
	})
	if err != nil {
		t.Fatalf("WriteComponents() failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	results, err := reopened.ReadComponents(ctx, entity, []stow.ExtractionDescriptor{
		stow.Describe(comptest.Alpha{}),
	})
	if err != nil {
		t.Fatalf("ReadComponents() failed: %v", err)
	}
	if results[0] == nil {
		t.Fatal("component lost across reopen")
	}
	got := comptest.Alpha{}
	if err := f.Deserialize(results[0].Contents, &got); err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	if got.Content != "Hello" {
		t.Errorf("Content = %q, want %q", got.Content, "Hello")
	}
}

func TestWrap_LeasesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	entity := stow.NewEntity()
	desc := []stow.LockDescriptor{{
		Name:    "Alpha",
		Version: comptest.Alpha{}.ComponentVersion(),
		Mode:    stow.LockWrite,
	}}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	lock, err := s.AcquireLock(ctx, entity, desc, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	if _, err := reopened.AcquireLock(ctx, entity, desc, time.Minute); !stow.IsLockConflict(err) {
		t.Fatalf("AcquireLock() after reopen = %v, want LockConflictError", err)
	}

	// The lock id is valid across restarts too.
	if err := reopened.ReleaseLock(ctx, lock); err != nil {
		t.Fatalf("ReleaseLock() after reopen failed: %v", err)
	}
	if _, err := reopened.AcquireLock(ctx, entity, desc, time.Minute); err != nil {
		t.Errorf("AcquireLock() after release failed: %v", err)
	}
}

func TestWrap_FailedMutationDoesNotFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	entity := stow.NewEntity()
	f := jsonfmt.Format{}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// Duplicate identity in one batch aborts the write.
	err = s.WriteComponents(ctx, entity, []stow.SerializedComponent{
		comptest.Serialize(t, f, comptest.Alpha{Content: "a"}),
		comptest.Serialize(t, f, comptest.Alpha{Content: "b"}),
	})
	if !stow.IsAccessConflict(err) {
		t.Fatalf("WriteComponents() = %v, want AccessConflictError", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	results, err := reopened.ReadComponents(ctx, entity, []stow.ExtractionDescriptor{
		stow.Describe(comptest.Alpha{}),
	})
	if err != nil {
		t.Fatalf("ReadComponents() failed: %v", err)
	}
	if results[0] != nil {
		t.Errorf("aborted write reached disk: %+v", results[0])
	}
}

func TestDriverRegistration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backend, err := stow.Open(stow.Config{
		Driver:  "file",
		Options: map[string]any{"path": path},
	})
	if err != nil {
		t.Fatalf("stow.Open() failed: %v", err)
	}
	if _, ok := backend.(*Store); !ok {
		t.Errorf("stow.Open() returned %T, want *filestore.Store", backend)
	}
}

func TestDriverRegistration_MissingPath(t *testing.T) {
	if _, err := stow.Open(stow.Config{Driver: "file"}); err == nil {
		t.Fatal("stow.Open() without a path succeeded, want error")
	}
}
