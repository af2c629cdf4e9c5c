package stow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeBackend satisfies Backend without doing anything; the driver
// tests care only about registry plumbing.
type fakeBackend struct{ path string }

func (f *fakeBackend) WriteComponents(context.Context, Entity, []SerializedComponent) error {
	return nil
}

func (f *fakeBackend) ReadComponents(context.Context, Entity, []ExtractionDescriptor) ([]*SerializedComponent, error) {
	return nil, nil
}

func (f *fakeBackend) RemoveComponents(context.Context, Entity, []ExtractionDescriptor) error {
	return nil
}

func (f *fakeBackend) AcquireLock(context.Context, Entity, []LockDescriptor, time.Duration) (Lock, error) {
	return NewLock(), nil
}

func (f *fakeBackend) ReleaseLock(context.Context, Lock) error {
	return nil
}

func TestOpen_DispatchesToRegisteredDriver(t *testing.T) {
	RegisterDriver("fake-open", func(cfg Config) (Backend, error) {
		var opts struct {
			Path string `yaml:"path"`
		}
		if err := cfg.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return &fakeBackend{path: opts.Path}, nil
	})

	backend, err := Open(Config{
		Driver:  "fake-open",
		Options: map[string]any{"path": "/tmp/stow.db"},
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	fb, ok := backend.(*fakeBackend)
	if !ok {
		t.Fatalf("Open() returned %T, want *fakeBackend", backend)
	}
	if fb.path != "/tmp/stow.db" {
		t.Errorf("decoded path = %q, want %q", fb.path, "/tmp/stow.db")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "no-such-driver"}); err == nil {
		t.Fatal("Open() with unknown driver succeeded")
	}
}

func TestRegisterDriver_Panics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		fn()
	}

	mustPanic("nil driver", func() {
		RegisterDriver("fake-nil", nil)
	})

	RegisterDriver("fake-dup", func(Config) (Backend, error) { return &fakeBackend{}, nil })
	mustPanic("duplicate driver", func() {
		RegisterDriver("fake-dup", func(Config) (Backend, error) { return &fakeBackend{}, nil })
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.yaml")
	doc := "driver: sqlite\noptions:\n  path: /var/lib/stow/stow.db\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Driver)
	}

	var opts struct {
		Path string `yaml:"path"`
	}
	if err := cfg.DecodeOptions(&opts); err != nil {
		t.Fatalf("DecodeOptions() failed: %v", err)
	}
	if opts.Path != "/var/lib/stow/stow.db" {
		t.Errorf("Path = %q, want /var/lib/stow/stow.db", opts.Path)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig() on a missing file succeeded")
	}
}
