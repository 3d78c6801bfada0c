package cas

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalBackend_putGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	size, err := backend.Put(ctx, "r1", strings.NewReader("hello resource"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if size != int64(len("hello resource")) {
		t.Errorf("Put() size = %d, want %d", size, len("hello resource"))
	}

	r, gotSize, err := backend.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer r.Close()

	if gotSize != size {
		t.Errorf("Get() size = %d, want %d", gotSize, size)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello resource" {
		t.Errorf("Get() content = %q, want %q", data, "hello resource")
	}
}

func TestLocalBackend_existsReflectsWrites(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	exists, err := backend.Exists(ctx, "r1")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true before any write")
	}

	if _, err := backend.Put(ctx, "r1", strings.NewReader("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	exists, err = backend.Exists(ctx, "r1")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false after write")
	}
}

func TestLocalBackend_deleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	if _, err := backend.Put(ctx, "r1", strings.NewReader("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := backend.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	exists, err := backend.Exists(ctx, "r1")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true after delete")
	}
}

func TestLocalBackend_overwriteUpdatesContent(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	if _, err := backend.Put(ctx, "r1", strings.NewReader("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := backend.Put(ctx, "r1", strings.NewReader("second")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	r, _, err := backend.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer r.Close()

	data, _ := io.ReadAll(r)
	if string(data) != "second" {
		t.Errorf("Get() content = %q, want %q", data, "second")
	}
}
