package main

import (
	"testing"

	"github.com/catalogsync/replicator/internal/adapter/local"
	"github.com/catalogsync/replicator/internal/adapter/rest"
	"github.com/catalogsync/replicator/internal/config"
	"github.com/catalogsync/replicator/internal/resource"
	"github.com/catalogsync/replicator/internal/resource/cas"
)

func TestBuildBackendLocalDefaultsToLocalBackend(t *testing.T) {
	dir := t.TempDir()
	backend, err := buildBackend(config.ResourceConfig{Provider: "local", LocalDir: dir})
	if err != nil {
		t.Fatalf("buildBackend() error = %v", err)
	}
	if _, ok := backend.(*cas.LocalBackend); !ok {
		t.Errorf("buildBackend() = %T, want *cas.LocalBackend", backend)
	}
}

func TestBuildBackendEmptyProviderDefaultsToLocal(t *testing.T) {
	backend, err := buildBackend(config.ResourceConfig{LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("buildBackend() error = %v", err)
	}
	if _, ok := backend.(*cas.LocalBackend); !ok {
		t.Errorf("buildBackend() = %T, want *cas.LocalBackend", backend)
	}
}

func TestBuildBackendAWS(t *testing.T) {
	backend, err := buildBackend(config.ResourceConfig{
		Provider:  "aws",
		Bucket:    "bucket",
		Region:    "us-east-1",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("buildBackend() error = %v", err)
	}
	if _, ok := backend.(*resource.S3Backend); !ok {
		t.Errorf("buildBackend() = %T, want *resource.S3Backend", backend)
	}
}

func TestBuildBackendUnknownProvider(t *testing.T) {
	if _, err := buildBackend(config.ResourceConfig{Provider: "ftp"}); err == nil {
		t.Error("buildBackend() error = nil for an unknown provider, want non-nil")
	}
}

func TestBuildAdapterWithoutBaseURLIsLocal(t *testing.T) {
	adapter, err := buildAdapter(config.NodeConfig{
		SystemName: "node-a",
		Resource:   config.ResourceConfig{LocalDir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("buildAdapter() error = %v", err)
	}
	if _, ok := adapter.(*local.Adapter); !ok {
		t.Errorf("buildAdapter() = %T, want *local.Adapter", adapter)
	}
}

func TestBuildAdapterWithBaseURLIsREST(t *testing.T) {
	adapter, err := buildAdapter(config.NodeConfig{
		SystemName: "node-b",
		BaseURL:    "https://catalog.example.com",
		Resource:   config.ResourceConfig{LocalDir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("buildAdapter() error = %v", err)
	}
	if _, ok := adapter.(*rest.Adapter); !ok {
		t.Errorf("buildAdapter() = %T, want *rest.Adapter", adapter)
	}
}
