package cas

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/catalogsync/replicator/internal/resource"
)

var _ resource.Backend = (*LocalBackend)(nil)

// LocalBackend exposes ContentAddressedStorage as a key-addressed
// resource backend: callers reference resources by an opaque key (a
// resourceUri), not by content hash, while the bytes underneath are
// still deduplicated by hash. A small on-disk index maps each key to
// its current hash.
type LocalBackend struct {
	storage   *ContentAddressedStorage
	indexPath string
}

// NewLocalBackend creates a LocalBackend rooted at baseDir.
func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backend directory: %w", err)
	}
	return &LocalBackend{
		storage:   NewContentAddressedStorage(filepath.Join(baseDir, "blobs")),
		indexPath: filepath.Join(baseDir, "index"),
	}, nil
}

// Put stores the reader's content under key, streaming it to disk
// while computing its hash rather than buffering it in memory. ctx is
// accepted for interface parity with remote backends; local disk I/O
// does not itself observe cancellation.
func (b *LocalBackend) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(b.storage.baseDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(b.storage.baseDir, "incoming-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := NewStreamingHash(tmp)
	size, err := io.Copy(hasher, r)
	tmp.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to stage resource: %w", err)
	}

	hash, err := b.storage.StoreFile(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to store resource: %w", err)
	}

	if err := b.recordKey(key, hash); err != nil {
		return 0, err
	}
	return size, nil
}

// Get returns the current content behind key.
func (b *LocalBackend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	hash, err := b.lookupKey(key)
	if err != nil {
		return nil, 0, err
	}

	size, err := b.storage.Size(hash)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(b.storage.getPath(hash))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open resource: %w", err)
	}
	return f, size, nil
}

// Exists reports whether key has been written and not since deleted.
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.lookupKey(key)
	return err == nil, nil
}

// Delete removes key's index entry. The underlying blob is left in
// place, since another key may reference the same content.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	path := b.keyPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}
	return nil
}

func (b *LocalBackend) keyPath(key string) string {
	return filepath.Join(b.indexPath, CalculateHash([]byte(key)))
}

func (b *LocalBackend) recordKey(key, hash string) error {
	dir := b.indexPath
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := os.WriteFile(b.keyPath(key), []byte(hash), 0644); err != nil {
		return fmt.Errorf("failed to record index entry: %w", err)
	}
	return nil
}

func (b *LocalBackend) lookupKey(key string) (string, error) {
	data, err := os.ReadFile(b.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resource not found: %s", key)
		}
		return "", fmt.Errorf("failed to read index entry: %w", err)
	}
	return string(data), nil
}
