package resource

import (
	"bytes"
	"context"
	"io"
)

// Backend is the binary-payload side-channel a NodeAdapter uses for
// readResource/createResource/updateResource: content is addressed by
// an opaque key (the record's resourceUri), independent of whichever
// concrete store holds the bytes.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

var _ Backend = (*S3Backend)(nil)

// S3Backend adapts an S3Client, whose Upload/Download operate on
// whole []byte buffers, to the streaming Backend interface.
type S3Backend struct {
	client *S3Client
}

// NewS3Backend wraps client as a Backend.
func NewS3Backend(client *S3Client) *S3Backend {
	return &S3Backend{client: client}
}

// Put reads r fully and uploads it; S3Client has no streaming upload.
func (b *S3Backend) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := b.client.Upload(ctx, key, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Get downloads the full object and wraps it as a ReadCloser.
func (b *S3Backend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	data, err := b.client.Download(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Exists has no dedicated HEAD operation on S3Client, so it lists the
// exact key as a prefix and checks for an exact match.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	keys, err := b.client.List(ctx, key)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes key from the bucket.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	return b.client.Delete(ctx, key)
}
