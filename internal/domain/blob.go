package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// EvidenceArchive keeps raw evidence files addressable by their digest.
type EvidenceArchive interface {
	Archive(ctx context.Context, digest string, raw []byte) (path string, err error)
	Fetch(ctx context.Context, digest string) ([]byte, error)
}
