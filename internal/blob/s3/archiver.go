package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// maxEvidenceSize bounds what Fetch will read back.
const maxEvidenceSize = 16 << 20

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// EvidenceArchiver implements domain.EvidenceArchive. Objects are
// content-addressed at evidence/{digest}.json, so an existing object is never
// rewritten.
type EvidenceArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewEvidenceArchiver creates an EvidenceArchiver.
func NewEvidenceArchiver(writer domain.BlobWriter, reader domain.BlobReader) *EvidenceArchiver {
	return &EvidenceArchiver{writer: writer, reader: reader}
}

// EvidencePath returns the object key for digest.
func EvidencePath(digest string) string {
	return "evidence/" + digest + ".json"
}

// Archive uploads raw under its digest unless it is already stored, and
// returns the object key.
func (a *EvidenceArchiver) Archive(ctx context.Context, digest string, raw []byte) (string, error) {
	if !digestPattern.MatchString(digest) {
		return "", fmt.Errorf("s3blob: archive evidence: invalid digest %q", digest)
	}
	path := EvidencePath(digest)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive evidence: %w", err)
	}
	if exists {
		return path, nil
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(raw), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive evidence: %w", err)
	}
	return path, nil
}

// Fetch returns the archived evidence for digest, or domain.ErrNotFound.
func (a *EvidenceArchiver) Fetch(ctx context.Context, digest string) ([]byte, error) {
	if !digestPattern.MatchString(digest) {
		return nil, fmt.Errorf("s3blob: fetch evidence %q: %w", digest, domain.ErrNotFound)
	}
	body, err := a.reader.Get(ctx, EvidencePath(digest))
	if err != nil {
		return nil, fmt.Errorf("s3blob: fetch evidence: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxEvidenceSize))
	if err != nil {
		return nil, fmt.Errorf("s3blob: read evidence %s: %w", digest, err)
	}
	return data, nil
}

// Compile-time interface check.
var _ domain.EvidenceArchive = (*EvidenceArchiver)(nil)
