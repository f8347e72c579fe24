package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Hasher produces a lowercase hex digest of data.
type Hasher interface {
	HexDigest(data []byte) (string, error)
}

// SHA256 is the default Hasher.
type SHA256 struct{}

// HexDigest returns the lowercase hex SHA-256 of data.
func (SHA256) HexDigest(data []byte) (string, error) {
	return hexDigest(sha256.New(), data)
}

// HashFunc adapts a hash constructor into a Hasher. A nil constructor
// reports domain.ErrCryptoUnavailable.
type HashFunc func() hash.Hash

// HexDigest implements Hasher.
func (f HashFunc) HexDigest(data []byte) (string, error) {
	if f == nil {
		return "", domain.ErrCryptoUnavailable
	}
	return hexDigest(f(), data)
}

func hexDigest(h hash.Hash, data []byte) (string, error) {
	if h == nil {
		return "", domain.ErrCryptoUnavailable
	}
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCryptoUnavailable, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// OrderHash digests the order identifier concatenated with the pair ID.
func OrderHash(h Hasher, orderID, pairID string) (string, error) {
	if h == nil {
		return "", domain.ErrCryptoUnavailable
	}
	return h.HexDigest([]byte(orderID + pairID))
}

// EvidenceDigest digests the raw evidence text.
func EvidenceDigest(h Hasher, rawText string) (string, error) {
	if h == nil {
		return "", domain.ErrCryptoUnavailable
	}
	return h.HexDigest([]byte(rawText))
}
