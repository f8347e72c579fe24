package crypto_test

import (
	"errors"
	"hash"
	"testing"

	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

func TestOrderHashConcatenatesOrderAndPair(t *testing.T) {
	got, err := crypto.OrderHash(crypto.SHA256{}, "1234567", "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("OrderHash: %v", err)
	}
	want, _ := crypto.SHA256{}.HexDigest([]byte("1234567BTC-USDT-SWAP"))
	if got != want {
		t.Fatalf("order hash = %s, want %s", got, want)
	}
	if len(got) != 64 {
		t.Fatalf("digest length = %d, want 64", len(got))
	}
}

func TestEvidenceDigestKnownValue(t *testing.T) {
	got, err := crypto.EvidenceDigest(crypto.SHA256{}, "abc")
	if err != nil {
		t.Fatalf("EvidenceDigest: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestDigestsWithoutHasherAreUnavailable(t *testing.T) {
	if _, err := crypto.OrderHash(nil, "123456", "X"); !errors.Is(err, domain.ErrCryptoUnavailable) {
		t.Fatalf("OrderHash(nil) err = %v, want ErrCryptoUnavailable", err)
	}
	if _, err := crypto.EvidenceDigest(nil, "raw"); !errors.Is(err, domain.ErrCryptoUnavailable) {
		t.Fatalf("EvidenceDigest(nil) err = %v, want ErrCryptoUnavailable", err)
	}
	var fn crypto.HashFunc
	if _, err := fn.HexDigest([]byte("x")); !errors.Is(err, domain.ErrCryptoUnavailable) {
		t.Fatalf("nil HashFunc err = %v, want ErrCryptoUnavailable", err)
	}
	broken := crypto.HashFunc(func() hash.Hash { return nil })
	if _, err := broken.HexDigest([]byte("x")); !errors.Is(err, domain.ErrCryptoUnavailable) {
		t.Fatalf("HashFunc returning nil err = %v, want ErrCryptoUnavailable", err)
	}
}
