// Package crypto provides content digests, wallet signing, encrypted key
// storage and HMAC request authentication for the insurance backend.
package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs EIP-191 personal messages with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key (with or without
// 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the checksummed Ethereum address of the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignPersonal signs text the way wallets implement personal_sign:
//
//	keccak256("\x19Ethereum Signed Message:\n" || len(text) || text)
//
// The result is a 0x-prefixed 65-byte signature with v in {27,28}.
func (s *Signer) SignPersonal(text string) (string, error) {
	digest := accounts.TextHash([]byte(text))
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverPersonal returns the address that produced a SignPersonal signature
// over text.
func RecoverPersonal(text, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(text)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// LocalWallet exposes a Signer through the wallet-provider contract used by
// the session layer: Connect yields the address, SignMessage signs text.
type LocalWallet struct {
	signer *Signer
}

// NewLocalWallet wraps signer as a wallet provider.
func NewLocalWallet(signer *Signer) *LocalWallet {
	return &LocalWallet{signer: signer}
}

// Connect returns the wallet address. A local key is always connected.
func (w *LocalWallet) Connect(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.signer.Address().Hex(), nil
}

// SignMessage personal-signs text.
func (w *LocalWallet) SignMessage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.signer.SignPersonal(text)
}
