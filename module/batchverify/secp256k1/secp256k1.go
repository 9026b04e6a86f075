// Package secp256k1 verifies ECDSA signatures over secp256k1. ECDSA has no batch
// verification, so the backend only implements single verification and verifiers
// using it run in fallback-only mode.
package secp256k1

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/onflow/batch-verifier/module/batchverify"
)

// Request asks whether Signature (DER encoded) signs Hash under PublicKey (SEC1 encoded,
// compressed or uncompressed).
type Request struct {
	PublicKey []byte
	Hash      [sha256.Size]byte
	Signature []byte
}

// Backend verifies ECDSA signatures. It is stateless and safe for concurrent use.
type Backend struct{}

var _ batchverify.Backend[Request] = (*Backend)(nil)

func NewBackend() *Backend {
	return &Backend{}
}

// VerifyOne verifies a single signature. Keys and signatures which do not parse are
// reported as VerifyError.
func (b *Backend) VerifyOne(_ context.Context, req Request) error {
	pub, err := btcec.ParsePubKey(req.PublicKey)
	if err != nil {
		return batchverify.NewVerifyError(fmt.Errorf("invalid public key: %w", err))
	}
	sig, err := ecdsa.ParseDERSignature(req.Signature)
	if err != nil {
		return batchverify.NewVerifyError(fmt.Errorf("invalid signature encoding: %w", err))
	}
	if !sig.Verify(req.Hash[:], pub) {
		return batchverify.NewVerifyErrorf("invalid signature")
	}
	return nil
}

// Signer holds a secp256k1 private key. Used to produce requests for tests and load
// generation.
type Signer struct {
	priv *btcec.PrivateKey
}

// NewSigner generates a fresh private key.
func NewSigner() (*Signer, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate private key: %w", err)
	}
	return &Signer{priv: priv}, nil
}

// Sign returns a request carrying a valid signature of the SHA-256 digest of msg.
func (s *Signer) Sign(msg []byte) Request {
	hash := sha256.Sum256(msg)
	sig := ecdsa.Sign(s.priv, hash[:])
	return Request{
		PublicKey: s.priv.PubKey().SerializeCompressed(),
		Hash:      hash,
		Signature: sig.Serialize(),
	}
}
