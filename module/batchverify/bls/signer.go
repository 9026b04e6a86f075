package bls

import (
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// Signer holds a BLS secret key. Used to produce requests for tests and load generation.
type Signer struct {
	sk        *blst.SecretKey
	publicKey []byte
}

// NewSigner derives a key pair from seed, which must hold at least 32 bytes.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed has %d bytes, need at least 32", len(seed))
	}
	sk := blst.KeyGen(seed)
	if sk == nil {
		return nil, fmt.Errorf("key generation failed")
	}
	return &Signer{
		sk:        sk,
		publicKey: new(blst.P1Affine).From(sk).Compress(),
	}, nil
}

// PublicKey returns the compressed public key.
func (s *Signer) PublicKey() []byte {
	return s.publicKey
}

// Sign returns a request carrying a valid signature of msg.
func (s *Signer) Sign(msg []byte) Request {
	sig := new(blst.P2Affine).Sign(s.sk, msg, DST)
	return Request{
		PublicKey: s.publicKey,
		Message:   msg,
		Signature: sig.Compress(),
	}
}
