// Package bls verifies BLS12-381 signatures of the min-pk scheme: public keys in G1,
// signatures in G2, proof-of-possession domain separation.
//
// A batch of signatures over distinct messages is verified with a single multi-pairing
// over a random linear combination of the individual checks.
package bls

import (
	"context"
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/onflow/batch-verifier/module/batchverify"
)

// DST is the domain separation tag of the proof-of-possession ciphersuite.
var DST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

const (
	PublicKeySize = 48 // compressed G1 point
	SignatureSize = 96 // compressed G2 point

	// randBits is the size of the random scalars weighting each signature in a batch.
	randBits = 64
)

// Request asks whether Signature is a valid signature of Message under PublicKey.
// Public key and signature are in compressed serialization.
type Request struct {
	PublicKey []byte
	Message   []byte
	Signature []byte
}

// Backend verifies BLS signatures. It is stateless and safe for concurrent use.
type Backend struct{}

var _ batchverify.BatchBackend[Request] = (*Backend)(nil)

func NewBackend() *Backend {
	return &Backend{}
}

// VerifyOne verifies a single signature. Points which do not decode or are not in the
// prime order subgroup are reported as VerifyError.
func (b *Backend) VerifyOne(_ context.Context, req Request) error {
	pk, sig, err := decode(req)
	if err != nil {
		return batchverify.NewVerifyError(err)
	}
	if !sig.Verify(true, pk, true, req.Message, DST) {
		return batchverify.NewVerifyErrorf("invalid signature")
	}
	return nil
}

// VerifyBatch verifies all signatures with one multi-pairing.
func (b *Backend) VerifyBatch(_ context.Context, reqs []Request) (batchverify.BatchOutcome, error) {
	pks := make([]*blst.P1Affine, len(reqs))
	sigs := make([]*blst.P2Affine, len(reqs))
	msgs := make([]blst.Message, len(reqs))
	for i, req := range reqs {
		pk, sig, err := decode(req)
		if err != nil {
			return batchverify.Failed(fmt.Errorf("request %d: %w", i, err)), nil
		}
		pks[i], sigs[i], msgs[i] = pk, sig, req.Message
	}

	ok := new(blst.P2Affine).MultipleAggregateVerify(sigs, true, pks, true, msgs, DST, randScalar, randBits)
	if !ok {
		return batchverify.Failed(fmt.Errorf("multi-pairing check failed")), nil
	}
	return batchverify.AllPassed(), nil
}

func decode(req Request) (*blst.P1Affine, *blst.P2Affine, error) {
	if len(req.PublicKey) != PublicKeySize {
		return nil, nil, fmt.Errorf("public key has %d bytes, expected %d", len(req.PublicKey), PublicKeySize)
	}
	if len(req.Signature) != SignatureSize {
		return nil, nil, fmt.Errorf("signature has %d bytes, expected %d", len(req.Signature), SignatureSize)
	}
	pk := new(blst.P1Affine).Uncompress(req.PublicKey)
	if pk == nil {
		return nil, nil, fmt.Errorf("public key is not a valid G1 point")
	}
	sig := new(blst.P2Affine).Uncompress(req.Signature)
	if sig == nil {
		return nil, nil, fmt.Errorf("signature is not a valid G2 point")
	}
	return pk, sig, nil
}

func randScalar(s *blst.Scalar) {
	var rbytes [blst.BLST_SCALAR_BYTES]byte
	_, _ = rand.Read(rbytes[:])
	s.FromBEndian(rbytes[:])
}
