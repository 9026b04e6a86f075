// Package kzg verifies EIP-4844 blob KZG proofs. Blob proofs are batch verified with a
// single random linear combination of the pairing checks.
package kzg

import (
	"context"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/onflow/batch-verifier/module/batchverify"
)

// Request asks whether Proof opens Commitment at the evaluation point derived from Blob.
type Request struct {
	Blob       *goethkzg.Blob
	Commitment goethkzg.KZGCommitment
	Proof      goethkzg.KZGProof
}

// Backend verifies blob proofs against the Ethereum KZG ceremony setup.
// It is safe for concurrent use.
type Backend struct {
	ctx *goethkzg.Context
}

var _ batchverify.BatchBackend[Request] = (*Backend)(nil)

// NewBackend loads the trusted setup. This takes a few seconds, so a single Backend
// should be shared by all users.
func NewBackend() (*Backend, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("could not initialize kzg context: %w", err)
	}
	return &Backend{ctx: ctx}, nil
}

// VerifyOne verifies a single blob proof. Malformed blobs, commitments and proofs are
// attributable to the request and reported as VerifyError, like a failing pairing check.
func (b *Backend) VerifyOne(_ context.Context, req Request) error {
	if req.Blob == nil {
		return batchverify.NewVerifyErrorf("missing blob")
	}
	err := b.ctx.VerifyBlobKZGProof(req.Blob, req.Commitment, req.Proof)
	if err != nil {
		return batchverify.NewVerifyError(fmt.Errorf("invalid blob proof: %w", err))
	}
	return nil
}

// VerifyBatch verifies all blob proofs at once. The batch fails if any request is
// invalid or malformed.
func (b *Backend) VerifyBatch(_ context.Context, reqs []Request) (batchverify.BatchOutcome, error) {
	blobs := make([]*goethkzg.Blob, len(reqs))
	commitments := make([]goethkzg.KZGCommitment, len(reqs))
	proofs := make([]goethkzg.KZGProof, len(reqs))
	for i, req := range reqs {
		if req.Blob == nil {
			return batchverify.Failed(fmt.Errorf("request %d has no blob", i)), nil
		}
		blobs[i] = req.Blob
		commitments[i] = req.Commitment
		proofs[i] = req.Proof
	}

	err := b.ctx.VerifyBlobKZGProofBatch(blobs, commitments, proofs)
	if err != nil {
		return batchverify.Failed(err), nil
	}
	return batchverify.AllPassed(), nil
}

// Prove computes the commitment and proof for blob. Used to produce requests in tests
// and load generation.
func (b *Backend) Prove(blob *goethkzg.Blob) (Request, error) {
	commitment, err := b.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return Request{}, fmt.Errorf("could not commit to blob: %w", err)
	}
	proof, err := b.ctx.ComputeBlobKZGProof(blob, commitment, 0)
	if err != nil {
		return Request{}, fmt.Errorf("could not compute blob proof: %w", err)
	}
	return Request{Blob: blob, Commitment: commitment, Proof: proof}, nil
}
