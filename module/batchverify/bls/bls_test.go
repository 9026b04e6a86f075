package bls_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/bls"
	"github.com/onflow/batch-verifier/module/metrics"
	"github.com/onflow/batch-verifier/utils/unittest"
)

func signer(t *testing.T, i byte) *bls.Signer {
	seed := make([]byte, 32)
	seed[0] = i + 1
	s, err := bls.NewSigner(seed)
	require.NoError(t, err)
	return s
}

func signedRequests(t *testing.T, n int) []bls.Request {
	reqs := make([]bls.Request, n)
	for i := range reqs {
		reqs[i] = signer(t, byte(i)).Sign([]byte(fmt.Sprintf("block %d", i)))
	}
	return reqs
}

func TestNewSigner_ShortSeed(t *testing.T) {
	_, err := bls.NewSigner(make([]byte, 31))
	require.Error(t, err)
}

func TestBackend_VerifyOne(t *testing.T) {
	b := bls.NewBackend()
	req := signer(t, 0).Sign([]byte("hello"))
	require.NoError(t, b.VerifyOne(context.Background(), req))
	assert.Len(t, req.PublicKey, bls.PublicKeySize)
	assert.Len(t, req.Signature, bls.SignatureSize)

	t.Run("wrong message", func(t *testing.T) {
		forged := req
		forged.Message = []byte("goodbye")
		assert.True(t, batchverify.IsVerifyError(b.VerifyOne(context.Background(), forged)))
	})
	t.Run("wrong key", func(t *testing.T) {
		forged := req
		forged.PublicKey = signer(t, 1).PublicKey()
		assert.True(t, batchverify.IsVerifyError(b.VerifyOne(context.Background(), forged)))
	})
	t.Run("malformed signature", func(t *testing.T) {
		forged := req
		forged.Signature = make([]byte, bls.SignatureSize)
		assert.True(t, batchverify.IsVerifyError(b.VerifyOne(context.Background(), forged)))
	})
	t.Run("truncated key", func(t *testing.T) {
		forged := req
		forged.PublicKey = req.PublicKey[:10]
		assert.True(t, batchverify.IsVerifyError(b.VerifyOne(context.Background(), forged)))
	})
}

func TestBackend_VerifyBatch(t *testing.T) {
	b := bls.NewBackend()
	reqs := signedRequests(t, 8)

	outcome, err := b.VerifyBatch(context.Background(), reqs)
	require.NoError(t, err)
	assert.True(t, outcome.Passed())

	// signatures swapped between two requests: each is invalid, their sum is not
	reqs[3].Signature, reqs[4].Signature = reqs[4].Signature, reqs[3].Signature
	outcome, err = b.VerifyBatch(context.Background(), reqs)
	require.NoError(t, err)
	assert.False(t, outcome.Passed())

	reqs = signedRequests(t, 3)
	reqs[1].Signature = reqs[1].Signature[:5]
	outcome, err = b.VerifyBatch(context.Background(), reqs)
	require.NoError(t, err)
	assert.False(t, outcome.Passed())
}

// TestBackend_Verifier runs signatures through a batch verifier; a swapped pair of
// signatures must be detected individually.
func TestBackend_Verifier(t *testing.T) {
	reqs := signedRequests(t, 10)
	reqs[3].Signature, reqs[4].Signature = reqs[4].Signature, reqs[3].Signature

	config := batchverify.DefaultConfig("bls")
	config.MaxBatchSize = 5
	config.MaxBatchLatency = 10 * time.Millisecond
	v, err := batchverify.NewVerifier[bls.Request](unittest.Logger(), metrics.NewNoopCollector(), bls.NewBackend(), config)
	require.NoError(t, err)
	stop := unittest.RunComponent(t, v, time.Second)
	defer stop()

	handles := make([]*batchverify.Handle, len(reqs))
	for i, req := range reqs {
		handles[i], err = v.Submit(req)
		require.NoError(t, err)
	}
	for i, h := range handles {
		err := h.Wait(context.Background())
		if i == 3 || i == 4 {
			assert.True(t, batchverify.IsVerifyError(err), "request %d", i)
			continue
		}
		assert.NoError(t, err, "request %d", i)
	}

	stats := v.Stats()
	assert.Equal(t, uint64(2), stats.Batches)
	assert.Equal(t, uint64(1), stats.FailedBatches)
	assert.Equal(t, uint64(5), stats.FallbackItems)
}
