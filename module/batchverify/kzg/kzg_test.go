package kzg_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/kzg"
	"github.com/onflow/batch-verifier/module/metrics"
	"github.com/onflow/batch-verifier/utils/unittest"
)

var (
	setupOnce sync.Once
	backend   *kzg.Backend
	setupErr  error
)

// sharedBackend loads the trusted setup once for all tests of the package.
func sharedBackend(t *testing.T) *kzg.Backend {
	unittest.SkipIfShort(t, "loads the KZG trusted setup")
	setupOnce.Do(func() {
		backend, setupErr = kzg.NewBackend()
	})
	require.NoError(t, setupErr)
	return backend
}

const scalarSize = 32

// randomBlob returns a blob of canonical field elements.
func randomBlob(rng *rand.Rand) *goethkzg.Blob {
	var blob goethkzg.Blob
	for i := 0; i < len(blob); i += scalarSize {
		// big-endian encoding; a zero top byte keeps the element below the modulus
		rng.Read(blob[i+1 : i+scalarSize])
	}
	return &blob
}

func proveRandom(t *testing.T, b *kzg.Backend, rng *rand.Rand, n int) []kzg.Request {
	reqs := make([]kzg.Request, n)
	for i := range reqs {
		req, err := b.Prove(randomBlob(rng))
		require.NoError(t, err)
		reqs[i] = req
	}
	return reqs
}

func TestBackend_VerifyOne(t *testing.T) {
	b := sharedBackend(t)
	rng := rand.New(rand.NewSource(1))
	reqs := proveRandom(t, b, rng, 2)

	for _, req := range reqs {
		assert.NoError(t, b.VerifyOne(context.Background(), req))
	}

	swapped := reqs[0]
	swapped.Proof = reqs[1].Proof
	err := b.VerifyOne(context.Background(), swapped)
	assert.True(t, batchverify.IsVerifyError(err))

	err = b.VerifyOne(context.Background(), kzg.Request{})
	assert.True(t, batchverify.IsVerifyError(err))
}

func TestBackend_VerifyBatch(t *testing.T) {
	b := sharedBackend(t)
	rng := rand.New(rand.NewSource(2))
	reqs := proveRandom(t, b, rng, 4)

	outcome, err := b.VerifyBatch(context.Background(), reqs)
	require.NoError(t, err)
	assert.True(t, outcome.Passed())

	reqs[2].Commitment = reqs[3].Commitment
	outcome, err = b.VerifyBatch(context.Background(), reqs)
	require.NoError(t, err)
	assert.False(t, outcome.Passed())

	outcome, err = b.VerifyBatch(context.Background(), []kzg.Request{reqs[0], {}})
	require.NoError(t, err)
	assert.False(t, outcome.Passed())
}

// TestBackend_Verifier runs blob proofs through a batch verifier and checks that only the
// forged proof is rejected.
func TestBackend_Verifier(t *testing.T) {
	b := sharedBackend(t)
	rng := rand.New(rand.NewSource(3))
	reqs := proveRandom(t, b, rng, 6)
	reqs[4].Proof = reqs[5].Proof

	config := batchverify.DefaultConfig("kzg")
	config.MaxBatchSize = uint(len(reqs))
	v, err := batchverify.NewVerifier[kzg.Request](unittest.Logger(), metrics.NewNoopCollector(), b, config)
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
		if i == 4 {
			assert.True(t, batchverify.IsVerifyError(err))
			continue
		}
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, uint64(1), v.Stats().FailedBatches)
}
