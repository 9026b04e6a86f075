package secp256k1_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/secp256k1"
	"github.com/onflow/batch-verifier/module/metrics"
	"github.com/onflow/batch-verifier/utils/unittest"
)

func TestBackend_VerifyOne(t *testing.T) {
	signer, err := secp256k1.NewSigner()
	require.NoError(t, err)
	b := secp256k1.NewBackend()

	req := signer.Sign([]byte("transfer 10"))
	require.NoError(t, b.VerifyOne(context.Background(), req))

	other, err := secp256k1.NewSigner()
	require.NoError(t, err)

	cases := map[string]func(r *secp256k1.Request){
		"wrong hash":          func(r *secp256k1.Request) { r.Hash[0] ^= 0xff },
		"wrong key":           func(r *secp256k1.Request) { r.PublicKey = other.Sign(nil).PublicKey },
		"malformed key":       func(r *secp256k1.Request) { r.PublicKey = []byte{0x02, 0x01} },
		"malformed signature": func(r *secp256k1.Request) { r.Signature = []byte{0x30, 0x00} },
	}
	for name, forge := range cases {
		t.Run(name, func(t *testing.T) {
			forged := req
			forged.Signature = append([]byte(nil), req.Signature...)
			forge(&forged)
			err := b.VerifyOne(context.Background(), forged)
			assert.True(t, batchverify.IsVerifyError(err), err)
		})
	}
}

// TestBackend_FallbackOnly verifies that a verifier over a backend without batch support
// verifies every request individually.
func TestBackend_FallbackOnly(t *testing.T) {
	var _ batchverify.Backend[secp256k1.Request] = secp256k1.NewBackend()
	_, batchCapable := any(secp256k1.NewBackend()).(batchverify.BatchBackend[secp256k1.Request])
	require.False(t, batchCapable)

	signer, err := secp256k1.NewSigner()
	require.NoError(t, err)

	config := batchverify.DefaultConfig("secp256k1")
	config.MaxBatchSize = 4
	config.MaxBatchLatency = 10 * time.Millisecond
	v, err := batchverify.NewVerifier[secp256k1.Request](unittest.Logger(), metrics.NewNoopCollector(), secp256k1.NewBackend(), config)
	require.NoError(t, err)
	stop := unittest.RunComponent(t, v, time.Second)
	defer stop()

	handles := make([]*batchverify.Handle, 9)
	for i := range handles {
		req := signer.Sign([]byte(fmt.Sprintf("message %d", i)))
		if i%3 == 0 {
			req.Hash[31] ^= 1
		}
		handles[i], err = v.Submit(req)
		require.NoError(t, err)
	}
	for i, h := range handles {
		err := h.Wait(context.Background())
		if i%3 == 0 {
			assert.True(t, batchverify.IsVerifyError(err), "request %d", i)
			continue
		}
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, uint64(9), v.Stats().FallbackItems)
	assert.Zero(t, v.Stats().FailedBatches)
}
