package batchverify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/metrics"
	"github.com/onflow/batch-verifier/utils/unittest"
)

// TestVerifier_ResultsMatchValidity checks, for arbitrary mixes of valid and invalid
// requests and arbitrary batch shapes, that every request receives exactly the result
// its validity implies, whether or not the backend supports batches.
func TestVerifier_ResultsMatchValidity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		invalid := rapid.SliceOf(rapid.Bool()).Draw(rt, "invalid")
		config := batchverify.DefaultConfig("property")
		config.MaxBatchSize = rapid.UintRange(1, 8).Draw(rt, "max_batch_size")
		config.MinBatchSize = rapid.UintRange(0, config.MaxBatchSize).Draw(rt, "min_batch_size")
		config.MaxConcurrentBatches = rapid.UintRange(1, 3).Draw(rt, "max_concurrent_batches")
		config.FallbackFanout = rapid.UintRange(1, 4).Draw(rt, "fallback_fanout")
		config.MaxBatchLatency = time.Millisecond
		batchCapable := rapid.Bool().Draw(rt, "batch_capable")

		fake := newFakeBackend()
		var backend batchverify.Backend[testRequest] = fake
		if !batchCapable {
			backend = singleOnly{fake}
		}

		v, err := batchverify.NewVerifier(unittest.Logger(), metrics.NewNoopCollector(), backend, config)
		require.NoError(rt, err)
		ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
		v.Start(ctx)
		defer func() {
			cancel()
			<-v.Done()
		}()

		handles := make([]*batchverify.Handle, len(invalid))
		for i, bad := range invalid {
			h, err := v.Submit(testRequest{ID: i, Invalid: bad})
			require.NoError(rt, err)
			handles[i] = h
		}

		waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelWait()
		for i, h := range handles {
			result := h.Wait(waitCtx)
			if invalid[i] {
				require.True(rt, batchverify.IsVerifyError(result), "request %d: %v", i, result)
			} else {
				require.NoError(rt, result, "request %d", i)
			}
		}

		stats := v.Stats()
		require.Equal(rt, uint64(len(invalid)), stats.Submitted)
		require.Equal(rt, uint64(len(invalid)), stats.Resolved)
		if !batchCapable {
			require.Empty(rt, fake.batchCalls())
		}
	})
}
