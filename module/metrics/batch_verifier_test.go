package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/batch-verifier/utils/unittest"
)

func TestBatchVerifierCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewBatchVerifierCollector(registry)

	collector.RequestSubmitted("bls")
	collector.RequestSubmitted("bls")
	collector.RequestSubmitted("kzg")
	collector.BatchFlushed("bls", "size", 2)
	collector.BatchVerified("bls", "failed", 3*time.Millisecond)
	collector.FallbackVerified("bls", "pass", time.Millisecond)
	collector.FallbackVerified("bls", "fail", time.Millisecond)
	collector.RequestResolved("bls", "pass", 5*time.Millisecond)
	collector.RequestResolved("bls", "fail", 5*time.Millisecond)
	collector.InFlightBatches("bls", 1)
	collector.QueuedBatches("bls", 4)
	collector.CacheHit("kzg")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.submitted.WithLabelValues("bls")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.submitted.WithLabelValues("kzg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.batchesFlushed.WithLabelValues("bls", "size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.resolved.WithLabelValues("bls", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.resolved.WithLabelValues("bls", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.inFlight.WithLabelValues("bls")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.queued.WithLabelValues("bls")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("kzg")))

	assert.Equal(t, 2, testutil.CollectAndCount(collector.fallbackDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.batchDuration))
}

// TestBatchVerifierCollector_Registries verifies that collectors for separate registries
// do not conflict.
func TestBatchVerifierCollector_Registries(t *testing.T) {
	require.NotPanics(t, func() {
		NewBatchVerifierCollector(prometheus.NewRegistry())
		NewBatchVerifierCollector(prometheus.NewRegistry())
	})
}

// TestServer serves the metrics of a collector and scrapes them over http.
func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewBatchVerifierCollector(registry)
	collector.RequestSubmitted("secp256k1")

	server := NewServer(unittest.Logger(), 0, registry)
	stop := unittest.RunComponent(t, server, 5*time.Second)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+server.Addr().String()+"/metrics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `batch_verifier_accumulator_requests_submitted_total{verifier="secp256k1"} 1`))
}
