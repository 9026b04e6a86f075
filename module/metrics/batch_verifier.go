package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onflow/batch-verifier/module"
)

// BatchVerifierCollector implements module.BatchVerifierMetrics with prometheus collectors.
type BatchVerifierCollector struct {
	submitted        *prometheus.CounterVec
	batchesFlushed   *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	batchDuration    *prometheus.HistogramVec
	fallbackDuration *prometheus.HistogramVec
	resolved         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	inFlight         *prometheus.GaugeVec
	queued           *prometheus.GaugeVec
	cacheHits        *prometheus.CounterVec
}

var _ module.BatchVerifierMetrics = (*BatchVerifierCollector)(nil)

// NewBatchVerifierCollector creates the collectors and registers them with registerer.
func NewBatchVerifierCollector(registerer prometheus.Registerer) *BatchVerifierCollector {
	factory := promauto.With(registerer)

	bc := &BatchVerifierCollector{
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_submitted_total",
			Namespace: namespaceVerifier,
			Subsystem: subsystemAccumulator,
			Help:      "the number of requests accepted into an open batch",
		}, []string{LabelVerifier}),

		batchesFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "batches_flushed_total",
			Namespace: namespaceVerifier,
			Subsystem: subsystemAccumulator,
			Help:      "the number of closed batches, by the reason the batch was closed",
		}, []string{LabelVerifier, LabelTrigger}),

		batchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "batch_size",
			Namespace: namespaceVerifier,
			Subsystem: subsystemAccumulator,
			Help:      "the number of requests in a closed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{LabelVerifier}),

		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "batch_duration_seconds",
			Namespace: namespaceVerifier,
			Subsystem: subsystemWorker,
			Help:      "the duration of batch verifications, by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{LabelVerifier, LabelOutcome}),

		fallbackDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "verification_duration_seconds",
			Namespace: namespaceVerifier,
			Subsystem: subsystemFallback,
			Help:      "the duration of individual verifications after a batch failure, by result",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{LabelVerifier, LabelResult}),

		resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_resolved_total",
			Namespace: namespaceVerifier,
			Subsystem: subsystemWorker,
			Help:      "the number of requests which received their terminal result, by result",
		}, []string{LabelVerifier, LabelResult}),

		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "request_latency_seconds",
			Namespace: namespaceVerifier,
			Subsystem: subsystemWorker,
			Help:      "the time between submitting a request and its terminal result",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{LabelVerifier, LabelResult}),

		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "in_flight_batches",
			Namespace: namespaceVerifier,
			Subsystem: subsystemWorker,
			Help:      "the number of batches currently being verified",
		}, []string{LabelVerifier}),

		queued: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "queued_batches",
			Namespace: namespaceVerifier,
			Subsystem: subsystemWorker,
			Help:      "the number of closed batches waiting for an in-flight slot",
		}, []string{LabelVerifier}),

		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "cache_hits_total",
			Namespace: namespaceVerifier,
			Subsystem: subsystemFront,
			Help:      "the number of requests answered from the verified-request cache",
		}, []string{LabelVerifier}),
	}

	return bc
}

func (bc *BatchVerifierCollector) RequestSubmitted(verifier string) {
	bc.submitted.WithLabelValues(verifier).Inc()
}

func (bc *BatchVerifierCollector) BatchFlushed(verifier string, trigger string, size int) {
	bc.batchesFlushed.WithLabelValues(verifier, trigger).Inc()
	bc.batchSize.WithLabelValues(verifier).Observe(float64(size))
}

func (bc *BatchVerifierCollector) BatchVerified(verifier string, outcome string, duration time.Duration) {
	bc.batchDuration.WithLabelValues(verifier, outcome).Observe(duration.Seconds())
}

func (bc *BatchVerifierCollector) FallbackVerified(verifier string, result string, duration time.Duration) {
	bc.fallbackDuration.WithLabelValues(verifier, result).Observe(duration.Seconds())
}

func (bc *BatchVerifierCollector) RequestResolved(verifier string, result string, latency time.Duration) {
	bc.resolved.WithLabelValues(verifier, result).Inc()
	bc.requestLatency.WithLabelValues(verifier, result).Observe(latency.Seconds())
}

func (bc *BatchVerifierCollector) InFlightBatches(verifier string, count int) {
	bc.inFlight.WithLabelValues(verifier).Set(float64(count))
}

func (bc *BatchVerifierCollector) QueuedBatches(verifier string, count int) {
	bc.queued.WithLabelValues(verifier).Set(float64(count))
}

func (bc *BatchVerifierCollector) CacheHit(verifier string) {
	bc.cacheHits.WithLabelValues(verifier).Inc()
}
