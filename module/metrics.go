package module

import (
	"time"
)

// BatchVerifierMetrics encapsulates the metrics collectors for batch verifiers. All methods
// take the name of the verifier instance, so that several verifiers (e.g. one per
// cryptographic scheme) can report to the same collector.
type BatchVerifierMetrics interface {
	// RequestSubmitted is called when a request was accepted into the open batch.
	RequestSubmitted(verifier string)

	// BatchFlushed is called when the open batch is closed and handed to the batch worker.
	// trigger is the reason the batch was closed: "size", "timer" or "shutdown".
	BatchFlushed(verifier string, trigger string, size int)

	// BatchVerified reports the duration of one batch verification and its outcome:
	// "passed", "failed" or "error".
	BatchVerified(verifier string, outcome string, duration time.Duration)

	// FallbackVerified reports the duration of one individual verification performed
	// while resolving a failed batch, together with its result label.
	FallbackVerified(verifier string, result string, duration time.Duration)

	// RequestResolved is called exactly once per submitted request with its result label
	// ("pass", "fail", "backend_error" or "cancelled") and the time since submission.
	RequestResolved(verifier string, result string, latency time.Duration)

	// InFlightBatches reports the number of batches currently being verified.
	InFlightBatches(verifier string, count int)

	// QueuedBatches reports the number of closed batches waiting for an in-flight slot.
	QueuedBatches(verifier string, count int)

	// CacheHit is called when a request resolved from the verified-request cache of
	// the service front without being submitted.
	CacheHit(verifier string)
}
