// Package batchverify turns a stream of independent verification requests into
// batches for backends whose batch algorithm is cheaper per item than single
// verification (pairing based proofs, KZG openings, BLS signatures).
//
// Requests accumulate in an open batch which is closed either when it reaches the
// configured size or when the configured latency has elapsed since its first item.
// Closed batches are verified with the backend's batch operation. Batch algorithms
// only report whether the whole batch passed, so a failed batch is resolved into a
// per-request result by re-verifying each item individually. Every submitted request
// receives exactly one terminal result: pass, VerifyError, BackendError or ErrCancelled.
package batchverify

import (
	"context"
	"errors"
	"fmt"
)

// Backend verifies a single request. Implementations must be safe for concurrent use.
//
// VerifyOne returns nil if the request is valid. It returns a VerifyError if the
// request is invalid. Any other error is delivered to the caller as a BackendError.
type Backend[R any] interface {
	VerifyOne(ctx context.Context, req R) error
}

// BatchBackend is a Backend which can additionally verify many requests at once.
// Backends which do not implement VerifyBatch are served in fallback-only mode:
// every request is still accumulated but is verified individually.
//
// VerifyBatch receives the requests in submission order. It returns AllPassed if every
// request is valid and Failed if at least one is invalid. An error means the backend
// could not produce an outcome at all; the batch is then verified item by item.
type BatchBackend[R any] interface {
	Backend[R]
	VerifyBatch(ctx context.Context, reqs []R) (BatchOutcome, error)
}

var errBatchFailed = errors.New("batch verification failed")

// BatchOutcome is the coarse result of a batch verification. A failed outcome does not
// identify which request caused the failure.
type BatchOutcome struct {
	failure error
}

// AllPassed is the outcome of a batch in which every request is valid.
func AllPassed() BatchOutcome {
	return BatchOutcome{}
}

// Failed is the outcome of a batch in which at least one request is invalid.
func Failed(reason error) BatchOutcome {
	if reason == nil {
		reason = errBatchFailed
	}
	return BatchOutcome{failure: reason}
}

// Passed returns true if every request of the batch is valid.
func (o BatchOutcome) Passed() bool {
	return o.failure == nil
}

// Reason returns why the batch failed, or nil for a passed batch.
func (o BatchOutcome) Reason() error {
	return o.failure
}

func (o BatchOutcome) String() string {
	if o.Passed() {
		return "all_passed"
	}
	return fmt.Sprintf("failed(%s)", o.failure.Error())
}
