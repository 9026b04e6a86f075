package batchverify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/onflow/batch-verifier/module"
)

// fallback resolves a batch into per-request results by verifying every request
// individually. All batches of one verifier share the worker pool, which bounds the
// number of concurrent single verifications.
type fallback[R any] struct {
	log     zerolog.Logger
	name    string
	backend Backend[R]
	pool    *workerpool.WorkerPool
	metrics module.BatchVerifierMetrics
	tracer  otelTrace.Tracer
	deliver func(item *pendingItem[R], result error) bool
	// number of items handed to the pool, counted before their result is delivered
	scheduled *atomic.Uint64
}

func newFallback[R any](
	log zerolog.Logger,
	name string,
	backend Backend[R],
	fanout uint,
	metrics module.BatchVerifierMetrics,
	tracer otelTrace.Tracer,
	deliver func(item *pendingItem[R], result error) bool,
) *fallback[R] {
	return &fallback[R]{
		log:     log.With().Str("component", "fallback").Logger(),
		name:    name,
		backend: backend,
		pool:    workerpool.New(int(fanout)),
		metrics: metrics,
		tracer:  tracer,
		deliver: deliver,

		scheduled: atomic.NewUint64(0),
	}
}

// verify verifies every unresolved item of b individually and delivers each result as
// soon as it is known. It returns once every item of b is resolved.
// An error of one item does not affect the other items. If ctx ends, items whose
// verification has not started yet are resolved with ErrCancelled.
func (f *fallback[R]) verify(ctx context.Context, b *batch[R]) int {
	ctx, span := f.tracer.Start(ctx, "batchverify.fallback", otelTrace.WithAttributes(
		attribute.String("verifier", f.name),
		attribute.Int64("batch.seq", int64(b.seq)),
	))
	defer span.End()

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		backendErrs *multierror.Error
		verified    int
	)
	for i, item := range b.items {
		// cancelled after the batch was closed; its result would be discarded anyway
		if item.resolved() {
			continue
		}
		verified++
		f.scheduled.Inc()
		wg.Add(1)
		f.pool.Submit(func() {
			defer wg.Done()
			result := f.verifyOne(ctx, item)
			if IsBackendError(result) {
				mu.Lock()
				backendErrs = multierror.Append(backendErrs, fmt.Errorf("item %d: %w", i, result))
				mu.Unlock()
			}
			f.deliver(item, result)
		})
	}
	wg.Wait()

	span.SetAttributes(attribute.Int("fallback.verified", verified))
	if err := backendErrs.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend errors during individual verification")
		f.log.Warn().Err(err).
			Uint64("batch_seq", b.seq).
			Int("failed_items", backendErrs.Len()).
			Msg("backend could not verify some requests individually")
	}
	return verified
}

// verifyOne verifies a single item and returns its classified result.
func (f *fallback[R]) verifyOne(ctx context.Context, item *pendingItem[R]) error {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	start := time.Now()
	result := classify(f.backend.VerifyOne(ctx, item.request))
	if IsBackendError(result) && ctx.Err() != nil {
		// the backend gave up because we asked it to
		result = cancelled(ctx)
	}
	f.metrics.FallbackVerified(f.name, resultLabel(result), time.Since(start))
	return result
}

// stop waits for all submitted verifications to finish and releases the worker pool.
func (f *fallback[R]) stop() {
	f.pool.StopWait()
}
