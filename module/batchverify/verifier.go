package batchverify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/onflow/batch-verifier/engine"
	"github.com/onflow/batch-verifier/engine/common/fifoqueue"
	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/component"
	"github.com/onflow/batch-verifier/module/irrecoverable"
)

const tracerName = "github.com/onflow/batch-verifier/module/batchverify"

// errGracePeriodElapsed is the cancellation cause of requests which were still pending
// when the shutdown grace period ended.
var errGracePeriodElapsed = errors.New("shutdown grace period elapsed")

// Stats is a snapshot of the verifier's counters.
type Stats struct {
	Submitted     uint64 // requests accepted by Submit
	Batches       uint64 // closed batches
	FailedBatches uint64 // batches whose batch verification did not pass
	FallbackItems uint64 // requests verified individually
	Resolved      uint64 // requests which received their terminal result
}

// Verifier accumulates requests into batches, verifies closed batches with the backend
// and delivers a result to every request.
//
// Verifier is a component.Component: closed batches are only verified after Start.
// Requests can be submitted before Start; they are verified once the verifier runs.
// When the verifier's context is cancelled, the open batch is flushed and all pending
// batches are drained within Config.ShutdownGracePeriod. Requests still pending
// afterwards are resolved with ErrCancelled. Submit returns ErrCancelled once shutdown
// has started.
type Verifier[R any] struct {
	*component.ComponentManager
	log      zerolog.Logger
	config   Config
	metrics  module.BatchVerifierMetrics
	backend  Backend[R]
	batcher  BatchBackend[R] // nil if the backend does not support batch verification
	acc      *accumulator[R]
	queue    *fifoqueue.FifoQueue[*batch[R]]
	notifier engine.Notifier
	slots    *semaphore.Weighted
	fallback *fallback[R]
	tracer   otelTrace.Tracer

	inFlight      *atomic.Int64
	submitted     *atomic.Uint64
	batches       *atomic.Uint64
	failedBatches *atomic.Uint64
	resolved      *atomic.Uint64
}

var _ component.Component = (*Verifier[struct{}])(nil)

// Option configures optional dependencies of a Verifier.
type Option func(*options)

type options struct {
	tracerProvider otelTrace.TracerProvider
}

// WithTracerProvider sets the provider of the verifier's tracer.
// By default the global provider is used.
func WithTracerProvider(provider otelTrace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = provider
	}
}

// NewVerifier creates a verifier for the given backend. If the backend implements
// BatchBackend, closed batches are verified with VerifyBatch. Otherwise every request
// is verified with VerifyOne.
// No errors are expected during normal operation. Invalid configurations are reported
// as ConfigurationError.
func NewVerifier[R any](
	log zerolog.Logger,
	metrics module.BatchVerifierMetrics,
	backend Backend[R],
	config Config,
	opts ...Option,
) (*Verifier[R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, NewConfigurationErrorf("batch verifier %q requires a backend", config.Name)
	}
	o := options{tracerProvider: otel.GetTracerProvider()}
	for _, apply := range opts {
		apply(&o)
	}

	v := &Verifier[R]{
		log:           log.With().Str("component", "batch_verifier").Str("verifier", config.Name).Logger(),
		config:        config,
		metrics:       metrics,
		backend:       backend,
		notifier:      engine.NewNotifier(),
		slots:         semaphore.NewWeighted(int64(config.MaxConcurrentBatches)),
		tracer:        o.tracerProvider.Tracer(tracerName),
		inFlight:      atomic.NewInt64(0),
		submitted:     atomic.NewUint64(0),
		batches:       atomic.NewUint64(0),
		failedBatches: atomic.NewUint64(0),
		resolved:      atomic.NewUint64(0),
	}
	if batcher, ok := backend.(BatchBackend[R]); ok {
		v.batcher = batcher
	}

	queue, err := fifoqueue.NewFifoQueue[*batch[R]](
		fifoqueue.WithLengthObserver(func(n int) { metrics.QueuedBatches(config.Name, n) }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create closed batch queue: %w", err)
	}
	v.queue = queue
	v.acc = newAccumulator(config.MaxBatchSize, config.MaxBatchLatency, v.onFlush)
	v.fallback = newFallback(v.log, config.Name, backend, config.FallbackFanout, metrics, v.tracer, v.deliver)

	v.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(v.dispatchLoop).
		Build()

	v.log.Info().
		Bool("batch_capable", v.batcher != nil).
		Uint("max_batch_size", config.MaxBatchSize).
		Dur("max_batch_latency", config.MaxBatchLatency).
		Uint("max_concurrent_batches", config.MaxConcurrentBatches).
		Uint("fallback_fanout", config.FallbackFanout).
		Msg("batch verifier created")

	return v, nil
}

// Submit adds req to the open batch and returns the handle on which its result is
// delivered. Submit never waits for verification.
// Expected errors during normal operation:
//   - ErrCancelled if the verifier is shutting down
func (v *Verifier[R]) Submit(req R) (*Handle, error) {
	item := newPendingItem(req)
	item.handle.cancel = func(cause error) bool {
		return v.cancel(item, cause)
	}
	item.handle.onResolve = func(result error) {
		v.resolved.Inc()
		v.metrics.RequestResolved(v.config.Name, resultLabel(result), time.Since(item.submitted))
	}

	err := v.acc.add(item)
	if err != nil {
		return nil, err
	}
	v.submitted.Inc()
	v.metrics.RequestSubmitted(v.config.Name)
	return item.handle, nil
}

// Stats returns a snapshot of the verifier's counters.
func (v *Verifier[R]) Stats() Stats {
	return Stats{
		Submitted:     v.submitted.Load(),
		Batches:       v.batches.Load(),
		FailedBatches: v.failedBatches.Load(),
		FallbackItems: v.fallback.scheduled.Load(),
		Resolved:      v.resolved.Load(),
	}
}

// Name returns the configured name of the verifier.
func (v *Verifier[R]) Name() string {
	return v.config.Name
}

// onFlush hands a closed batch to the dispatch loop.
// Called by the accumulator while holding its lock.
func (v *Verifier[R]) onFlush(b *batch[R]) {
	v.queue.Push(b)
	v.notifier.Notify()

	v.batches.Inc()
	v.metrics.BatchFlushed(v.config.Name, b.trigger.String(), len(b.items))
	v.log.Debug().
		Uint64("batch_seq", b.seq).
		Int("batch_size", len(b.items)).
		Str("trigger", b.trigger.String()).
		Msg("batch closed")
}

// cancel resolves item with cause. If the item is still in the open batch, it is
// removed so that it never reaches the backend.
func (v *Verifier[R]) cancel(item *pendingItem[R], cause error) bool {
	removed := v.acc.remove(item)
	if !v.deliver(item, cause) {
		return false
	}
	if removed {
		v.log.Debug().Msg("cancelled request removed from open batch")
	}
	return true
}

// deliver resolves item with result. Only the first result delivered for an item
// takes effect. Returns true if item was resolved by this call.
func (v *Verifier[R]) deliver(item *pendingItem[R], result error) bool {
	return item.handle.resolve(result)
}

// dispatchLoop is the single worker routine of the verifier. It hands closed batches
// to execution goroutines, limited to MaxConcurrentBatches at a time, and drains all
// pending work on shutdown.
func (v *Verifier[R]) dispatchLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	// batch execution is detached from ctx so that pending batches can be drained after
	// shutdown started; execCtx is cancelled once the grace period has elapsed
	execCtx, cancelExec := context.WithCancelCause(context.Background())
	defer cancelExec(nil)
	var executing sync.WaitGroup

	ready()
	for {
		select {
		case <-ctx.Done():
			v.shutdown(execCtx, cancelExec, &executing)
			return
		case <-v.notifier.Channel():
			v.dispatchQueued(ctx, execCtx, &executing)
		}
	}
}

// dispatchQueued launches execution of queued batches until the queue is empty or
// ctx ends.
func (v *Verifier[R]) dispatchQueued(ctx context.Context, execCtx context.Context, executing *sync.WaitGroup) {
	for {
		// only this routine pops from the queue, so the head cannot change in between
		if _, ok := v.queue.Front(); !ok {
			return
		}
		if err := v.slots.Acquire(ctx, 1); err != nil {
			// shutting down; the remaining batches are drained by shutdown
			return
		}
		b, _ := v.queue.Pop()
		v.launch(execCtx, b, executing)
	}
}

// launch executes b on its own goroutine. The caller must hold an in-flight slot,
// which is released when execution completes.
func (v *Verifier[R]) launch(ctx context.Context, b *batch[R], executing *sync.WaitGroup) {
	v.metrics.InFlightBatches(v.config.Name, int(v.inFlight.Inc()))
	executing.Go(func() {
		defer func() {
			v.metrics.InFlightBatches(v.config.Name, int(v.inFlight.Dec()))
			v.slots.Release(1)
		}()
		v.execute(ctx, b)
	})
}

// shutdown flushes the open batch, rejects further submissions and drains all closed
// batches. Batches which cannot start within the grace period are cancelled.
func (v *Verifier[R]) shutdown(execCtx context.Context, cancelExec context.CancelCauseFunc, executing *sync.WaitGroup) {
	v.log.Info().Int("queued_batches", v.queue.Len()).Msg("shutting down batch verifier")

	v.acc.close()
	grace := time.AfterFunc(v.config.ShutdownGracePeriod, func() {
		cancelExec(errGracePeriodElapsed)
	})
	defer grace.Stop()

	for {
		b, ok := v.queue.Pop()
		if !ok {
			break
		}
		if execCtx.Err() != nil {
			v.cancelBatch(execCtx, b)
			continue
		}
		if err := v.slots.Acquire(execCtx, 1); err != nil {
			v.cancelBatch(execCtx, b)
			continue
		}
		v.launch(execCtx, b, executing)
	}
	executing.Wait()
	v.fallback.stop()

	stats := v.Stats()
	v.log.Info().
		Uint64("submitted", stats.Submitted).
		Uint64("resolved", stats.Resolved).
		Uint64("batches", stats.Batches).
		Uint64("failed_batches", stats.FailedBatches).
		Msg("batch verifier stopped")
}

// cancelBatch resolves all items of b with ErrCancelled.
func (v *Verifier[R]) cancelBatch(ctx context.Context, b *batch[R]) {
	result := cancelled(ctx)
	for _, item := range b.items {
		v.deliver(item, result)
	}
}

// execute verifies a closed batch and delivers a result to each of its items.
func (v *Verifier[R]) execute(ctx context.Context, b *batch[R]) {
	live := b.live()
	if live == 0 {
		v.log.Debug().Uint64("batch_seq", b.seq).Msg("skipping batch without pending requests")
		return
	}
	if ctx.Err() != nil {
		v.cancelBatch(ctx, b)
		return
	}

	ctx, span := v.tracer.Start(ctx, "batchverify.execute", otelTrace.WithAttributes(
		attribute.String("verifier", v.config.Name),
		attribute.Int64("batch.seq", int64(b.seq)),
		attribute.Int64("batch.age_ms", time.Since(b.opened).Milliseconds()),
		attribute.Int("batch.size", len(b.items)),
		attribute.Int("batch.live", live),
		attribute.String("batch.trigger", b.trigger.String()),
	))
	defer span.End()

	if v.batcher == nil || uint(len(b.items)) < v.config.MinBatchSize {
		v.fallback.verify(ctx, b)
		return
	}

	start := time.Now()
	outcome, err := v.batcher.VerifyBatch(ctx, b.requests())
	duration := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		v.metrics.BatchVerified(v.config.Name, "error", duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch verification aborted")
		v.cancelBatch(ctx, b)
	case err != nil:
		v.metrics.BatchVerified(v.config.Name, "error", duration)
		span.RecordError(err)
		v.failedBatches.Inc()
		v.log.Warn().Err(err).
			Uint64("batch_seq", b.seq).
			Int("batch_size", len(b.items)).
			Msg("batch verification errored, verifying requests individually")
		v.fallback.verify(ctx, b)
	case outcome.Passed():
		v.metrics.BatchVerified(v.config.Name, "passed", duration)
		for _, item := range b.items {
			v.deliver(item, nil)
		}
	default:
		v.metrics.BatchVerified(v.config.Name, "failed", duration)
		span.SetAttributes(attribute.String("batch.failure", outcome.Reason().Error()))
		v.failedBatches.Inc()
		v.log.Debug().
			Uint64("batch_seq", b.seq).
			Int("batch_size", len(b.items)).
			Str("reason", outcome.Reason().Error()).
			Msg("batch verification failed, verifying requests individually")
		v.fallback.verify(ctx, b)
	}
}

