package verifier

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/component"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/util"
)

// Engine is the service front of a batch verifier. Callers hand it one request at a time
// and either wait for the result (Verify) or receive a handle (Submit). The Engine owns
// the lifecycle of the wrapped verifier: starting the Engine starts the verifier.
//
// Optionally, the Engine remembers the keys of requests which passed verification, and
// answers repeated requests without submitting them again.
type Engine[R any] struct {
	log      zerolog.Logger
	metrics  module.BatchVerifierMetrics
	verifier *batchverify.Verifier[R]

	verified *lru.Cache[string, struct{}] // keys of requests which passed; nil if disabled
	key      func(R) string

	cm *component.ComponentManager
	component.Component
}

// Option configures an Engine.
type Option[R any] func(*Engine[R]) error

// WithVerifiedCache enables the verified-request cache. key must return the same string
// for requests with the same verification outcome, e.g. a hash over all request fields.
// At most size keys are remembered.
func WithVerifiedCache[R any](size int, key func(R) string) Option[R] {
	return func(e *Engine[R]) error {
		cache, err := lru.New[string, struct{}](size)
		if err != nil {
			return fmt.Errorf("could not create verified request cache: %w", err)
		}
		e.verified = cache
		e.key = key
		return nil
	}
}

// New creates the service front for verifier.
func New[R any](
	log zerolog.Logger,
	metrics module.BatchVerifierMetrics,
	verifier *batchverify.Verifier[R],
	opts ...Option[R],
) (*Engine[R], error) {
	e := &Engine[R]{
		log:      log.With().Str("engine", "verifier").Str("verifier", verifier.Name()).Logger(),
		metrics:  metrics,
		verifier: verifier,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	e.cm = component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			<-ctx.Done()
			e.log.Info().Msg("stopping verifier front")
		}).
		Build()
	e.Component = e.cm

	return e, nil
}

// Start starts the wrapped verifier, then the engine.
func (e *Engine[R]) Start(ctx irrecoverable.SignalerContext) {
	e.verifier.Start(ctx)
	e.Component.Start(ctx)
}

// Ready returns a channel which is closed once the engine and its verifier have started.
func (e *Engine[R]) Ready() <-chan struct{} {
	return util.AllReady(e.cm, e.verifier)
}

// Done returns a channel which is closed once the engine and its verifier have stopped.
// All requests submitted through the engine are resolved by then.
func (e *Engine[R]) Done() <-chan struct{} {
	return util.AllDone(e.cm, e.verifier)
}

// Verify submits req and waits for its result. If ctx ends first, the request is
// cancelled and an error wrapping batchverify.ErrCancelled is returned.
// Expected errors during normal operation:
//   - batchverify.VerifyError if the request is invalid
//   - batchverify.BackendError if the backend could not verify the request
//   - batchverify.ErrCancelled if ctx ended or the verifier is shutting down
func (e *Engine[R]) Verify(ctx context.Context, req R) error {
	key, hit := e.lookup(req)
	if hit {
		return nil
	}

	h, err := e.verifier.Submit(req)
	if err != nil {
		return err
	}
	err = h.Wait(ctx)
	if err == nil && e.verified != nil {
		e.verified.Add(key, struct{}{})
	}
	return err
}

// Submit submits req without waiting for its result. A request found in the verified
// cache returns an already resolved handle. Results delivered through handles do not
// populate the cache.
// Expected errors during normal operation:
//   - batchverify.ErrCancelled if the verifier is shutting down
func (e *Engine[R]) Submit(req R) (*batchverify.Handle, error) {
	if _, hit := e.lookup(req); hit {
		return batchverify.ResolvedHandle(nil), nil
	}
	return e.verifier.Submit(req)
}

// VerifyWithRetry verifies req like Verify, and retries as long as the result is a
// BackendError and backoff permits. Invalid requests are never retried.
func (e *Engine[R]) VerifyWithRetry(ctx context.Context, req R, backoff retry.Backoff) error {
	attempts := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := e.Verify(ctx, req)
		if batchverify.IsBackendError(err) {
			e.log.Debug().Err(err).Int("attempt", attempts).Msg("backend could not verify request, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

// Stats returns the counters of the wrapped verifier.
func (e *Engine[R]) Stats() batchverify.Stats {
	return e.verifier.Stats()
}

// lookup returns the cache key of req and whether it is known to be valid.
func (e *Engine[R]) lookup(req R) (string, bool) {
	if e.verified == nil {
		return "", false
	}
	key := e.key(req)
	if e.verified.Contains(key) {
		e.metrics.CacheHit(e.verifier.Name())
		return key, true
	}
	return key, false
}
