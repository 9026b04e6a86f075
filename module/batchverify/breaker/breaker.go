// Package breaker guards a verification backend with a circuit breaker. After repeated
// backend failures the breaker opens and requests fail fast with a BackendError instead
// of queueing on a backend which is known to be unavailable, e.g. a remote signer or
// an accelerator.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/onflow/batch-verifier/module/batchverify"
)

// Config configures the circuit breaker.
type Config struct {
	// MaxFailures is the number of consecutive backend failures which opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing the backend again.
	OpenTimeout time.Duration
	// MaxProbes is the number of requests let through while probing.
	MaxProbes uint32
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		OpenTimeout: 10 * time.Second,
		MaxProbes:   1,
	}
}

// Backend decorates a single verification backend with a circuit breaker.
type Backend[R any] struct {
	backend batchverify.Backend[R]
	cb      *gobreaker.CircuitBreaker
}

// BatchBackend decorates a batch-capable backend with a circuit breaker. Single and
// batch verifications share one breaker.
type BatchBackend[R any] struct {
	*Backend[R]
	batcher batchverify.BatchBackend[R]
}

var (
	_ batchverify.Backend[any]      = (*Backend[any])(nil)
	_ batchverify.BatchBackend[any] = (*BatchBackend[any])(nil)
)

// Wrap returns backend guarded by a circuit breaker named name. If backend implements
// batchverify.BatchBackend, so does the returned backend.
//
// Only errors which are not VerifyErrors count as failures: an invalid request says
// nothing about the health of the backend.
func Wrap[R any](log zerolog.Logger, name string, backend batchverify.Backend[R], config Config) batchverify.Backend[R] {
	log = log.With().Str("component", "verification_breaker").Str("verifier", name).Logger()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxProbes,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("verification backend circuit breaker changed state")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || batchverify.IsVerifyError(err)
		},
	})

	b := &Backend[R]{backend: backend, cb: cb}
	if batcher, ok := backend.(batchverify.BatchBackend[R]); ok {
		return &BatchBackend[R]{Backend: b, batcher: batcher}
	}
	return b
}

// VerifyOne verifies req unless the breaker is open.
func (b *Backend[R]) VerifyOne(ctx context.Context, req R) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.backend.VerifyOne(ctx, req)
	})
	return breakerError(err)
}

// VerifyBatch verifies reqs unless the breaker is open. A failed outcome is not a
// backend failure.
func (b *BatchBackend[R]) VerifyBatch(ctx context.Context, reqs []R) (batchverify.BatchOutcome, error) {
	outcome, err := b.cb.Execute(func() (interface{}, error) {
		return b.batcher.VerifyBatch(ctx, reqs)
	})
	if err != nil {
		return batchverify.BatchOutcome{}, breakerError(err)
	}
	return outcome.(batchverify.BatchOutcome), nil
}

// State returns the current state of the breaker.
func (b *Backend[R]) State() gobreaker.State {
	return b.cb.State()
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return batchverify.NewBackendError(err)
	}
	return err
}
