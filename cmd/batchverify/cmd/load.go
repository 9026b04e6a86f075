package cmd

import (
	"context"
	"errors"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/onflow/batch-verifier/engine/verifier"
	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/breaker"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/util"
)

// loadParams describes one load run.
type loadParams struct {
	Requests     int
	InvalidRatio float64
	// Rate is the number of requests submitted per second. Zero submits without limit.
	Rate      float64
	Retries   uint64
	CacheSize int
	Seed      int64
	Breaker   breaker.Config
}

// loadReport summarizes the results of a load run.
type loadReport struct {
	Passed        int
	Failed        int
	BackendErrors int
	Cancelled     int
	Duration      time.Duration
	Stats         batchverify.Stats
	// request latency from submission to result, including retries
	LatencyP50 time.Duration
	LatencyP99 time.Duration
	LatencyMax time.Duration
}

func (r loadReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("passed", r.Passed).
		Int("failed", r.Failed).
		Int("backend_errors", r.BackendErrors).
		Int("cancelled", r.Cancelled).
		Dur("duration", r.Duration).
		Dur("latency_p50", r.LatencyP50).
		Dur("latency_p99", r.LatencyP99).
		Dur("latency_max", r.LatencyMax).
		Uint64("batches", r.Stats.Batches).
		Uint64("failed_batches", r.Stats.FailedBatches).
		Uint64("fallback_items", r.Stats.FallbackItems)
}

// outcome is the expected and observed result of one request.
type outcome struct {
	index   int
	corrupt bool
	err     error
	latency time.Duration
}

// runLoad generates params.Requests requests, verifies them through a verifier front and
// checks every corrupted request failed and every valid one passed. Mismatches are
// returned as a combined error together with the report.
func runLoad[R any](
	ctx context.Context,
	log zerolog.Logger,
	metrics module.BatchVerifierMetrics,
	w *workload[R],
	config batchverify.Config,
	params loadParams,
) (loadReport, error) {
	rng := mrand.New(mrand.NewSource(params.Seed))
	requests := make([]R, params.Requests)
	corrupt := make([]bool, params.Requests)
	for i := range requests {
		corrupt[i] = rng.Float64() < params.InvalidRatio
		req, err := w.generate(i, corrupt[i])
		if err != nil {
			return loadReport{}, fmt.Errorf("could not generate request %d: %w", i, err)
		}
		requests[i] = req
	}
	log.Info().Int("requests", len(requests)).Msg("requests generated")

	backend := breaker.Wrap(log, config.Name, w.backend, params.Breaker)
	core, err := batchverify.NewVerifier(log, metrics, backend, config)
	if err != nil {
		return loadReport{}, fmt.Errorf("could not create verifier: %w", err)
	}
	var opts []verifier.Option[R]
	if params.CacheSize > 0 {
		opts = append(opts, verifier.WithVerifiedCache(params.CacheSize, w.key))
	}
	front, err := verifier.New(log, metrics, core, opts...)
	if err != nil {
		return loadReport{}, fmt.Errorf("could not create verifier front: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(runCtx)
	front.Start(signalerCtx)
	if err := util.WaitClosed(ctx, front.Ready()); err != nil {
		cancel()
		<-front.Done()
		return loadReport{}, fmt.Errorf("verifier did not start: %w", err)
	}

	limit := rate.Inf
	if params.Rate > 0 {
		limit = rate.Limit(params.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)
	progress := util.LogProgress(log, util.DefaultLogProgressConfig("verifying requests", len(requests)))

	start := time.Now()
	outcomes := make(chan outcome, len(requests))
	var wg sync.WaitGroup
	var submitErr error
	for i, req := range requests {
		if err := limiter.Wait(ctx); err != nil {
			submitErr = fmt.Errorf("submission interrupted after %d requests: %w", i, err)
			break
		}
		wg.Go(func() {
			submitted := time.Now()
			err := front.VerifyWithRetry(ctx, req, retryBackoff(params.Retries))
			outcomes <- outcome{index: i, corrupt: corrupt[i], err: err, latency: time.Since(submitted)}
			progress(1)
		})
	}
	wg.Wait()
	close(outcomes)

	report := loadReport{Duration: time.Since(start)}
	checkErr := submitErr
	latencies := make([]float64, 0, len(requests))
	for o := range outcomes {
		latencies = append(latencies, float64(o.latency))
		switch {
		case o.err == nil:
			report.Passed++
			if o.corrupt {
				checkErr = multierr.Append(checkErr, fmt.Errorf("corrupted request %d passed verification", o.index))
			}
		case batchverify.IsVerifyError(o.err):
			report.Failed++
			if !o.corrupt {
				checkErr = multierr.Append(checkErr, fmt.Errorf("valid request %d failed verification: %w", o.index, o.err))
			}
		case batchverify.IsBackendError(o.err):
			report.BackendErrors++
			checkErr = multierr.Append(checkErr, fmt.Errorf("request %d: %w", o.index, o.err))
		case errors.Is(o.err, batchverify.ErrCancelled):
			report.Cancelled++
		default:
			checkErr = multierr.Append(checkErr, fmt.Errorf("request %d: unexpected error: %w", o.index, o.err))
		}
	}

	report.LatencyP50, report.LatencyP99, report.LatencyMax = latencySummary(latencies)

	cancel()
	<-front.Done()
	report.Stats = front.Stats()

	select {
	case err := <-errChan:
		checkErr = multierr.Append(checkErr, fmt.Errorf("verifier failed: %w", err))
	default:
	}
	return report, checkErr
}

// retryBackoff returns the backoff for requests the backend could not verify: at most
// retries retries, starting 10ms apart and doubling each time.
func retryBackoff(retries uint64) retry.Backoff {
	return retry.WithMaxRetries(retries, retry.NewExponential(10*time.Millisecond))
}

// latencySummary returns the median, 99th percentile and maximum of latencies, which are
// durations in nanoseconds. All values are zero if there are no latencies.
func latencySummary(latencies []float64) (p50, p99, maxLatency time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	// errors are only returned for empty input
	median, _ := stats.Median(latencies)
	high, _ := stats.PercentileNearestRank(latencies, 99)
	largest, _ := stats.Max(latencies)
	return time.Duration(median), time.Duration(high), time.Duration(largest)
}
