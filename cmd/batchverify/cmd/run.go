package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/onflow/batch-verifier/module"
	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/breaker"
	"github.com/onflow/batch-verifier/module/irrecoverable"
	"github.com/onflow/batch-verifier/module/metrics"
	"github.com/onflow/batch-verifier/module/util"
)

const (
	flagBackend         = "backend"
	flagRequests        = "requests"
	flagInvalidRatio    = "invalid-ratio"
	flagRate            = "rate"
	flagRetries         = "retries"
	flagCacheSize       = "cache-size"
	flagSeed            = "seed"
	flagMetricsPort     = "metrics-port"
	flagBreakerFailures = "breaker-max-failures"
	flagBreakerTimeout  = "breaker-open-timeout"
	flagTracingEndpoint = "tracing-endpoint"
	flagTracingRatio    = "tracing-sample-ratio"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "verify a generated load of requests",
	RunE:  run,
}

func init() {
	flags := runCmd.Flags()
	flags.String(flagBackend, backendSecp256k1, fmt.Sprintf("verification backend, one of %s", strings.Join(backendNames, ", ")))
	flags.Int(flagRequests, 1000, "number of requests to verify")
	flags.Float64(flagInvalidRatio, 0.01, "fraction of requests which are deliberately corrupted")
	flags.Float64(flagRate, 0, "requests submitted per second, 0 for no limit")
	flags.Uint64(flagRetries, 3, "retries of requests the backend could not verify")
	flags.Int(flagCacheSize, 0, "size of the verified-request cache, 0 disables the cache")
	flags.Int64(flagSeed, time.Now().UnixNano(), "seed for choosing corrupted requests")
	flags.Uint(flagMetricsPort, 0, "port of the prometheus /metrics endpoint, 0 disables the endpoint")
	flags.String(flagTracingEndpoint, "", "address of an OTLP gRPC trace collector, empty disables tracing")
	flags.Float64(flagTracingRatio, 0.01, "fraction of batch executions which are traced")

	defaultBreaker := breaker.DefaultConfig()
	flags.Uint32(flagBreakerFailures, defaultBreaker.MaxFailures, "consecutive backend failures which open the circuit breaker")
	flags.Duration(flagBreakerTimeout, defaultBreaker.OpenTimeout, "time the circuit breaker stays open before probing the backend")

	// defaults are the verifier defaults; the name is replaced by the chosen backend
	batchverify.InitializeFlags(flags, "", batchverify.DefaultConfig(""))
}

func run(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(flagLogLevel)
	if err != nil {
		return err
	}
	v, err := newViper(cmd)
	if err != nil {
		return err
	}

	backendName := v.GetString(flagBackend)
	if !slices.Contains(backendNames, backendName) {
		return fmt.Errorf("unknown backend %q, expected one of %s", backendName, strings.Join(backendNames, ", "))
	}
	config, err := batchverify.ConfigFromViper(v, backendName, "")
	if err != nil {
		return err
	}
	params := loadParamsFromViper(v)
	log.Info().
		Str("backend", backendName).
		Int("requests", params.Requests).
		Float64("invalid_ratio", params.InvalidRatio).
		Uint("max_batch_size", config.MaxBatchSize).
		Dur("max_batch_latency", config.MaxBatchLatency).
		Uint("max_concurrent_batches", config.MaxConcurrentBatches).
		Uint("fallback_fanout", config.FallbackFanout).
		Msg("flags")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewBatchVerifierCollector(registry)

	var stopServer func() error
	if port := v.GetUint(flagMetricsPort); port > 0 {
		stopServer, err = startMetricsServer(ctx, log, port, registry)
		if err != nil {
			return err
		}
	}

	var stopTracing func(context.Context) error
	if endpoint := v.GetString(flagTracingEndpoint); endpoint != "" {
		stopTracing, err = setupTracing(ctx, log, endpoint, v.GetFloat64(flagTracingRatio))
		if err != nil {
			return err
		}
	}

	report, runErr := runBackend(ctx, log, collector, backendName, config, params)
	log.Info().EmbedObject(report).Msg("load finished")

	if stopServer != nil {
		runErr = multierr.Append(runErr, stopServer())
	}
	if stopTracing != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runErr = multierr.Append(runErr, stopTracing(flushCtx))
	}
	return runErr
}

func loadParamsFromViper(v *viper.Viper) loadParams {
	return loadParams{
		Requests:     v.GetInt(flagRequests),
		InvalidRatio: v.GetFloat64(flagInvalidRatio),
		Rate:         v.GetFloat64(flagRate),
		Retries:      v.GetUint64(flagRetries),
		CacheSize:    v.GetInt(flagCacheSize),
		Seed:         v.GetInt64(flagSeed),
		Breaker: breaker.Config{
			MaxFailures: v.GetUint32(flagBreakerFailures),
			OpenTimeout: v.GetDuration(flagBreakerTimeout),
			MaxProbes:   breaker.DefaultConfig().MaxProbes,
		},
	}
}

// runBackend runs the load against the backend with the given name.
func runBackend(
	ctx context.Context,
	log zerolog.Logger,
	collector module.BatchVerifierMetrics,
	backendName string,
	config batchverify.Config,
	params loadParams,
) (loadReport, error) {
	switch backendName {
	case backendSecp256k1:
		w, err := secp256k1Workload()
		if err != nil {
			return loadReport{}, err
		}
		return runLoad(ctx, log, collector, w, config, params)
	case backendBLS:
		w, err := blsWorkload()
		if err != nil {
			return loadReport{}, err
		}
		return runLoad(ctx, log, collector, w, config, params)
	case backendKZG:
		w, err := kzgWorkload(params.Seed)
		if err != nil {
			return loadReport{}, err
		}
		return runLoad(ctx, log, collector, w, config, params)
	default:
		return loadReport{}, fmt.Errorf("unknown backend %q", backendName)
	}
}

// startMetricsServer starts the /metrics endpoint. The returned function stops the
// server and returns any error the server threw while running.
func startMetricsServer(ctx context.Context, log zerolog.Logger, port uint, registry *prometheus.Registry) (func() error, error) {
	server := metrics.NewServer(log, port, registry)
	serverCtx, cancel := context.WithCancel(ctx)
	signalerCtx, errChan := irrecoverable.WithSignaler(serverCtx)
	server.Start(signalerCtx)

	select {
	case <-server.Ready():
	case err := <-errChan:
		cancel()
		return nil, fmt.Errorf("could not start metrics server: %w", err)
	}

	return func() error {
		cancel()
		<-server.Done()
		return util.WaitError(errChan, server.Done())
	}, nil
}
