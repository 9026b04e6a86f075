package batchverify

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultMaxBatchSize is the default number of requests after which a batch is closed.
	DefaultMaxBatchSize = 64
	// DefaultMaxBatchLatency is the default time a request may wait in an open batch.
	DefaultMaxBatchLatency = 100 * time.Millisecond
	// DefaultMaxConcurrentBatches is the default number of batches executing at once.
	DefaultMaxConcurrentBatches = 1
	// DefaultShutdownGracePeriod bounds how long pending batches are drained on shutdown.
	DefaultShutdownGracePeriod = 5 * time.Second

	// MaxBatchSizeLimit is the largest accepted MaxBatchSize and MinBatchSize.
	// Must match the lte bounds in the Config validate tags.
	MaxBatchSizeLimit = 1 << 20
	// MaxConcurrencyLimit is the largest accepted MaxConcurrentBatches and FallbackFanout.
	// Must match the lte bounds in the Config validate tags.
	MaxConcurrencyLimit = 1 << 16
)

// Config configures one Verifier instance.
type Config struct {
	// Name identifies the verifier in logs and metrics, e.g. "bls" or "kzg".
	Name string `validate:"required"`
	// MaxBatchSize closes the open batch as soon as it holds this many requests.
	MaxBatchSize uint `validate:"gt=0,lte=1048576"`
	// MaxBatchLatency closes the open batch this long after its first request arrived.
	MaxBatchLatency time.Duration `validate:"gt=0"`
	// MaxConcurrentBatches bounds the number of batches verified at the same time.
	// Values above one only help backends which can verify batches concurrently.
	MaxConcurrentBatches uint `validate:"gt=0,lte=65536"`
	// FallbackFanout bounds the number of concurrent single verifications used to
	// resolve failed batches.
	FallbackFanout uint `validate:"gt=0,lte=65536"`
	// MinBatchSize: closed batches with fewer requests skip the batch operation and are
	// verified individually. Zero always uses the batch operation.
	MinBatchSize uint `validate:"lte=1048576,ltefield=MaxBatchSize"`
	// ShutdownGracePeriod bounds how long queued and in-flight batches are drained on
	// shutdown. Requests unresolved afterwards are resolved with ErrCancelled.
	ShutdownGracePeriod time.Duration `validate:"gte=0"`
}

// DefaultConfig returns the default configuration for a verifier with the given name.
func DefaultConfig(name string) Config {
	return Config{
		Name:                 name,
		MaxBatchSize:         DefaultMaxBatchSize,
		MaxBatchLatency:      DefaultMaxBatchLatency,
		MaxConcurrentBatches: DefaultMaxConcurrentBatches,
		FallbackFanout:       uint(runtime.NumCPU()),
		MinBatchSize:         0,
		ShutdownGracePeriod:  DefaultShutdownGracePeriod,
	}
}

// Validate checks the configuration. All returned errors are ConfigurationErrors.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return NewConfigurationError(fmt.Errorf("invalid batch verifier config %q: %w", c.Name, err))
	}
	return nil
}

const (
	// All constant strings are used for CLI flag names and corresponding keys for config values.
	// Flags are prefixed with the verifier name, e.g. "bls-max-batch-size".
	maxBatchSize         = "max-batch-size"
	maxBatchLatency      = "max-batch-latency"
	maxConcurrentBatches = "max-concurrent-batches"
	fallbackFanout       = "fallback-fanout"
	minBatchSize         = "min-batch-size"
	shutdownGracePeriod  = "shutdown-grace-period"
)

// AllFlagNames returns the flag names registered by InitializeFlags for the given prefix.
func AllFlagNames(prefix string) []string {
	names := []string{maxBatchSize, maxBatchLatency, maxConcurrentBatches, fallbackFanout, minBatchSize, shutdownGracePeriod}
	for i, name := range names {
		names[i] = flagName(prefix, name)
	}
	return names
}

// InitializeFlags registers the verifier flags on the provided pflag set, using config
// for the default values.
func InitializeFlags(flags *pflag.FlagSet, prefix string, config Config) {
	flags.Uint(flagName(prefix, maxBatchSize), config.MaxBatchSize, "number of requests after which an open batch is closed")
	flags.Duration(flagName(prefix, maxBatchLatency), config.MaxBatchLatency, "maximum time a request waits in an open batch")
	flags.Uint(flagName(prefix, maxConcurrentBatches), config.MaxConcurrentBatches, "maximum number of batches verified concurrently")
	flags.Uint(flagName(prefix, fallbackFanout), config.FallbackFanout, "maximum number of concurrent individual verifications after a batch failure")
	flags.Uint(flagName(prefix, minBatchSize), config.MinBatchSize, "batches smaller than this are verified individually")
	flags.Duration(flagName(prefix, shutdownGracePeriod), config.ShutdownGracePeriod, "time allowed to drain pending batches on shutdown")
}

// ConfigFromViper reads the verifier configuration registered by InitializeFlags from v.
// The returned config is validated.
func ConfigFromViper(v *viper.Viper, name string, prefix string) (Config, error) {
	config := Config{
		Name:                 name,
		MaxBatchSize:         v.GetUint(flagName(prefix, maxBatchSize)),
		MaxBatchLatency:      v.GetDuration(flagName(prefix, maxBatchLatency)),
		MaxConcurrentBatches: v.GetUint(flagName(prefix, maxConcurrentBatches)),
		FallbackFanout:       v.GetUint(flagName(prefix, fallbackFanout)),
		MinBatchSize:         v.GetUint(flagName(prefix, minBatchSize)),
		ShutdownGracePeriod:  v.GetDuration(flagName(prefix, shutdownGracePeriod)),
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func flagName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}
