package util

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// LogProgressFunc adds to the progress. It can be called concurrently; non-positive values are ignored.
type LogProgressFunc func(add int)

type LogProgressConfig struct {
	// Message is logged with every progress line.
	Message string
	// Total is the progress value which counts as 100%.
	Total int
	// Ticks is the number of lines logged between 0% and 100%, both included.
	// Values below 2 are raised to 2. Ticks closer together than one unit of progress are merged.
	Ticks int
}

// DefaultLogProgressConfig logs every 10%.
func DefaultLogProgressConfig(message string, total int) LogProgressConfig {
	return LogProgressConfig{
		Message: message,
		Total:   total,
		Ticks:   11,
	}
}

// LogProgress returns a function which accumulates progress and logs a line each time
// the accumulated value crosses one of the configured ticks. The 0% line is logged immediately.
func LogProgress(log zerolog.Logger, config LogProgressConfig) LogProgressFunc {
	start := time.Now()
	total := uint64(max(config.Total, 0))
	steps := uint64(max(config.Ticks, 2) - 1)

	var thresholds []uint64
	for k := uint64(1); k <= steps; k++ {
		th := total * k / steps
		if th > 0 && (len(thresholds) == 0 || thresholds[len(thresholds)-1] != th) {
			thresholds = append(thresholds, th)
		}
	}

	var mu sync.Mutex
	logAt := func(current uint64) {
		mu.Lock()
		defer mu.Unlock()

		percent := float64(100)
		if total > 0 {
			percent = float64(current) / float64(total) * 100
		}
		log.Info().
			Uint64("current", current).
			Uint64("total", total).
			Float64("percent", percent).
			Dur("elapsed", time.Since(start)).
			Msg(config.Message)
	}
	logAt(0)

	var current atomic.Uint64
	return func(add int) {
		if add <= 0 {
			return
		}
		now := current.Add(uint64(add))
		before := now - uint64(add)

		// first threshold strictly above the previous value
		i, found := slices.BinarySearch(thresholds, before)
		if found {
			i++
		}
		for ; i < len(thresholds) && thresholds[i] <= now; i++ {
			logAt(thresholds[i])
		}
	}
}
