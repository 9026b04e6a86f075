package metrics

import (
	"time"

	"github.com/onflow/batch-verifier/module"
)

type NoopCollector struct{}

var _ module.BatchVerifierMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) RequestSubmitted(verifier string)                                 {}
func (nc *NoopCollector) BatchFlushed(verifier string, trigger string, size int)           {}
func (nc *NoopCollector) BatchVerified(verifier string, outcome string, d time.Duration)   {}
func (nc *NoopCollector) FallbackVerified(verifier string, result string, d time.Duration) {}
func (nc *NoopCollector) RequestResolved(verifier string, result string, d time.Duration)  {}
func (nc *NoopCollector) InFlightBatches(verifier string, count int)                       {}
func (nc *NoopCollector) QueuedBatches(verifier string, count int)                         {}
func (nc *NoopCollector) CacheHit(verifier string)                                         {}
