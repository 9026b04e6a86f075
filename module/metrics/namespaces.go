package metrics

// Prometheus metric namespaces
const (
	namespaceVerifier = "batch_verifier"
)

// Prometheus metric subsystems
const (
	subsystemAccumulator = "accumulator"
	subsystemWorker      = "worker"
	subsystemFallback    = "fallback"
	subsystemFront       = "front"
)
