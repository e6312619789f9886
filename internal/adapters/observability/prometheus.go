package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink exports retry manager counters. Pass a dedicated Registerer
// in tests to avoid collisions on the default registry.
type PrometheusSink struct {
	executionsStarted   prometheus.Counter
	executionsSucceeded prometheus.Counter
	executionsFailed    prometheus.Counter
	retriesScheduled    prometheus.Counter
	deadLettered        prometheus.Counter
	cacheHits           prometheus.Counter
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusSink{
		executionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "executions_started_total",
			Help:      "Node executions entered into the retry manager.",
		}),
		executionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "executions_succeeded_total",
			Help:      "Node executions that completed successfully.",
		}),
		executionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "executions_failed_total",
			Help:      "Node executions that failed terminally without dead-lettering.",
		}),
		retriesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "retries_scheduled_total",
			Help:      "Retry attempts scheduled after a retryable failure.",
		}),
		deadLettered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "dead_lettered_total",
			Help:      "Node executions moved to the dead-letter queue.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Subsystem: "retry",
			Name:      "idempotency_cache_hits_total",
			Help:      "Executions satisfied from the idempotency cache.",
		}),
	}
}

func (s *PrometheusSink) ExecutionStarted()   { s.executionsStarted.Inc() }
func (s *PrometheusSink) ExecutionSucceeded() { s.executionsSucceeded.Inc() }
func (s *PrometheusSink) ExecutionFailed()    { s.executionsFailed.Inc() }
func (s *PrometheusSink) RetryScheduled()     { s.retriesScheduled.Inc() }
func (s *PrometheusSink) DeadLettered()       { s.deadLettered.Inc() }
func (s *PrometheusSink) CacheHit()           { s.cacheHits.Inc() }
