package domain

import "sync/atomic"

type RetryCounters struct {
	ExecutionsStarted   int64 `json:"executions_started"`
	ExecutionsSucceeded int64 `json:"executions_succeeded"`
	ExecutionsFailed    int64 `json:"executions_failed"`
	RetriesAttempted    int64 `json:"retries_attempted"`
	DeadLettered        int64 `json:"dead_lettered"`
	CacheHits           int64 `json:"cache_hits"`
	DLQReplays          int64 `json:"dlq_replays"`
}

func NewRetryCounters() *RetryCounters {
	return &RetryCounters{}
}

func (c *RetryCounters) IncExecutionsStarted()   { atomic.AddInt64(&c.ExecutionsStarted, 1) }
func (c *RetryCounters) IncExecutionsSucceeded() { atomic.AddInt64(&c.ExecutionsSucceeded, 1) }
func (c *RetryCounters) IncExecutionsFailed()    { atomic.AddInt64(&c.ExecutionsFailed, 1) }
func (c *RetryCounters) IncRetriesAttempted()    { atomic.AddInt64(&c.RetriesAttempted, 1) }
func (c *RetryCounters) IncDeadLettered()        { atomic.AddInt64(&c.DeadLettered, 1) }
func (c *RetryCounters) IncCacheHits()           { atomic.AddInt64(&c.CacheHits, 1) }
func (c *RetryCounters) IncDLQReplays()          { atomic.AddInt64(&c.DLQReplays, 1) }

func (c *RetryCounters) Snapshot() RetryCounters {
	return RetryCounters{
		ExecutionsStarted:   atomic.LoadInt64(&c.ExecutionsStarted),
		ExecutionsSucceeded: atomic.LoadInt64(&c.ExecutionsSucceeded),
		ExecutionsFailed:    atomic.LoadInt64(&c.ExecutionsFailed),
		RetriesAttempted:    atomic.LoadInt64(&c.RetriesAttempted),
		DeadLettered:        atomic.LoadInt64(&c.DeadLettered),
		CacheHits:           atomic.LoadInt64(&c.CacheHits),
		DLQReplays:          atomic.LoadInt64(&c.DLQReplays),
	}
}

// SuccessRatio is succeeded over all terminal outcomes; 0 when nothing has
// finished yet.
func (c *RetryCounters) SuccessRatio() float64 {
	snap := c.Snapshot()
	terminal := snap.ExecutionsSucceeded + snap.ExecutionsFailed + snap.DeadLettered
	if terminal == 0 {
		return 0
	}
	return float64(snap.ExecutionsSucceeded) / float64(terminal)
}
