package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
	"github.com/loomhq/loom/internal/xjson"
)

const claimPollInterval = 100 * time.Millisecond

// Manager wraps node executors with retry, idempotent result caching and
// dead-letter escalation, persisting all state through a ports.Store.
type Manager struct {
	store         ports.Store
	logger        *slog.Logger
	metrics       ports.MetricsSink
	counters      *domain.RetryCounters
	defaultPolicy domain.RetryPolicy
	executionTTL  time.Duration
	cacheTTL      time.Duration
	claimTTL      time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	// sleep and now are swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewManager(store ports.Store, cfg domain.RetryConfig, logger *slog.Logger, metrics ports.MetricsSink) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &Manager{
		store:         store,
		logger:        logger.With("component", "retry"),
		metrics:       metrics,
		counters:      domain.NewRetryCounters(),
		defaultPolicy: cfg.Policy(),
		executionTTL:  cfg.ExecutionTTL.Std(),
		cacheTTL:      cfg.CacheTTL.Std(),
		claimTTL:      cfg.ClaimTTL.Std(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:         sleepContext,
		now:           time.Now,
	}
}

func (m *Manager) ExecuteWithRetry(ctx context.Context, nodeID, executionID string, exec ports.Executor, opts ports.ExecuteOptions) (interface{}, error) {
	policy := m.defaultPolicy
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if opts.IdempotencyKey != "" {
		cached, hit, err := m.lookupCache(opts.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if hit {
			m.counters.IncCacheHits()
			m.metrics.CacheHit()
			m.logger.Debug("idempotency cache hit", "key", opts.IdempotencyKey, "node_id", nodeID)
			return cached, nil
		}
		cached, hit, err = m.claimKey(ctx, opts.IdempotencyKey, executionID, nodeID)
		if err != nil {
			return nil, err
		}
		if hit {
			m.counters.IncCacheHits()
			m.metrics.CacheHit()
			return cached, nil
		}
	}

	record, err := m.loadOrCreateExecution(executionID, nodeID, policy, opts)
	if err != nil {
		return nil, err
	}

	m.counters.IncExecutionsStarted()
	m.metrics.ExecutionStarted()

	for {
		attemptNo := record.AttemptCount() + 1
		result, execErr := exec(ctx)
		if execErr == nil {
			return m.finishSuccess(record, result, opts, attemptNo)
		}

		class := classifyError(execErr)
		attempt := domain.RetryAttempt{
			Number:    attemptNo,
			Timestamp: m.now(),
			Error:     execErr.Error(),
		}
		record.LastError = execErr.Error()

		if !policy.IsRetryable(class) {
			record.Attempts = append(record.Attempts, attempt)
			return nil, m.finishFailed(record, class, execErr, "non-retryable error", opts)
		}

		if attemptNo >= policy.MaxAttempts {
			record.Attempts = append(record.Attempts, attempt)
			return nil, m.finishDeadLetter(record, class, execErr, opts)
		}

		delay := m.nextDelay(policy, attemptNo)
		next := m.now().Add(delay)
		attempt.NextRetryAt = &next
		record.Attempts = append(record.Attempts, attempt)
		record.Status = domain.ExecutionStatusRetrying
		record.UpdatedAt = m.now()
		if err := m.saveExecution(record); err != nil {
			return nil, err
		}

		m.counters.IncRetriesAttempted()
		m.metrics.RetryScheduled()
		m.logger.Info("retry scheduled",
			"execution_id", record.ExecutionID,
			"node_id", record.NodeID,
			"attempt", attemptNo,
			"class", string(class),
			"delay", delay)

		if err := m.sleep(ctx, delay); err != nil {
			record.Status = domain.ExecutionStatusFailed
			record.LastError = err.Error()
			record.UpdatedAt = m.now()
			if saveErr := m.saveExecution(record); saveErr != nil {
				m.logger.Error("failed to persist cancelled execution", "error", saveErr)
			}
			m.counters.IncExecutionsFailed()
			m.metrics.ExecutionFailed()
			m.releaseClaim(opts.IdempotencyKey)
			return nil, err
		}
	}
}

func (m *Manager) finishSuccess(record *domain.RetryableExecution, result interface{}, opts ports.ExecuteOptions, attemptNo int) (interface{}, error) {
	record.Status = domain.ExecutionStatusSucceeded
	record.UpdatedAt = m.now()
	if err := m.saveExecution(record); err != nil {
		return nil, err
	}

	m.counters.IncExecutionsSucceeded()
	m.metrics.ExecutionSucceeded()

	if opts.IdempotencyKey != "" {
		if err := m.cacheResult(opts.IdempotencyKey, record, result); err != nil {
			m.logger.Warn("failed to cache idempotent result", "key", opts.IdempotencyKey, "error", err)
		}
		m.releaseClaim(opts.IdempotencyKey)
	}

	if attemptNo > 1 {
		m.logger.Info("execution recovered after retries",
			"execution_id", record.ExecutionID,
			"node_id", record.NodeID,
			"attempts", attemptNo)
	}
	return result, nil
}

func (m *Manager) finishFailed(record *domain.RetryableExecution, class domain.ErrorClass, cause error, reason string, opts ports.ExecuteOptions) error {
	record.Status = domain.ExecutionStatusFailed
	record.UpdatedAt = m.now()
	if err := m.saveExecution(record); err != nil {
		return err
	}

	m.counters.IncExecutionsFailed()
	m.metrics.ExecutionFailed()
	m.releaseClaim(opts.IdempotencyKey)

	m.logger.Warn("execution failed",
		"execution_id", record.ExecutionID,
		"node_id", record.NodeID,
		"reason", reason,
		"class", string(class))

	return &domain.ExecutionError{
		Class:       class,
		NodeID:      record.NodeID,
		ExecutionID: record.ExecutionID,
		Attempts:    record.AttemptCount(),
		Err:         cause,
	}
}

func (m *Manager) finishDeadLetter(record *domain.RetryableExecution, class domain.ErrorClass, cause error, opts ports.ExecuteOptions) error {
	record.Status = domain.ExecutionStatusDLQ
	record.UpdatedAt = m.now()
	if err := m.saveExecution(record); err != nil {
		return err
	}

	item := domain.DeadLetterItem{
		ID:          ulid.Make().String(),
		ExecutionID: record.ExecutionID,
		NodeID:      record.NodeID,
		NodeType:    record.NodeType,
		Reason:      cause.Error(),
		Attempts:    record.AttemptCount(),
		Timestamp:   m.now(),
	}
	data, err := item.ToBytes()
	if err != nil {
		return err
	}
	if err := m.store.Put(domain.DeadLetterKey(item.ID), data); err != nil {
		return err
	}

	m.counters.IncDeadLettered()
	m.metrics.DeadLettered()
	m.releaseClaim(opts.IdempotencyKey)

	m.logger.Error("execution dead-lettered",
		"execution_id", record.ExecutionID,
		"node_id", record.NodeID,
		"attempts", record.AttemptCount(),
		"class", string(class))

	return &domain.ExecutionError{
		Class:       class,
		NodeID:      record.NodeID,
		ExecutionID: record.ExecutionID,
		Attempts:    record.AttemptCount(),
		Err:         cause,
	}
}

func (m *Manager) GetRetryStatus(executionID, nodeID string) (*domain.RetryableExecution, error) {
	data, exists, err := m.store.Get(domain.ExecutionKey(executionID, nodeID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return domain.RetryableExecutionFromBytes(data)
}

func (m *Manager) GetDLQItems() ([]domain.DeadLetterItem, error) {
	kvs, err := m.store.ListByPrefix(domain.DeadLetterPrefix)
	if err != nil {
		return nil, err
	}
	items := make([]domain.DeadLetterItem, 0, len(kvs))
	for _, kv := range kvs {
		item, err := domain.DeadLetterItemFromBytes(kv.Value)
		if err != nil {
			m.logger.Warn("skipping undecodable dead-letter item", "key", kv.Key, "error", err)
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// ReplayFromDLQ clears a dead-lettered execution's retry history so the next
// ExecuteWithRetry call runs a fresh cycle, and removes its queue items.
func (m *Manager) ReplayFromDLQ(executionID, nodeID string) error {
	record, err := m.GetRetryStatus(executionID, nodeID)
	if err != nil {
		return err
	}
	if record.Status != domain.ExecutionStatusDLQ {
		return fmt.Errorf("%w: execution %s node %s has status %s",
			domain.ErrNotDeadLettered, executionID, nodeID, record.Status)
	}

	record.ResetForReplay()
	if err := m.saveExecution(record); err != nil {
		return err
	}

	kvs, err := m.store.ListByPrefix(domain.DeadLetterPrefix)
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		item, err := domain.DeadLetterItemFromBytes(kv.Value)
		if err != nil {
			continue
		}
		if item.ExecutionID == executionID && item.NodeID == nodeID {
			if err := m.store.Delete(kv.Key); err != nil {
				return err
			}
		}
	}

	m.counters.IncDLQReplays()
	m.logger.Info("execution queued for replay", "execution_id", executionID, "node_id", nodeID)
	return nil
}

// Cleanup drops expired idempotency entries and claims and asks the store to
// reclaim anything past its TTL.
func (m *Manager) Cleanup() (int, error) {
	removed := 0

	for _, prefix := range []string{domain.IdempotencyPrefix, domain.ClaimPrefix} {
		kvs, err := m.store.ListByPrefix(prefix)
		if err != nil {
			return removed, err
		}
		for _, kv := range kvs {
			if kv.ExpiresAt != nil && m.now().After(*kv.ExpiresAt) {
				if err := m.store.Delete(kv.Key); err != nil {
					return removed, err
				}
				removed++
			}
		}
	}

	cleaned, err := m.store.CleanExpired()
	if err != nil {
		return removed, err
	}
	removed += cleaned

	if removed > 0 {
		m.logger.Debug("cleanup pass complete", "removed", removed)
	}
	return removed, nil
}

func (m *Manager) GetStats() (domain.RetryStats, error) {
	var stats domain.RetryStats

	kvs, err := m.store.ListByPrefix(domain.ExecutionPrefix)
	if err != nil {
		return stats, err
	}
	for _, kv := range kvs {
		record, err := domain.RetryableExecutionFromBytes(kv.Value)
		if err != nil {
			continue
		}
		if !record.IsTerminal() {
			stats.ActiveExecutions++
		}
	}

	cached, err := m.store.CountPrefix(domain.IdempotencyPrefix)
	if err != nil {
		return stats, err
	}
	stats.CachedKeys = cached

	dead, err := m.store.CountPrefix(domain.DeadLetterPrefix)
	if err != nil {
		return stats, err
	}
	stats.DeadLettered = dead

	stats.SuccessRatio = m.counters.SuccessRatio()
	return stats, nil
}

func (m *Manager) Counters() domain.RetryCounters {
	return m.counters.Snapshot()
}

func (m *Manager) lookupCache(key string) (interface{}, bool, error) {
	data, exists, err := m.store.Get(domain.IdempotencyKey(key))
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	entry, err := domain.IdempotencyEntryFromBytes(data)
	if err != nil {
		return nil, false, err
	}
	if entry.IsExpired() {
		return nil, false, nil
	}
	var result interface{}
	if len(entry.Result) > 0 {
		if err := xjson.Unmarshal(entry.Result, &result); err != nil {
			return nil, false, err
		}
	}
	return result, true, nil
}

// claimKey marks the idempotency key as in flight. When another execution
// already holds an unexpired claim, it polls the cache until that execution
// publishes a result, abandons its claim, or the context is cancelled.
func (m *Manager) claimKey(ctx context.Context, key, executionID, nodeID string) (interface{}, bool, error) {
	for {
		data, exists, err := m.store.Get(domain.ClaimKey(key))
		if err != nil {
			return nil, false, err
		}
		if exists {
			claim, err := domain.ClaimEntryFromBytes(data)
			if err == nil && !claim.IsExpired() && claim.ExecutionID != executionID {
				if err := m.sleep(ctx, claimPollInterval); err != nil {
					return nil, false, err
				}
				cached, hit, err := m.lookupCache(key)
				if err != nil || hit {
					return cached, hit, err
				}
				continue
			}
		}

		claim := domain.NewClaimEntry(key, executionID, nodeID, m.claimTTL)
		data, err = claim.ToBytes()
		if err != nil {
			return nil, false, err
		}
		if err := m.store.PutWithTTL(domain.ClaimKey(key), data, m.claimTTL); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
}

func (m *Manager) releaseClaim(key string) {
	if key == "" {
		return
	}
	if err := m.store.Delete(domain.ClaimKey(key)); err != nil {
		m.logger.Warn("failed to release idempotency claim", "key", key, "error", err)
	}
}

func (m *Manager) cacheResult(key string, record *domain.RetryableExecution, result interface{}) error {
	raw, err := xjson.Marshal(result)
	if err != nil {
		return err
	}
	entry := domain.IdempotencyEntry{
		Key:         key,
		NodeID:      record.NodeID,
		ExecutionID: record.ExecutionID,
		Result:      raw,
		CreatedAt:   m.now(),
		ExpiresAt:   m.now().Add(m.cacheTTL),
	}
	data, err := entry.ToBytes()
	if err != nil {
		return err
	}
	return m.store.PutWithTTL(domain.IdempotencyKey(key), data, m.cacheTTL)
}

func (m *Manager) loadOrCreateExecution(executionID, nodeID string, policy domain.RetryPolicy, opts ports.ExecuteOptions) (*domain.RetryableExecution, error) {
	data, exists, err := m.store.Get(domain.ExecutionKey(executionID, nodeID))
	if err != nil {
		return nil, err
	}
	if exists {
		record, err := domain.RetryableExecutionFromBytes(data)
		if err == nil && !record.IsTerminal() {
			record.Policy = policy
			return record, nil
		}
	}

	record := domain.NewRetryableExecution(executionID, nodeID, policy)
	record.NodeType = opts.NodeType
	record.IdempotencyKey = opts.IdempotencyKey
	return record, nil
}

func (m *Manager) saveExecution(record *domain.RetryableExecution) error {
	data, err := record.ToBytes()
	if err != nil {
		return err
	}
	return m.store.PutWithTTL(domain.ExecutionKey(record.ExecutionID, record.NodeID), data, m.executionTTL)
}

func (m *Manager) nextDelay(policy domain.RetryPolicy, attempt int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return backoffDelay(policy, attempt, m.rng)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
