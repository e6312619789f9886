package domain

import (
	"time"

	"github.com/loomhq/loom/internal/xjson"
)

type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRetrying  ExecutionStatus = "retrying"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusDLQ       ExecutionStatus = "dlq"
)

type ErrorClass string

const (
	ErrorClassTimeout            ErrorClass = "TIMEOUT"
	ErrorClassRateLimit          ErrorClass = "RATE_LIMIT"
	ErrorClassNetwork            ErrorClass = "NETWORK_ERROR"
	ErrorClassServiceUnavailable ErrorClass = "SERVICE_UNAVAILABLE"
	ErrorClassServerError        ErrorClass = "SERVER_ERROR"
	ErrorClassUnknown            ErrorClass = "UNKNOWN_ERROR"
)

type RetryPolicy struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	JitterEnabled     bool          `json:"jitter_enabled"`
	RetryableErrors   []ErrorClass  `json:"retryable_errors"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterEnabled:     true,
		RetryableErrors: []ErrorClass{
			ErrorClassTimeout,
			ErrorClassRateLimit,
			ErrorClassNetwork,
			ErrorClassServiceUnavailable,
		},
	}
}

func (p *RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if p.InitialDelay <= 0 {
		return ErrInvalidRetryPolicy
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return ErrInvalidRetryPolicy
	}
	if p.BackoffMultiplier < 1 {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (p *RetryPolicy) IsRetryable(class ErrorClass) bool {
	for _, c := range p.RetryableErrors {
		if c == class {
			return true
		}
	}
	return false
}

type RetryAttempt struct {
	Number      int        `json:"number"`
	Timestamp   time.Time  `json:"timestamp"`
	Error       string     `json:"error"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// RetryableExecution tracks retry state for one (execution id, node id) pair.
// It transitions pending -> retrying -> {succeeded | failed | dlq} in place
// as attempts occur.
type RetryableExecution struct {
	NodeID         string          `json:"node_id"`
	ExecutionID    string          `json:"execution_id"`
	NodeType       string          `json:"node_type,omitempty"`
	Attempts       []RetryAttempt  `json:"attempts"`
	Policy         RetryPolicy     `json:"policy"`
	Status         ExecutionStatus `json:"status"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewRetryableExecution(executionID, nodeID string, policy RetryPolicy) *RetryableExecution {
	now := time.Now()
	return &RetryableExecution{
		NodeID:      nodeID,
		ExecutionID: executionID,
		Policy:      policy,
		Status:      ExecutionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (e *RetryableExecution) AttemptCount() int {
	return len(e.Attempts)
}

func (e *RetryableExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusSucceeded, ExecutionStatusFailed, ExecutionStatusDLQ:
		return true
	}
	return false
}

// ResetForReplay clears retry history so a dead-lettered execution can run a
// fresh retry cycle.
func (e *RetryableExecution) ResetForReplay() {
	e.Attempts = nil
	e.Status = ExecutionStatusPending
	e.LastError = ""
	e.UpdatedAt = time.Now()
}

func (e *RetryableExecution) ToBytes() ([]byte, error) {
	return xjson.Marshal(e)
}

func RetryableExecutionFromBytes(data []byte) (*RetryableExecution, error) {
	var e RetryableExecution
	err := xjson.Unmarshal(data, &e)
	return &e, err
}

// IdempotencyEntry is written once on first success per key and returned on
// all subsequent executions sharing the key until it expires.
type IdempotencyEntry struct {
	Key         string           `json:"key"`
	NodeID      string           `json:"node_id"`
	ExecutionID string           `json:"execution_id"`
	Result      xjson.RawMessage `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

func (e *IdempotencyEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

func (e *IdempotencyEntry) ToBytes() ([]byte, error) {
	return xjson.Marshal(e)
}

func IdempotencyEntryFromBytes(data []byte) (*IdempotencyEntry, error) {
	var e IdempotencyEntry
	err := xjson.Unmarshal(data, &e)
	return &e, err
}

// ClaimEntry marks an idempotency key as in flight before the first attempt
// completes, closing the window where two calls sharing a key could both
// invoke the executor. It is replaced by an IdempotencyEntry on success and
// deleted on terminal failure.
type ClaimEntry struct {
	Key         string    `json:"key"`
	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	ClaimedAt   time.Time `json:"claimed_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewClaimEntry(key, executionID, nodeID string, ttl time.Duration) *ClaimEntry {
	now := time.Now()
	return &ClaimEntry{
		Key:         key,
		ExecutionID: executionID,
		NodeID:      nodeID,
		ClaimedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (c *ClaimEntry) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

func (c *ClaimEntry) ToBytes() ([]byte, error) {
	return xjson.Marshal(c)
}

func ClaimEntryFromBytes(data []byte) (*ClaimEntry, error) {
	var c ClaimEntry
	err := xjson.Unmarshal(data, &c)
	return &c, err
}

type DeadLetterItem struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	NodeType    string    `json:"node_type,omitempty"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	Timestamp   time.Time `json:"timestamp"`
}

func (d *DeadLetterItem) ToBytes() ([]byte, error) {
	return xjson.Marshal(d)
}

func DeadLetterItemFromBytes(data []byte) (*DeadLetterItem, error) {
	var d DeadLetterItem
	err := xjson.Unmarshal(data, &d)
	return &d, err
}

type RetryStats struct {
	ActiveExecutions int     `json:"active_executions"`
	CachedKeys       int     `json:"cached_keys"`
	DeadLettered     int     `json:"dead_lettered"`
	SuccessRatio     float64 `json:"success_ratio"`
}
