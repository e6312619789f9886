package domain

import "fmt"

const (
	ExecutionPrefix   = "retry:execution:"
	IdempotencyPrefix = "retry:idempotency:"
	ClaimPrefix       = "retry:claim:"
	DeadLetterPrefix  = "retry:dlq:"
)

// ExecutionKey builds the canonical key for a retry execution record.
func ExecutionKey(executionID, nodeID string) string {
	return fmt.Sprintf("%s%s:%s", ExecutionPrefix, executionID, nodeID)
}

// IdempotencyKey builds the key for a cached idempotent result.
func IdempotencyKey(key string) string {
	return IdempotencyPrefix + key
}

// ClaimKey builds the key for an in-flight idempotency claim.
func ClaimKey(key string) string {
	return ClaimPrefix + key
}

// DeadLetterKey builds the key for a dead-letter item; ids are time-sortable
// so listing by prefix yields chronological order.
func DeadLetterKey(id string) string {
	return DeadLetterPrefix + id
}
