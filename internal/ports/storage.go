package ports

import "time"

type KeyValue struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time
}

// Store is the key/value surface shared by the retry manager's execution
// records, idempotency cache and dead-letter items. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(key string) (value []byte, exists bool, err error)
	Put(key string, value []byte) error
	PutWithTTL(key string, value []byte, ttl time.Duration) error
	Delete(key string) error

	ListByPrefix(prefix string) ([]KeyValue, error)
	CountPrefix(prefix string) (int, error)
	DeleteByPrefix(prefix string) (deleted int, err error)

	CleanExpired() (cleaned int, err error)
	Close() error
}
