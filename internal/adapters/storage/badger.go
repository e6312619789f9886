package storage

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
)

// Badger is a durable store for hosts that want execution records, the
// idempotency cache and dead-letter items to survive a restart. TTLs map
// onto badger entry TTLs, so CleanExpired is mostly a no-op kept for parity
// with the memory store.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadger(path string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("open", path, err)
	}

	return &Badger{
		db:     db,
		logger: logger.With("component", "storage.badger"),
	}, nil
}

func (b *Badger) Get(key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, domain.NewStorageError("get", key, err)
	}
	return value, found, nil
}

func (b *Badger) Put(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return domain.NewStorageError("put", key, err)
	}
	return nil
}

func (b *Badger) PutWithTTL(key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return domain.NewStorageError("put", key, err)
	}
	return nil
}

func (b *Badger) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return domain.NewStorageError("delete", key, err)
	}
	return nil
}

func (b *Badger) ListByPrefix(prefix string) ([]ports.KeyValue, error) {
	var out []ports.KeyValue

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			kv := ports.KeyValue{Key: string(item.Key()), Value: value}
			if item.ExpiresAt() > 0 {
				expires := time.Unix(int64(item.ExpiresAt()), 0)
				kv.ExpiresAt = &expires
			}
			out = append(out, kv)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list", prefix, err)
	}
	return out, nil
}

func (b *Badger) CountPrefix(prefix string) (int, error) {
	count := 0

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("count", prefix, err)
	}
	return count, nil
}

func (b *Badger) DeleteByPrefix(prefix string) (int, error) {
	items, err := b.ListByPrefix(prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, kv := range items {
			if err := txn.Delete([]byte(kv.Key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return deleted, domain.NewStorageError("delete_prefix", prefix, err)
	}
	return deleted, nil
}

// CleanExpired triggers badger's value-log GC; expired entries already stop
// being visible to reads once their TTL passes.
func (b *Badger) CleanExpired() (int, error) {
	if err := b.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		b.logger.Warn("value log gc failed", "error", err.Error())
	}
	return 0, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
