package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadger(t *testing.T) *Badger {
	t.Helper()
	b, err := NewBadger(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerPutGetDelete(t *testing.T) {
	b := newTestBadger(t)

	require.NoError(t, b.Put("k1", []byte("v1")))

	value, exists, err := b.Get("k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, b.Delete("k1"))

	_, exists, err = b.Get("k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBadgerGetMissingKey(t *testing.T) {
	b := newTestBadger(t)

	value, exists, err := b.Get("nope")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, value)
}

func TestBadgerTTLExpiry(t *testing.T) {
	b := newTestBadger(t)

	require.NoError(t, b.PutWithTTL("short", []byte("x"), 50*time.Millisecond))

	_, exists, err := b.Get("short")
	require.NoError(t, err)
	assert.True(t, exists)

	time.Sleep(100 * time.Millisecond)

	_, exists, err = b.Get("short")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBadgerPrefixOperations(t *testing.T) {
	b := newTestBadger(t)

	require.NoError(t, b.Put("p:a", []byte("1")))
	require.NoError(t, b.Put("p:b", []byte("2")))
	require.NoError(t, b.Put("q:c", []byte("3")))

	items, err := b.ListByPrefix("p:")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p:a", items[0].Key)
	assert.Equal(t, []byte("1"), items[0].Value)

	count, err := b.CountPrefix("p:")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	deleted, err := b.DeleteByPrefix("p:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err = b.CountPrefix("p:")
	require.NoError(t, err)
	assert.Zero(t, count)
}
