package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/internal/domain"
)

func TestMemoryPutGetDelete(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("k1", []byte("v1")))

	value, exists, err := m.Get("k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, m.Delete("k1"))

	_, exists, err = m.Get("k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.PutWithTTL("gone", []byte("x"), -time.Second))
	require.NoError(t, m.PutWithTTL("kept", []byte("y"), time.Hour))

	_, exists, err := m.Get("gone")
	require.NoError(t, err)
	assert.False(t, exists)

	_, exists, err = m.Get("kept")
	require.NoError(t, err)
	assert.True(t, exists)

	cleaned, err := m.CleanExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)
}

func TestMemoryListByPrefixSorted(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("p:b", []byte("2")))
	require.NoError(t, m.Put("p:a", []byte("1")))
	require.NoError(t, m.Put("q:c", []byte("3")))

	items, err := m.ListByPrefix("p:")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p:a", items[0].Key)
	assert.Equal(t, "p:b", items[1].Key)

	count, err := m.CountPrefix("p:")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("p:a", []byte("1")))
	require.NoError(t, m.Put("p:b", []byte("2")))
	require.NoError(t, m.Put("q:c", []byte("3")))

	deleted, err := m.DeleteByPrefix("p:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := m.CountPrefix("q:")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryValueIsolation(t *testing.T) {
	m := NewMemory()

	buf := []byte("original")
	require.NoError(t, m.Put("k", buf))
	buf[0] = 'X'

	value, _, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), value)
}

func TestMemoryClosedStore(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	_, _, err := m.Get("k")
	assert.ErrorIs(t, err, domain.ErrClosed)
	assert.ErrorIs(t, m.Put("k", nil), domain.ErrClosed)
	assert.ErrorIs(t, m.Delete("k"), domain.ErrClosed)
}
