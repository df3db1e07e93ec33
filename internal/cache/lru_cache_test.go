package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_LRUCache(t *testing.T) {
	lruCache := NewLRUCache(3)

	require.NoError(t, lruCache.PutElement("1", []byte("one"), time.Time{}))
	require.NoError(t, lruCache.PutElement("2", []byte("two"), time.Time{}))
	require.NoError(t, lruCache.PutElement("3", []byte("three"), time.Time{}))
	require.True(t, lruCache.Full())

	// "1" becomes the MRU element, so "2" is the LRU one.
	v, err := lruCache.GetElement("1")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), v)

	// LRU Cache is full, so the tail element
	// must be deleted on insertion of four.
	require.NoError(t, lruCache.PutElement("4", []byte("four"), time.Time{}))
	_, err = lruCache.GetElement("2")
	require.Equal(t, ErrElementDoesntExist, err)
	require.Equal(t, 3, lruCache.Size())

	// Replacing a value doesn't evict anything.
	require.NoError(t, lruCache.PutElement("3", []byte("tres"), time.Time{}))
	v, err = lruCache.GetElement("3")
	require.NoError(t, err)
	require.Equal(t, []byte("tres"), v)
	require.Equal(t, 3, lruCache.Size())

	require.NoError(t, lruCache.RemoveElement("1"))
	require.Equal(t, ErrElementDoesntExist, lruCache.RemoveElement("1"))
	require.Equal(t, 2, lruCache.Size())
}

func Test_LRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lruCache := NewLRUCache(2)
	lruCache.now = func() time.Time { return now }

	require.NoError(t, lruCache.PutElement("k", []byte("v"), now.Add(time.Minute)))

	_, err := lruCache.GetElement("k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = lruCache.GetElement("k")
	require.Equal(t, ErrElementDoesntExist, err)
	require.Equal(t, 0, lruCache.Size())
}

func Test_LRUCacheZeroCapacity(t *testing.T) {
	lruCache := NewLRUCache(0)
	require.Equal(t, ErrZeroCapacity, lruCache.PutElement("k", nil, time.Time{}))
}
