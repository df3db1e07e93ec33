package cache

import (
	"sync"
	"time"
)

var _ Cache = (*LRUCache)(nil)

// Cache describes an entity of a cache holding opaque values with expiry.
type Cache interface {
	// GetElement gets the value stored under key. Getting the element makes
	// it the most recently used element in the cache. Expired or missing
	// elements raise ErrElementDoesntExist.
	GetElement(key string) ([]byte, error)
	// PutElement inserts or replaces the value of key. Putting the element
	// makes it the most recently used element in the cache.
	PutElement(key string, value []byte, expireAt time.Time) error
	// RemoveElement removes key from the cache.
	RemoveElement(key string) error
	// Capacity returns the max capacity of the cache.
	Capacity() int
	// Size returns the number of elements currently in the cache.
	Size() int
	// Full checks whether the cache is full or not.
	Full() bool
}

// LRUCache implements a cache. It uses a linked list as
// the primary data structure along with a hash-map for
// checking existance of an element in the cache.
//
// The head of the linked list is always the most recently used
// element and the tail the least recently used one:
// * At every insertion, the element is placed at the head.
// * After every access, the element is moved to the head.
// * When the cache is full, the tail is evicted to make room.
type LRUCache struct {
	capacity int
	m        map[string]*DLLNode
	dll      *DoublyLinkedList
	now      func() time.Time
	mu       sync.Mutex
}

// NewLRUCache creates a new LRUCache of provided size.
func NewLRUCache(capacity int) *LRUCache {
	return NewLRUCacheWithClock(capacity, time.Now)
}

// NewLRUCacheWithClock creates a new LRUCache that checks expiry against now.
func NewLRUCacheWithClock(capacity int, now func() time.Time) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		m:        make(map[string]*DLLNode),
		dll:      NewDoublyLinkedList(),
		now:      now,
	}
}

// GetElement gets an element from the cache and bumps it to the MRU position.
//
// Expired elements are dropped on access.
func (lru *LRUCache) GetElement(key string) ([]byte, error) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	node, ok := lru.m[key]
	if !ok {
		return nil, ErrElementDoesntExist
	}
	if node.expired(lru.now()) {
		lru.dll.DeleteNode(node)
		delete(lru.m, key)
		return nil, ErrElementDoesntExist
	}
	lru.dll.MoveToHead(node)
	return node.value, nil
}

// PutElement inserts an element at the head of the cache, replacing any
// previous value of the key. The LRU element is evicted when the cache is full.
func (lru *LRUCache) PutElement(key string, value []byte, expireAt time.Time) error {
	if lru.capacity <= 0 {
		return ErrZeroCapacity
	}
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if node, ok := lru.m[key]; ok {
		node.value = value
		node.expireAt = expireAt
		lru.dll.MoveToHead(node)
		return nil
	}
	if len(lru.m) >= lru.capacity {
		tail := lru.dll.Tail
		lru.dll.DeleteNode(tail)
		delete(lru.m, tail.key)
	}
	node := &DLLNode{key: key, value: value, expireAt: expireAt}
	lru.dll.InsertHead(node)
	lru.m[key] = node
	return nil
}

// RemoveElement deletes a node from the cache based on its key.
func (lru *LRUCache) RemoveElement(key string) error {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	node, ok := lru.m[key]
	if !ok {
		return ErrElementDoesntExist
	}
	lru.dll.DeleteNode(node)
	delete(lru.m, key)
	return nil
}

// Capacity returns the max capacity of the cache.
func (lru *LRUCache) Capacity() int {
	return lru.capacity
}

// Size returns the number of elements in the cache.
func (lru *LRUCache) Size() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return len(lru.m)
}

// Full returns true if the cache is full, else returns false.
func (lru *LRUCache) Full() bool {
	return lru.Size() >= lru.capacity
}
