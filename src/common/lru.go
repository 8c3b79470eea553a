package common

import (
	lru "github.com/hashicorp/golang-lru"
)

// LRU is a fixed-size, thread-safe, least-recently-used cache.
type LRU struct {
	cache *lru.Cache
}

// NewLRU creates an LRU of the given size. onEvict, if not nil, is called
// whenever an item is pushed out of the cache.
func NewLRU(size int, onEvict func(key interface{}, value interface{})) *LRU {
	if size <= 0 {
		size = 1
	}

	var (
		c   *lru.Cache
		err error
	)
	if onEvict != nil {
		c, err = lru.NewWithEvict(size, onEvict)
	} else {
		c, err = lru.New(size)
	}
	if err != nil {
		// only returned for a non-positive size, excluded above
		panic(err)
	}

	return &LRU{cache: c}
}

// Add adds a value to the cache. Returns true if an eviction occurred.
func (l *LRU) Add(key, value interface{}) bool {
	return l.cache.Add(key, value)
}

// Get looks up a key's value from the cache.
func (l *LRU) Get(key interface{}) (interface{}, bool) {
	return l.cache.Get(key)
}

// Contains checks if a key is in the cache without updating its recency.
func (l *LRU) Contains(key interface{}) bool {
	return l.cache.Contains(key)
}
